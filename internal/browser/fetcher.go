// Package browser implements the folder-information fetcher: the component
// that turns "navigate to this node" into the right subset of Girder API
// calls, joins their results, and emits one consolidated listing or one
// error per accepted navigation.
package browser

import (
	"context"
	"sort"
	"sync"

	"github.com/girdertools/girder-nav/internal/events"
	"github.com/girdertools/girder-nav/internal/logging"
	"github.com/girdertools/girder-nav/internal/models"
)

// Operation labels used in fetch failure events.
const (
	opFolders     = "an error occurred while getting folders"
	opItems       = "an error occurred while getting items"
	opFiles       = "an error occurred while getting files"
	opRootPath    = "an error occurred while updating the root path"
	opUsers       = "an error occurred while getting users"
	opCollections = "an error occurred while getting collections"
	opCurrentUser = "failed to get information about current user"
	opItemFiles   = "failed to get one of the item's contents"
)

// pendingSet tracks which subrequests of the current fetch are still in
// flight. The per-item file lookups of the bumping policy are counted
// separately since their number is only known once the items arrive.
type pendingSet struct {
	folders  bool
	items    bool
	files    bool
	rootPath bool
}

func (p pendingSet) anyPending() bool {
	return p.folders || p.items || p.files || p.rootPath
}

// Fetcher owns the navigation state of one browsing session.
//
// At most one fetch is in flight at a time; NavigateTo while a fetch is in
// progress is dropped, not queued. Each accepted navigation ends in exactly
// one event on the bus: a ListingEvent on success or a FetchErrorEvent on
// the first subrequest failure. Subrequests of one fetch run concurrently
// and their completions arrive in no particular order, so every completion
// handler re-checks the join condition; results belonging to an earlier
// fetch are recognized by their generation number and discarded.
type Fetcher struct {
	api        API
	bus        *events.EventBus
	log        *logging.Logger
	policy     Policy
	customRoot models.NodeRef

	mu              sync.Mutex
	generation      uint64
	fetchInProgress bool
	errorOccurred   bool

	currentNode     models.NodeRef
	previousNode    models.NodeRef
	currentRootPath []models.NodeRef

	currentFolders models.ChildSet
	currentItems   models.ChildSet
	currentFiles   models.ChildSet // files of an item-typed node

	previousFolders models.ChildSet
	previousItems   models.ChildSet

	pending          pendingSet
	itemFilesPending int
	bumpedItems      map[string]models.NodeRef // item id -> file it collapses to
	childType        models.NodeType           // type assigned to folder-subrequest results
}

// NewFetcher creates a fetcher publishing to bus. The custom root, when not
// zero, restricts every emitted breadcrumb to the subtree below it.
func NewFetcher(api API, bus *events.EventBus, log *logging.Logger, policy Policy, customRoot models.NodeRef) *Fetcher {
	return &Fetcher{
		api:        api,
		bus:        bus,
		log:        log,
		policy:     policy,
		customRoot: customRoot,
	}
}

// CurrentNode returns the node of the most recent accepted navigation.
func (f *Fetcher) CurrentNode() models.NodeRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentNode
}

// CurrentRootPath returns a copy of the current breadcrumb.
func (f *Fetcher) CurrentRootPath() []models.NodeRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	rootPath := make([]models.NodeRef, len(f.currentRootPath))
	copy(rootPath, f.currentRootPath)
	return rootPath
}

// InProgress reports whether a fetch is currently in flight.
func (f *Fetcher) InProgress() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchInProgress
}

// NavigateTo starts fetching the listing for target. It returns false, and
// does nothing, when a fetch is already in progress. The result arrives on
// the event bus.
func (f *Fetcher) NavigateTo(ctx context.Context, target models.NodeRef) bool {
	f.mu.Lock()
	if f.fetchInProgress {
		f.mu.Unlock()
		return false
	}

	f.fetchInProgress = true
	f.errorOccurred = false
	f.generation++
	gen := f.generation

	f.previousNode = f.currentNode
	f.previousFolders = f.currentFolders
	f.previousItems = f.currentItems
	f.currentNode = target

	f.currentFolders = nil
	f.currentItems = nil
	f.currentFiles = nil
	f.pending = pendingSet{}
	f.itemFilesPending = 0
	f.bumpedItems = nil

	switch target.Type {
	case models.TypeRoot:
		f.dispatchRoot()
	case models.TypeUsers:
		f.dispatchVirtualLevel(ctx, gen, target, models.TypeUser)
	case models.TypeCollections:
		f.dispatchVirtualLevel(ctx, gen, target, models.TypeCollection)
	case models.TypeUser, models.TypeCollection, models.TypeFolder, models.TypeItem:
		f.dispatchStandard(ctx, gen, target)
	default:
		f.fetchInProgress = false
		f.mu.Unlock()
		f.bus.PublishFetchError(opFolders, "cannot navigate to node of type "+target.Type.String())
		return true
	}
	return true
}

// NavigateHome looks up the logged-in user and navigates to their subtree,
// or to the Collections level for an anonymous session. Returns false when
// a fetch is already in progress.
func (f *Fetcher) NavigateHome(ctx context.Context) bool {
	if f.InProgress() {
		return false
	}

	go func() {
		user, err := f.api.CurrentUser(ctx)
		if err != nil {
			if f.log != nil {
				f.log.Error().Err(err).Msg("current user lookup failed")
			}
			f.bus.PublishFetchError(opCurrentUser, err.Error())
			return
		}
		if user == nil {
			f.NavigateTo(ctx, models.CollectionsNode)
			return
		}
		f.NavigateTo(ctx, models.NodeRef{
			Name: user.Login,
			ID:   user.ID,
			Type: models.TypeUser,
		})
	}()
	return true
}

// dispatchRoot synthesizes the fixed top-level listing. No network calls:
// the root's children are exactly the two virtual levels.
func (f *Fetcher) dispatchRoot() {
	f.currentRootPath = nil
	f.fetchInProgress = false
	listing := models.Listing{
		Node:    f.currentNode,
		Folders: []models.NodeRef{models.CollectionsNode, models.UsersNode},
	}
	f.mu.Unlock()
	f.bus.PublishListing(listing)
}

// dispatchVirtualLevel fetches the children of the Users or Collections
// virtual level. One subrequest; the breadcrumb is always [root].
func (f *Fetcher) dispatchVirtualLevel(ctx context.Context, gen uint64, target models.NodeRef, childType models.NodeType) {
	f.currentRootPath = f.finalizeRootPath(nil, target)
	f.childType = childType
	f.pending.folders = true
	f.mu.Unlock()

	go func() {
		var children models.ChildSet
		var err error
		var op string
		if childType == models.TypeUser {
			children, err = f.api.ListUsers(ctx)
			op = opUsers
		} else {
			children, err = f.api.ListCollections(ctx)
			op = opCollections
		}
		f.handleFolders(gen, op, children, err)
	}()
}

// dispatchStandard handles the User/Collection/Folder/Item cases: fan out
// the applicable subrequests and let the join barrier assemble the listing.
func (f *Fetcher) dispatchStandard(ctx context.Context, gen uint64, target models.NodeRef) {
	f.childType = models.TypeFolder

	if target.Type != models.TypeItem {
		f.pending.folders = true
	}
	if target.Type == models.TypeFolder {
		f.pending.items = true
	}
	if target.Type == models.TypeItem {
		f.pending.files = true
	}

	rootPath, local := f.rootPathLocal(target, f.previousNode, f.currentRootPath, f.previousFolders, f.previousItems)
	if local {
		f.currentRootPath = rootPath
	} else {
		f.pending.rootPath = true
	}

	pending := f.pending
	f.mu.Unlock()

	if pending.folders {
		go func() {
			folders, err := f.api.ListFolders(ctx, target.ID, target.Type)
			f.handleFolders(gen, opFolders, folders, err)
		}()
	}
	if pending.items {
		go func() {
			items, err := f.api.ListItems(ctx, target.ID)
			f.handleItems(ctx, gen, items, err)
		}()
	}
	if pending.files {
		go func() {
			files, err := f.api.ListFiles(ctx, target.ID)
			f.handleFiles(gen, files, err)
		}()
	}
	if pending.rootPath {
		go func() {
			rootPath, err := f.api.RootPath(ctx, target.ID, target.Type)
			f.handleRootPath(gen, target, rootPath, err)
		}()
	}
}

// stale reports whether a completion belongs to an abandoned fetch. Caller
// holds the mutex.
func (f *Fetcher) stale(gen uint64) bool {
	return gen != f.generation || !f.fetchInProgress || f.errorOccurred
}

func (f *Fetcher) handleFolders(gen uint64, op string, folders models.ChildSet, err error) {
	f.mu.Lock()
	if f.stale(gen) {
		f.mu.Unlock()
		return
	}
	if err != nil {
		f.failLocked(op, err)
		return
	}
	f.currentFolders = folders
	f.pending.folders = false
	f.finishIfReadyLocked()
}

func (f *Fetcher) handleItems(ctx context.Context, gen uint64, items models.ChildSet, err error) {
	f.mu.Lock()
	if f.stale(gen) {
		f.mu.Unlock()
		return
	}
	if err != nil {
		f.failLocked(opItems, err)
		return
	}
	f.currentItems = items
	f.pending.items = false

	// The bumping policy needs to know each item's contents, which opens the
	// inner join barrier: one lookup per item, all of which must land before
	// the fetch can finish.
	if f.policy == ItemsAreFoldersWithFileBumping && len(items) > 0 {
		f.itemFilesPending = len(items)
		f.bumpedItems = make(map[string]models.NodeRef)
		f.mu.Unlock()
		for itemID := range items {
			go func(itemID string) {
				files, err := f.api.ListFiles(ctx, itemID)
				f.handleItemFiles(gen, itemID, files, err)
			}(itemID)
		}
		return
	}

	f.finishIfReadyLocked()
}

func (f *Fetcher) handleFiles(gen uint64, files models.ChildSet, err error) {
	f.mu.Lock()
	if f.stale(gen) {
		f.mu.Unlock()
		return
	}
	if err != nil {
		f.failLocked(opFiles, err)
		return
	}
	f.currentFiles = files
	f.pending.files = false
	f.finishIfReadyLocked()
}

func (f *Fetcher) handleRootPath(gen uint64, target models.NodeRef, rootPath []models.NodeRef, err error) {
	f.mu.Lock()
	if f.stale(gen) {
		f.mu.Unlock()
		return
	}
	if err != nil {
		f.failLocked(opRootPath, err)
		return
	}
	f.currentRootPath = f.finalizeRootPath(rootPath, target)
	f.pending.rootPath = false
	f.finishIfReadyLocked()
}

// handleItemFiles resolves one inner file-bump lookup. An item collapses to
// its file only when it holds exactly one file whose name matches the
// item's own name.
func (f *Fetcher) handleItemFiles(gen uint64, itemID string, files models.ChildSet, err error) {
	f.mu.Lock()
	if f.stale(gen) {
		f.mu.Unlock()
		return
	}
	if err != nil {
		f.failLocked(opItemFiles, err)
		return
	}

	if len(files) == 1 {
		for fileID, fileName := range files {
			if fileName == f.currentItems[itemID] {
				f.bumpedItems[itemID] = models.NodeRef{
					Name: fileName,
					ID:   fileID,
					Type: models.TypeFile,
				}
			}
		}
	}

	f.itemFilesPending--
	f.finishIfReadyLocked()
}

// failLocked aborts the current fetch. Called with the mutex held; unlocks
// it. Late completions of the abandoned subrequests are discarded by the
// stale check.
func (f *Fetcher) failLocked(op string, err error) {
	f.errorOccurred = true
	f.fetchInProgress = false
	f.pending = pendingSet{}
	f.itemFilesPending = 0
	f.mu.Unlock()

	if f.log != nil {
		f.log.Error().Str("op", op).Err(err).Msg("fetch failed")
	}
	f.bus.PublishFetchError(op, err.Error())
}

// finishIfReadyLocked evaluates the join condition and, when every issued
// subrequest has landed, assembles and emits the listing. Called with the
// mutex held after every completion; unlocks it. Safe to evaluate
// redundantly: it does nothing until the last completion.
func (f *Fetcher) finishIfReadyLocked() {
	if f.pending.anyPending() || f.itemFilesPending > 0 {
		f.mu.Unlock()
		return
	}

	listing := f.buildListingLocked()
	f.fetchInProgress = false
	f.mu.Unlock()

	f.bus.PublishListing(listing)
}

// buildListingLocked turns the joined subrequest results into the final
// listing, applying the item classification policy.
func (f *Fetcher) buildListingLocked() models.Listing {
	listing := models.Listing{Node: f.currentNode}

	folders := childRefs(f.currentFolders, f.childType)

	var files []models.NodeRef
	for fileID, fileName := range f.currentFiles {
		files = append(files, models.NodeRef{Name: fileName, ID: fileID, Type: models.TypeFile})
	}

	for itemID, itemName := range f.currentItems {
		row := models.NodeRef{Name: itemName, ID: itemID, Type: models.TypeItem}
		switch f.policy {
		case ItemsAreFiles:
			files = append(files, row)
		case ItemsAreFolders:
			folders = append(folders, row)
		case ItemsAreFoldersWithFileBumping:
			if bumped, ok := f.bumpedItems[itemID]; ok {
				files = append(files, bumped)
			} else {
				folders = append(folders, row)
			}
		}
	}

	sortRefs(folders)
	sortRefs(files)
	listing.Folders = folders
	listing.Files = files

	listing.RootPath = make([]models.NodeRef, len(f.currentRootPath))
	copy(listing.RootPath, f.currentRootPath)
	return listing
}

func childRefs(children models.ChildSet, childType models.NodeType) []models.NodeRef {
	var refs []models.NodeRef
	for id, name := range children {
		refs = append(refs, models.NodeRef{Name: name, ID: id, Type: childType})
	}
	return refs
}

// sortRefs orders listing rows by name ascending, byte order, ties broken
// by id so the result is stable across runs.
func sortRefs(refs []models.NodeRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].ID < refs[j].ID
	})
}
