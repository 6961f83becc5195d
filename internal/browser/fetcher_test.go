package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/girdertools/girder-nav/internal/events"
	"github.com/girdertools/girder-nav/internal/models"
)

// fakeAPI is a scriptable API implementation. Calls are counted per
// operation, and an operation can be gated on a channel so tests control
// completion order.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int
	gates map[string]chan struct{}

	folders     models.ChildSet
	foldersErr  error
	items       models.ChildSet
	itemsErr    error
	files       models.ChildSet
	filesErr    error
	itemFiles   map[string]models.ChildSet
	itemFileErr map[string]error
	users       models.ChildSet
	usersErr    error
	collections models.ChildSet
	rootPath    []models.NodeRef
	rootPathErr error
	user        *models.User
	userErr     error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls: make(map[string]int),
		gates: make(map[string]chan struct{}),
	}
}

func (a *fakeAPI) enter(op string) {
	a.mu.Lock()
	a.calls[op]++
	gate := a.gates[op]
	a.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (a *fakeAPI) callCount(op string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[op]
}

func (a *fakeAPI) gate(op string) chan struct{} {
	ch := make(chan struct{})
	a.mu.Lock()
	a.gates[op] = ch
	a.mu.Unlock()
	return ch
}

func (a *fakeAPI) ListFolders(ctx context.Context, parentID string, parentType models.NodeType) (models.ChildSet, error) {
	a.enter("folders")
	return a.folders, a.foldersErr
}

func (a *fakeAPI) ListItems(ctx context.Context, folderID string) (models.ChildSet, error) {
	a.enter("items")
	return a.items, a.itemsErr
}

func (a *fakeAPI) ListFiles(ctx context.Context, itemID string) (models.ChildSet, error) {
	a.enter("files")
	if a.itemFiles != nil {
		return a.itemFiles[itemID], a.itemFileErr[itemID]
	}
	return a.files, a.filesErr
}

func (a *fakeAPI) ListUsers(ctx context.Context) (models.ChildSet, error) {
	a.enter("users")
	return a.users, a.usersErr
}

func (a *fakeAPI) ListCollections(ctx context.Context) (models.ChildSet, error) {
	a.enter("collections")
	return a.collections, nil
}

func (a *fakeAPI) CurrentUser(ctx context.Context) (*models.User, error) {
	a.enter("currentUser")
	return a.user, a.userErr
}

func (a *fakeAPI) RootPath(ctx context.Context, id string, nodeType models.NodeType) ([]models.NodeRef, error) {
	a.enter("rootPath")
	return a.rootPath, a.rootPathErr
}

func newTestFetcher(api API, policy Policy) (*Fetcher, <-chan events.Event) {
	bus := events.NewEventBus(16)
	fetcher := NewFetcher(api, bus, nil, policy, models.NodeRef{})
	return fetcher, bus.SubscribeAll()
}

func waitEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func waitListing(t *testing.T, ch <-chan events.Event) models.Listing {
	t.Helper()
	ev := waitEvent(t, ch)
	listing, ok := ev.(*events.ListingEvent)
	if !ok {
		t.Fatalf("expected ListingEvent, got %T: %+v", ev, ev)
	}
	return listing.Listing
}

func expectNoEvent(t *testing.T, ch <-chan events.Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %T: %+v", ev, ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func refNames(refs []models.NodeRef) []string {
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Name
	}
	return names
}

func sameNames(got []models.NodeRef, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i].Name != want[i] {
			return false
		}
	}
	return true
}

func TestNavigateToRoot(t *testing.T) {
	api := newFakeAPI()
	fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)

	if !fetcher.NavigateTo(context.Background(), models.RootNode) {
		t.Fatal("navigation was not accepted")
	}

	listing := waitListing(t, eventCh)
	if !sameNames(listing.Folders, "Collections", "Users") {
		t.Errorf("folders = %v", refNames(listing.Folders))
	}
	if len(listing.Files) != 0 || len(listing.RootPath) != 0 {
		t.Errorf("files = %v, rootPath = %v", listing.Files, listing.RootPath)
	}
	if len(api.calls) != 0 {
		t.Errorf("root navigation made network calls: %v", api.calls)
	}
	if fetcher.InProgress() {
		t.Error("fetch still marked in progress")
	}
}

func TestNavigateToUsersVirtual(t *testing.T) {
	api := newFakeAPI()
	api.users = models.ChildSet{"u1": "alice", "u2": "bob"}
	fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)

	fetcher.NavigateTo(context.Background(), models.UsersNode)

	listing := waitListing(t, eventCh)
	if !sameNames(listing.Folders, "alice", "bob") {
		t.Errorf("folders = %v", refNames(listing.Folders))
	}
	for _, folder := range listing.Folders {
		if folder.Type != models.TypeUser {
			t.Errorf("folder %s has type %v, want user", folder.Name, folder.Type)
		}
	}
	if len(listing.RootPath) != 1 || listing.RootPath[0].Type != models.TypeRoot {
		t.Errorf("rootPath = %v", listing.RootPath)
	}
	if api.callCount("users") != 1 {
		t.Errorf("users called %d times", api.callCount("users"))
	}
}

func TestNavigateToFolderItemsAreFiles(t *testing.T) {
	api := newFakeAPI()
	api.items = models.ChildSet{"i1": "doc"}
	api.rootPath = []models.NodeRef{{Name: "A", ID: "a1", Type: models.TypeFolder}}
	fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)

	fetcher.NavigateTo(context.Background(), models.NodeRef{Name: "F", ID: "f1", Type: models.TypeFolder})

	listing := waitListing(t, eventCh)
	if len(listing.Folders) != 0 {
		t.Errorf("folders = %v", refNames(listing.Folders))
	}
	if len(listing.Files) != 1 || listing.Files[0].Name != "doc" ||
		listing.Files[0].ID != "i1" || listing.Files[0].Type != models.TypeItem {
		t.Errorf("files = %+v", listing.Files)
	}
	if !sameNames(listing.RootPath, "root", "A") {
		t.Errorf("rootPath = %v", refNames(listing.RootPath))
	}
}

func TestJoinFiresOnceForAnyCompletionOrder(t *testing.T) {
	orders := [][]string{
		{"folders", "items", "rootPath"},
		{"rootPath", "folders", "items"},
		{"items", "rootPath", "folders"},
	}

	for _, order := range orders {
		api := newFakeAPI()
		api.folders = models.ChildSet{"sub1": "child"}
		api.items = models.ChildSet{"i1": "doc"}
		api.rootPath = []models.NodeRef{{Name: "A", ID: "a1", Type: models.TypeFolder}}

		gates := map[string]chan struct{}{
			"folders":  api.gate("folders"),
			"items":    api.gate("items"),
			"rootPath": api.gate("rootPath"),
		}

		fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)
		fetcher.NavigateTo(context.Background(), models.NodeRef{Name: "F", ID: "f1", Type: models.TypeFolder})

		for _, op := range order {
			close(gates[op])
		}

		listing := waitListing(t, eventCh)
		if !sameNames(listing.Folders, "child") || !sameNames(listing.Files, "doc") {
			t.Errorf("order %v: folders = %v, files = %v",
				order, refNames(listing.Folders), refNames(listing.Files))
		}
		expectNoEvent(t, eventCh)
	}
}

func TestNavigateWhileInProgressIsDropped(t *testing.T) {
	api := newFakeAPI()
	api.users = models.ChildSet{"u1": "alice"}
	gate := api.gate("users")

	fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)

	if !fetcher.NavigateTo(context.Background(), models.UsersNode) {
		t.Fatal("first navigation was not accepted")
	}
	if fetcher.NavigateTo(context.Background(), models.CollectionsNode) {
		t.Error("second navigation should have been dropped")
	}
	if api.callCount("collections") != 0 {
		t.Error("dropped navigation issued a request")
	}

	close(gate)
	listing := waitListing(t, eventCh)
	if listing.Node.Type != models.TypeUsers {
		t.Errorf("listing is for %v, want the first navigation's node", listing.Node)
	}
}

func TestRootPathShortcutOneLevelDescent(t *testing.T) {
	api := newFakeAPI()
	api.items = models.ChildSet{}
	fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)

	parent := models.NodeRef{Name: "Parent", ID: "p1", Type: models.TypeFolder}
	ancestorA := models.NodeRef{Name: "A", ID: "a1", Type: models.TypeFolder}
	ancestorB := models.NodeRef{Name: "B", ID: "b1", Type: models.TypeFolder}

	fetcher.currentNode = parent
	fetcher.currentRootPath = []models.NodeRef{ancestorA, ancestorB}
	fetcher.currentFolders = models.ChildSet{"F1": "Sub"}

	fetcher.NavigateTo(context.Background(), models.NodeRef{Name: "Sub", ID: "F1", Type: models.TypeFolder})

	listing := waitListing(t, eventCh)
	if !sameNames(listing.RootPath, "A", "B", "Parent") {
		t.Errorf("rootPath = %v", refNames(listing.RootPath))
	}
	if api.callCount("rootPath") != 0 {
		t.Error("one-level descent should not fetch the root path")
	}
}

func TestRootPathShortcutSameNode(t *testing.T) {
	api := newFakeAPI()
	api.items = models.ChildSet{}
	fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)

	node := models.NodeRef{Name: "F", ID: "f1", Type: models.TypeFolder}
	ancestor := models.NodeRef{Name: "A", ID: "a1", Type: models.TypeFolder}
	fetcher.currentNode = node
	fetcher.currentRootPath = []models.NodeRef{ancestor}

	fetcher.NavigateTo(context.Background(), node)

	listing := waitListing(t, eventCh)
	if !sameNames(listing.RootPath, "A") {
		t.Errorf("rootPath = %v", refNames(listing.RootPath))
	}
	if api.callCount("rootPath") != 0 {
		t.Error("re-navigation should not fetch the root path")
	}
}

func TestRootPathShortcutAncestorTruncation(t *testing.T) {
	api := newFakeAPI()
	api.items = models.ChildSet{}
	fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)

	ancestorA := models.NodeRef{Name: "A", ID: "a1", Type: models.TypeFolder}
	ancestorB := models.NodeRef{Name: "B", ID: "b1", Type: models.TypeFolder}
	fetcher.currentNode = models.NodeRef{Name: "Deep", ID: "d1", Type: models.TypeFolder}
	fetcher.currentRootPath = []models.NodeRef{ancestorA, ancestorB}

	fetcher.NavigateTo(context.Background(), ancestorB)

	listing := waitListing(t, eventCh)
	if !sameNames(listing.RootPath, "A") {
		t.Errorf("rootPath = %v", refNames(listing.RootPath))
	}
	if api.callCount("rootPath") != 0 {
		t.Error("navigating up to a known ancestor should not fetch the root path")
	}
}

func TestRootPathForUserIsSynthetic(t *testing.T) {
	api := newFakeAPI()
	fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)

	fetcher.NavigateTo(context.Background(), models.NodeRef{Name: "alice", ID: "u1", Type: models.TypeUser})

	listing := waitListing(t, eventCh)
	if !sameNames(listing.RootPath, "root", "Users") {
		t.Errorf("rootPath = %v", refNames(listing.RootPath))
	}
	if api.callCount("rootPath") != 0 {
		t.Error("user navigation should not fetch the root path")
	}
}

func TestRootPathFallsBackToNetwork(t *testing.T) {
	api := newFakeAPI()
	api.items = models.ChildSet{}
	api.rootPath = []models.NodeRef{
		{Name: "alice", ID: "u1", Type: models.TypeUser},
		{Name: "Public", ID: "p1", Type: models.TypeFolder},
	}
	fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)

	fetcher.NavigateTo(context.Background(), models.NodeRef{Name: "Deep", ID: "d1", Type: models.TypeFolder})

	listing := waitListing(t, eventCh)
	if !sameNames(listing.RootPath, "root", "Users", "alice", "Public") {
		t.Errorf("rootPath = %v", refNames(listing.RootPath))
	}
	if api.callCount("rootPath") != 1 {
		t.Errorf("rootPath called %d times, want 1", api.callCount("rootPath"))
	}
}

func TestCustomRootTrimsBreadcrumb(t *testing.T) {
	api := newFakeAPI()
	api.items = models.ChildSet{}
	customRoot := models.NodeRef{Name: "Project", ID: "c1", Type: models.TypeCollection}
	api.rootPath = []models.NodeRef{
		customRoot,
		{Name: "Data", ID: "f1", Type: models.TypeFolder},
	}

	bus := events.NewEventBus(16)
	fetcher := NewFetcher(api, bus, nil, ItemsAreFiles, customRoot)
	eventCh := bus.SubscribeAll()

	fetcher.NavigateTo(context.Background(), models.NodeRef{Name: "Deep", ID: "d1", Type: models.TypeFolder})

	listing := waitListing(t, eventCh)
	if !sameNames(listing.RootPath, "Project", "Data") {
		t.Errorf("rootPath = %v", refNames(listing.RootPath))
	}
}

func TestCustomRootHidesPathsOutsideSubtree(t *testing.T) {
	// A deep link into a node outside the restricted subtree must not leak
	// any ancestors; the breadcrumb is emptied entirely.
	api := newFakeAPI()
	api.items = models.ChildSet{}
	customRoot := models.NodeRef{Name: "Project", ID: "c1", Type: models.TypeCollection}
	api.rootPath = []models.NodeRef{
		{Name: "Other", ID: "c2", Type: models.TypeCollection},
		{Name: "Data", ID: "f1", Type: models.TypeFolder},
	}

	bus := events.NewEventBus(16)
	fetcher := NewFetcher(api, bus, nil, ItemsAreFiles, customRoot)
	eventCh := bus.SubscribeAll()

	fetcher.NavigateTo(context.Background(), models.NodeRef{Name: "Deep", ID: "d1", Type: models.TypeFolder})

	listing := waitListing(t, eventCh)
	if len(listing.RootPath) != 0 {
		t.Errorf("rootPath = %v, want empty", refNames(listing.RootPath))
	}
}

func TestFileBumping(t *testing.T) {
	tests := []struct {
		name      string
		itemName  string
		itemFiles models.ChildSet
		wantFile  bool
	}{
		{"single matching file collapses", "data.csv", models.ChildSet{"file1": "data.csv"}, true},
		{"zero files stays a folder", "empty", models.ChildSet{}, false},
		{"multiple files stays a folder", "bundle", models.ChildSet{"f1": "bundle", "f2": "extra"}, false},
		{"single differing file stays a folder", "doc", models.ChildSet{"f1": "other.txt"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.items = models.ChildSet{"i1": tt.itemName}
			api.itemFiles = map[string]models.ChildSet{"i1": tt.itemFiles}
			api.rootPath = []models.NodeRef{}
			fetcher, eventCh := newTestFetcher(api, ItemsAreFoldersWithFileBumping)

			fetcher.NavigateTo(context.Background(), models.NodeRef{Name: "F", ID: "f1", Type: models.TypeFolder})

			listing := waitListing(t, eventCh)
			if tt.wantFile {
				if len(listing.Files) != 1 || listing.Files[0].Type != models.TypeFile ||
					listing.Files[0].ID != "file1" {
					t.Errorf("files = %+v", listing.Files)
				}
				if len(listing.Folders) != 0 {
					t.Errorf("folders = %+v", listing.Folders)
				}
			} else {
				if len(listing.Folders) != 1 || listing.Folders[0].Type != models.TypeItem {
					t.Errorf("folders = %+v", listing.Folders)
				}
				if len(listing.Files) != 0 {
					t.Errorf("files = %+v", listing.Files)
				}
			}
		})
	}
}

func TestFileBumpingInnerErrorFailsFetch(t *testing.T) {
	api := newFakeAPI()
	api.items = models.ChildSet{"i1": "doc", "i2": "other"}
	api.itemFiles = map[string]models.ChildSet{
		"i1": {"f1": "doc"},
	}
	api.itemFileErr = map[string]error{
		"i2": errors.New("boom"),
	}
	api.rootPath = []models.NodeRef{}
	fetcher, eventCh := newTestFetcher(api, ItemsAreFoldersWithFileBumping)

	fetcher.NavigateTo(context.Background(), models.NodeRef{Name: "F", ID: "f1", Type: models.TypeFolder})

	ev := waitEvent(t, eventCh)
	failure, ok := ev.(*events.FetchErrorEvent)
	if !ok {
		t.Fatalf("expected FetchErrorEvent, got %T", ev)
	}
	if failure.Op != "failed to get one of the item's contents" {
		t.Errorf("op = %q", failure.Op)
	}
	expectNoEvent(t, eventCh)
}

func TestSortingIsByteOrdered(t *testing.T) {
	api := newFakeAPI()
	api.folders = models.ChildSet{"1": "banana", "2": "Apple", "3": "apple", "4": "Banana"}
	api.items = models.ChildSet{}
	api.rootPath = []models.NodeRef{}
	fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)

	fetcher.NavigateTo(context.Background(), models.NodeRef{Name: "F", ID: "f1", Type: models.TypeFolder})

	listing := waitListing(t, eventCh)
	if !sameNames(listing.Folders, "Apple", "Banana", "apple", "banana") {
		t.Errorf("folders = %v", refNames(listing.Folders))
	}
}

func TestSortTiesBrokenByID(t *testing.T) {
	refs := []models.NodeRef{
		{Name: "same", ID: "z"},
		{Name: "same", ID: "a"},
	}
	sortRefs(refs)
	if refs[0].ID != "a" || refs[1].ID != "z" {
		t.Errorf("refs = %+v", refs)
	}
}

func TestSubrequestErrorEmitsSingleFailure(t *testing.T) {
	api := newFakeAPI()
	api.folders = models.ChildSet{"sub1": "child"}
	api.itemsErr = errors.New("server exploded")
	api.rootPath = []models.NodeRef{}
	fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)

	fetcher.NavigateTo(context.Background(), models.NodeRef{Name: "F", ID: "f1", Type: models.TypeFolder})

	ev := waitEvent(t, eventCh)
	failure, ok := ev.(*events.FetchErrorEvent)
	if !ok {
		t.Fatalf("expected FetchErrorEvent, got %T: %+v", ev, ev)
	}
	if failure.Op != "an error occurred while getting items" {
		t.Errorf("op = %q", failure.Op)
	}
	expectNoEvent(t, eventCh)

	if fetcher.InProgress() {
		t.Error("fetchInProgress not reset after failure")
	}

	// The session recovers: the next navigation is accepted and succeeds.
	api.itemsErr = nil
	api.items = models.ChildSet{}
	if !fetcher.NavigateTo(context.Background(), models.NodeRef{Name: "G", ID: "g1", Type: models.TypeFolder}) {
		t.Fatal("navigation after failure was not accepted")
	}
	waitListing(t, eventCh)
}

func TestNavigateHome(t *testing.T) {
	api := newFakeAPI()
	api.user = &models.User{ID: "u1", Login: "alice"}
	fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)

	if !fetcher.NavigateHome(context.Background()) {
		t.Fatal("NavigateHome was not accepted")
	}

	listing := waitListing(t, eventCh)
	if listing.Node.Type != models.TypeUser || listing.Node.ID != "u1" {
		t.Errorf("listing node = %+v", listing.Node)
	}
}

func TestNavigateHomeAnonymous(t *testing.T) {
	api := newFakeAPI()
	api.collections = models.ChildSet{"c1": "Public Data"}
	fetcher, eventCh := newTestFetcher(api, ItemsAreFiles)

	fetcher.NavigateHome(context.Background())

	listing := waitListing(t, eventCh)
	if listing.Node.Type != models.TypeCollections {
		t.Errorf("listing node = %+v", listing.Node)
	}
}
