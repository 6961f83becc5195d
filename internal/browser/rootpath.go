package browser

import "github.com/girdertools/girder-nav/internal/models"

// The breadcrumb for most navigations can be derived from what we already
// know about the session, so a network round-trip for the ancestor chain is
// the last resort. The rules below are evaluated in order; the first match
// wins. Rules 1 through 5 never touch the network.

// rootPathLocal attempts to derive the new root path without a network call.
// It returns the derived path and true, or nil and false when the caller
// must fetch the path from the server (rule 6).
//
// The inputs are the session state as it was before the navigation started:
// prev is the node we are navigating away from, currentRootPath its
// breadcrumb, and prevFolders/prevItems its listing.
func (f *Fetcher) rootPathLocal(target, prev models.NodeRef, currentRootPath []models.NodeRef, prevFolders, prevItems models.ChildSet) ([]models.NodeRef, bool) {
	// Rule 1: re-navigating to the same node keeps the breadcrumb as is.
	if !prev.Zero() && target.Equal(prev) {
		return currentRootPath, true
	}

	// Rule 2: navigating up to an ancestor already on the breadcrumb. The
	// ancestor's own path is the prefix before it.
	for i, entry := range currentRootPath {
		if entry.Equal(target) {
			truncated := make([]models.NodeRef, i)
			copy(truncated, currentRootPath[:i])
			return truncated, true
		}
	}

	// Rule 3: only folders and items have a server-side root path. Everything
	// else gets a purely synthetic breadcrumb.
	if target.Type != models.TypeFolder && target.Type != models.TypeItem {
		return f.finalizeRootPath(nil, target), true
	}

	// Rules 4 and 5: descending one level into a child we listed during the
	// previous fetch. The child's breadcrumb is the previous breadcrumb plus
	// the node we were just looking at.
	if target.Type == models.TypeFolder {
		if _, ok := prevFolders[target.ID]; ok {
			return appendParent(currentRootPath, prev), true
		}
	}
	if target.Type == models.TypeItem {
		if _, ok := prevItems[target.ID]; ok {
			return appendParent(currentRootPath, prev), true
		}
	}

	// Rule 6: ask the server.
	return nil, false
}

func appendParent(rootPath []models.NodeRef, parent models.NodeRef) []models.NodeRef {
	extended := make([]models.NodeRef, 0, len(rootPath)+1)
	extended = append(extended, rootPath...)
	return append(extended, parent)
}

// finalizeRootPath prepends the synthetic virtual ancestors to a freshly
// computed chain of real ancestors and applies the custom-root restriction.
// Used after rule 3 and after a network fetch (rule 6); the shortcut rules
// 2, 4 and 5 operate on breadcrumbs that already carry the prefix.
func (f *Fetcher) finalizeRootPath(realPath []models.NodeRef, target models.NodeRef) []models.NodeRef {
	prefixed := prependVirtualAncestors(realPath, target)
	return trimToCustomRoot(prefixed, f.customRoot)
}

// prependVirtualAncestors prepends, in order, a Root entry (unless the
// target is Root itself) and then at most one of the Users or Collections
// virtual levels, chosen by the type of the first real ancestor or, when
// there is none, by the target's own type.
func prependVirtualAncestors(realPath []models.NodeRef, target models.NodeRef) []models.NodeRef {
	prefix := make([]models.NodeRef, 0, 2+len(realPath))

	if target.Type != models.TypeRoot {
		prefix = append(prefix, models.RootNode)
	}

	var anchor models.NodeType
	if len(realPath) > 0 {
		anchor = realPath[0].Type
	} else {
		anchor = target.Type
	}
	switch anchor {
	case models.TypeUser:
		prefix = append(prefix, models.UsersNode)
	case models.TypeCollection:
		prefix = append(prefix, models.CollectionsNode)
	}

	return append(prefix, realPath...)
}

// trimToCustomRoot drops every entry before the configured custom root, so
// the breadcrumb never exposes ancestors above the subtree the session is
// restricted to. A path that does not contain the custom root at all lies
// outside the restricted subtree and is emptied entirely. A zero custom
// root leaves the path untouched.
func trimToCustomRoot(rootPath []models.NodeRef, customRoot models.NodeRef) []models.NodeRef {
	if customRoot.Zero() {
		return rootPath
	}
	for i, entry := range rootPath {
		if entry.Equal(customRoot) {
			return rootPath[i:]
		}
	}
	return nil
}
