package browser

import (
	"context"

	"github.com/girdertools/girder-nav/internal/models"
)

// API is the slice of the Girder client the fetcher depends on. Tests
// substitute a fake; production code passes *girder.Client.
type API interface {
	ListFolders(ctx context.Context, parentID string, parentType models.NodeType) (models.ChildSet, error)
	ListItems(ctx context.Context, folderID string) (models.ChildSet, error)
	ListFiles(ctx context.Context, itemID string) (models.ChildSet, error)
	ListUsers(ctx context.Context) (models.ChildSet, error)
	ListCollections(ctx context.Context) (models.ChildSet, error)
	CurrentUser(ctx context.Context) (*models.User, error)
	RootPath(ctx context.Context, id string, nodeType models.NodeType) ([]models.NodeRef, error)
}
