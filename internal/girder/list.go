package girder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/girdertools/girder-nav/internal/models"
)

// resourceEntry is the shape shared by every Girder list response. Pointer
// fields distinguish "absent" from "empty" so a malformed entry is reported
// rather than silently producing an empty name.
type resourceEntry struct {
	ID    *string `json:"_id"`
	Name  *string `json:"name"`
	Login *string `json:"login"`
}

// decodeChildSet parses a JSON array of resources into an id -> name map.
// nameField is "name" for most resources and "login" for users.
func decodeChildSet(data []byte, what, nameField string) (models.ChildSet, error) {
	var entries []resourceEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid response to %s: %w", what, err)
	}

	children := make(models.ChildSet, len(entries))
	for _, entry := range entries {
		if entry.ID == nil {
			return nil, decodeError(what, "_id")
		}
		name := entry.Name
		if nameField == "login" {
			name = entry.Login
		}
		if name == nil {
			return nil, decodeError(what, nameField)
		}
		children[*entry.ID] = *name
	}
	return children, nil
}

// ListFolders lists the folders directly under a parent node. The parent
// must be a user, collection, or folder.
func (c *Client) ListFolders(ctx context.Context, parentID string, parentType models.NodeType) (models.ChildSet, error) {
	query := unlimited()
	query.Set("parentId", parentID)
	query.Set("parentType", parentType.String())

	body, err := c.get(ctx, "/folder", query)
	if err != nil {
		return nil, err
	}
	return decodeChildSet(body, "listFolders", "name")
}

// ListItems lists the items directly inside a folder.
func (c *Client) ListItems(ctx context.Context, folderID string) (models.ChildSet, error) {
	query := unlimited()
	query.Set("folderId", folderID)

	body, err := c.get(ctx, "/item", query)
	if err != nil {
		return nil, err
	}
	return decodeChildSet(body, "listItems", "name")
}

// ListFiles lists the files held by an item.
func (c *Client) ListFiles(ctx context.Context, itemID string) (models.ChildSet, error) {
	body, err := c.get(ctx, "/item/"+url.PathEscape(itemID)+"/files", unlimited())
	if err != nil {
		return nil, err
	}
	return decodeChildSet(body, "listFiles", "name")
}

// ListFileInfo lists the files held by an item with their sizes. The
// download pipeline uses this; listings use ListFiles.
func (c *Client) ListFileInfo(ctx context.Context, itemID string) ([]models.FileInfo, error) {
	body, err := c.get(ctx, "/item/"+url.PathEscape(itemID)+"/files", unlimited())
	if err != nil {
		return nil, err
	}

	var entries []struct {
		ID   *string `json:"_id"`
		Name *string `json:"name"`
		Size int64   `json:"size"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("invalid response to listFiles: %w", err)
	}

	infos := make([]models.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.ID == nil {
			return nil, decodeError("listFiles", "_id")
		}
		if entry.Name == nil {
			return nil, decodeError("listFiles", "name")
		}
		infos = append(infos, models.FileInfo{ID: *entry.ID, Name: *entry.Name, Size: entry.Size})
	}
	return infos, nil
}

// ListUsers lists every user visible to the caller, keyed by id with the
// login as display name.
func (c *Client) ListUsers(ctx context.Context) (models.ChildSet, error) {
	body, err := c.get(ctx, "/user", unlimited())
	if err != nil {
		return nil, err
	}
	return decodeChildSet(body, "listUsers", "login")
}

// ListCollections lists every collection visible to the caller.
func (c *Client) ListCollections(ctx context.Context) (models.ChildSet, error) {
	body, err := c.get(ctx, "/collection", unlimited())
	if err != nil {
		return nil, err
	}
	return decodeChildSet(body, "listCollections", "name")
}
