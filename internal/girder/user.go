package girder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/girdertools/girder-nav/internal/models"
)

// CurrentUser returns the user the session token belongs to. A nil user with
// a nil error means the server answered but no one is logged in.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	body, err := c.get(ctx, "/user/me", nil)
	if err != nil {
		return nil, err
	}

	// Girder answers "null" for an anonymous session.
	var raw struct {
		ID    *string `json:"_id"`
		Login *string `json:"login"`
	}
	if string(body) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("invalid response to currentUser: %w", err)
	}
	if raw.ID == nil {
		return nil, decodeError("currentUser", "_id")
	}
	if raw.Login == nil {
		return nil, decodeError("currentUser", "login")
	}

	return &models.User{ID: *raw.ID, Login: *raw.Login}, nil
}

// FileInfo returns the name and size of a single file.
func (c *Client) FileInfo(ctx context.Context, fileID string) (models.FileInfo, error) {
	body, err := c.get(ctx, "/file/"+url.PathEscape(fileID), nil)
	if err != nil {
		return models.FileInfo{}, err
	}

	var raw struct {
		ID   *string `json:"_id"`
		Name *string `json:"name"`
		Size int64   `json:"size"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.FileInfo{}, fmt.Errorf("invalid response to fileInfo: %w", err)
	}
	if raw.ID == nil {
		return models.FileInfo{}, decodeError("fileInfo", "_id")
	}
	if raw.Name == nil {
		return models.FileInfo{}, decodeError("fileInfo", "name")
	}
	return models.FileInfo{ID: *raw.ID, Name: *raw.Name, Size: raw.Size}, nil
}

// ItemInfo resolves a single item's name. The download pipeline needs the
// name before planning: the item-to-file collapse compares the contained
// file's name against it, and it becomes the local directory name.
func (c *Client) ItemInfo(ctx context.Context, itemID string) (models.NodeRef, error) {
	body, err := c.get(ctx, "/item/"+url.PathEscape(itemID), nil)
	if err != nil {
		return models.NodeRef{}, err
	}

	var raw struct {
		ID   *string `json:"_id"`
		Name *string `json:"name"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.NodeRef{}, fmt.Errorf("invalid response to itemInfo: %w", err)
	}
	if raw.ID == nil {
		return models.NodeRef{}, decodeError("itemInfo", "_id")
	}
	if raw.Name == nil {
		return models.NodeRef{}, decodeError("itemInfo", "name")
	}
	return models.NodeRef{Name: *raw.Name, ID: *raw.ID, Type: models.TypeItem}, nil
}

// FolderParent returns the parent node of a folder. The parent is a folder,
// user, or collection depending on where the folder sits in the hierarchy.
func (c *Client) FolderParent(ctx context.Context, folderID string) (models.NodeRef, error) {
	body, err := c.get(ctx, "/folder/"+url.PathEscape(folderID), nil)
	if err != nil {
		return models.NodeRef{}, err
	}

	var raw struct {
		ParentCollection *string `json:"parentCollection"`
		ParentID         *string `json:"parentId"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.NodeRef{}, fmt.Errorf("invalid response to folderParent: %w", err)
	}
	if raw.ParentCollection == nil {
		return models.NodeRef{}, decodeError("folderParent", "parentCollection")
	}
	if raw.ParentID == nil {
		return models.NodeRef{}, decodeError("folderParent", "parentId")
	}

	parentType, err := models.ParseNodeType(*raw.ParentCollection)
	if err != nil {
		return models.NodeRef{}, fmt.Errorf("invalid response to folderParent: %w", err)
	}

	return models.NodeRef{ID: *raw.ParentID, Type: parentType}, nil
}
