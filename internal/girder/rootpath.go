package girder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/girdertools/girder-nav/internal/models"
)

// rootPathEntry is one element of the /{type}/{id}/rootpath response. The
// server wraps each ancestor under an "object" key alongside its access
// level, which we do not need.
type rootPathEntry struct {
	Object struct {
		ModelType *string `json:"_modelType"`
		ID        *string `json:"_id"`
		Name      *string `json:"name"`
		Login     *string `json:"login"`
	} `json:"object"`
}

// RootPath returns the chain of ancestors of a node, ordered from the top of
// the hierarchy down to the node's immediate parent. Only folders and items
// have a root path on the server.
func (c *Client) RootPath(ctx context.Context, id string, nodeType models.NodeType) ([]models.NodeRef, error) {
	path := "/" + nodeType.String() + "/" + url.PathEscape(id) + "/rootpath"
	body, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var entries []rootPathEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("invalid response to rootPath: %w", err)
	}

	rootPath := make([]models.NodeRef, 0, len(entries))
	for _, entry := range entries {
		obj := entry.Object
		if obj.ModelType == nil {
			return nil, decodeError("rootPath", "_modelType")
		}
		if obj.ID == nil {
			return nil, decodeError("rootPath", "_id")
		}

		entryType, err := models.ParseNodeType(*obj.ModelType)
		if err != nil {
			return nil, fmt.Errorf("invalid response to rootPath: %w", err)
		}

		name := obj.Name
		if entryType == models.TypeUser {
			name = obj.Login
		}
		if name == nil {
			field := "name"
			if entryType == models.TypeUser {
				field = "login"
			}
			return nil, decodeError("rootPath", field)
		}

		rootPath = append(rootPath, models.NodeRef{
			ID:   *obj.ID,
			Name: *name,
			Type: entryType,
		})
	}
	return rootPath, nil
}
