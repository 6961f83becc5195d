// Package models defines the data types shared between the Girder API
// client, the folder-information fetcher, and the event system.
package models

import (
	"fmt"
)

// NodeType identifies the kind of node a NodeRef points at. The first three
// are virtual levels synthesized by the browser; the rest are real Girder
// resource types.
type NodeType int

const (
	TypeInvalid NodeType = iota
	TypeRoot
	TypeUsers       // the virtual "Users" level under root
	TypeCollections // the virtual "Collections" level under root
	TypeUser
	TypeCollection
	TypeFolder
	TypeItem
	TypeFile
)

// String returns the wire name used by the Girder API for this node type.
func (t NodeType) String() string {
	switch t {
	case TypeRoot:
		return "root"
	case TypeUsers:
		return "Users"
	case TypeCollections:
		return "Collections"
	case TypeUser:
		return "user"
	case TypeCollection:
		return "collection"
	case TypeFolder:
		return "folder"
	case TypeItem:
		return "item"
	case TypeFile:
		return "file"
	default:
		return "invalid"
	}
}

// ParseNodeType converts a wire name back into a NodeType.
func ParseNodeType(s string) (NodeType, error) {
	switch s {
	case "root":
		return TypeRoot, nil
	case "Users":
		return TypeUsers, nil
	case "Collections":
		return TypeCollections, nil
	case "user":
		return TypeUser, nil
	case "collection":
		return TypeCollection, nil
	case "folder":
		return TypeFolder, nil
	case "item":
		return TypeItem, nil
	case "file":
		return TypeFile, nil
	default:
		return TypeInvalid, fmt.Errorf("unknown node type %q", s)
	}
}

// Virtual reports whether the type is a synthesized level with no backing
// Girder resource. Virtual nodes always have an empty ID.
func (t NodeType) Virtual() bool {
	return t == TypeRoot || t == TypeUsers || t == TypeCollections
}

// NodeRef identifies one node in the hierarchy.
type NodeRef struct {
	Name string
	ID   string
	Type NodeType
}

// Equal reports whether two refs identify the same node. Virtual nodes are
// identified by type alone; real nodes by (ID, Type).
func (n NodeRef) Equal(o NodeRef) bool {
	if n.Type != o.Type {
		return false
	}
	if n.Type.Virtual() {
		return true
	}
	return n.ID == o.ID
}

// Zero reports whether the ref is the zero value.
func (n NodeRef) Zero() bool {
	return n.Type == TypeInvalid && n.ID == "" && n.Name == ""
}

// RootNode, UsersNode and CollectionsNode are the fixed virtual levels at
// the top of every Girder hierarchy.
var (
	RootNode        = NodeRef{Name: "root", Type: TypeRoot}
	UsersNode       = NodeRef{Name: "Users", Type: TypeUsers}
	CollectionsNode = NodeRef{Name: "Collections", Type: TypeCollections}
)

// ChildSet maps a child's id to its display name, as produced by the list
// endpoints. Iteration order is unspecified; consumers re-sort by name.
type ChildSet map[string]string

// FileInfo describes one physical file of an item, including its size in
// bytes. Used by the download pipeline; listings only need id and name.
type FileInfo struct {
	ID   string
	Name string
	Size int64
}

// User is the record returned by GET /user/me.
type User struct {
	ID    string
	Login string
}

// Listing is one consolidated directory listing: the node it describes, its
// children split into folders and files (each sorted by name), and the
// breadcrumb chain of ancestors from the top of the hierarchy down to (but
// excluding) the node itself.
type Listing struct {
	Node     NodeRef
	Folders  []NodeRef
	Files    []NodeRef
	RootPath []NodeRef
}
