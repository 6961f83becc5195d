package browser

import "fmt"

// Policy selects how items are classified in listings. Items are an
// indirection layer between folders and files; depending on the policy they
// are shown as downloadable files, as navigable folders, or as folders
// unless they collapse to the single file they contain.
type Policy int

const (
	// ItemsAreFiles shows every item as a file row.
	ItemsAreFiles Policy = iota
	// ItemsAreFolders shows every item as a navigable folder row.
	ItemsAreFolders
	// ItemsAreFoldersWithFileBumping shows items as folders, except an item
	// holding exactly one file with the same name collapses to that file.
	ItemsAreFoldersWithFileBumping
)

func (p Policy) String() string {
	switch p {
	case ItemsAreFiles:
		return "files"
	case ItemsAreFolders:
		return "folders"
	case ItemsAreFoldersWithFileBumping:
		return "bump"
	default:
		return "invalid"
	}
}

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "files", "":
		return ItemsAreFiles, nil
	case "folders":
		return ItemsAreFolders, nil
	case "bump":
		return ItemsAreFoldersWithFileBumping, nil
	default:
		return 0, fmt.Errorf("unknown item classification mode %q", s)
	}
}
