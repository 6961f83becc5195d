package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/girdertools/girder-nav/internal/models"
)

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [type id]",
		Short: "List the contents of a node",
		Long: `List the contents of a node in the Girder hierarchy.

With no arguments, lists the logged-in user's subtree. A single argument
names a virtual level (root, Users, Collections). Two arguments select a
node by type and id:

  girder-nav ls
  girder-nav ls root
  girder-nav ls Collections
  girder-nav ls folder 5b1ab0d8e1a1`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()

			sess, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close()

			target, home, err := parseTarget(args)
			if err != nil {
				return err
			}

			var listing models.Listing
			if home {
				listing, err = sess.navigateHome(ctx)
			} else {
				listing, err = sess.navigate(ctx, target)
			}
			if err != nil {
				return err
			}

			printListing(listing)
			return nil
		},
	}
	return cmd
}

// parseTarget turns ls/browse positional arguments into a navigation
// target. The bool result is true when the user's home subtree is wanted.
func parseTarget(args []string) (models.NodeRef, bool, error) {
	switch len(args) {
	case 0:
		return models.NodeRef{}, true, nil
	case 1:
		nodeType, err := models.ParseNodeType(args[0])
		if err != nil {
			return models.NodeRef{}, false, err
		}
		switch nodeType {
		case models.TypeRoot:
			return models.RootNode, false, nil
		case models.TypeUsers:
			return models.UsersNode, false, nil
		case models.TypeCollections:
			return models.CollectionsNode, false, nil
		default:
			return models.NodeRef{}, false, fmt.Errorf("node type %s requires an id", args[0])
		}
	default:
		nodeType, err := models.ParseNodeType(args[0])
		if err != nil {
			return models.NodeRef{}, false, err
		}
		if nodeType.Virtual() {
			return models.NodeRef{}, false, fmt.Errorf("virtual level %s takes no id", args[0])
		}
		return models.NodeRef{ID: args[1], Type: nodeType}, false, nil
	}
}

// printListing renders one listing: breadcrumb line, then folders before
// files, each with type and id for follow-up commands.
func printListing(listing models.Listing) {
	fmt.Printf("Path: %s\n", breadcrumb(listing))
	fmt.Println()

	row := 1
	for _, folder := range listing.Folders {
		fmt.Printf("%3d  d  %-40s %-10s %s\n", row, folder.Name, folder.Type, folder.ID)
		row++
	}
	for _, file := range listing.Files {
		fmt.Printf("%3d  -  %-40s %-10s %s\n", row, file.Name, file.Type, file.ID)
		row++
	}

	if len(listing.Folders) == 0 && len(listing.Files) == 0 {
		fmt.Println("  (empty)")
	}
	fmt.Println()
	fmt.Printf("%d folders, %d files\n", len(listing.Folders), len(listing.Files))
}

func breadcrumb(listing models.Listing) string {
	parts := make([]string, 0, len(listing.RootPath)+1)
	for _, entry := range listing.RootPath {
		parts = append(parts, entry.Name)
	}
	if listing.Node.Name != "" {
		parts = append(parts, listing.Node.Name)
	} else if listing.Node.Type != models.TypeInvalid {
		parts = append(parts, listing.Node.Type.String())
	}
	return strings.Join(parts, " / ")
}
