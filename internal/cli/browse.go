package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/girdertools/girder-nav/internal/download"
	"github.com/girdertools/girder-nav/internal/models"
)

func newBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse [type id]",
		Short: "Browse the server interactively",
		Long: `Browse the Girder hierarchy interactively. Starts at the logged-in
user's subtree, or at the node given by type and id.

Commands inside the browser:
  ls              reprint the current listing
  cd <n>          enter the n-th folder row
  up              go to the parent (last breadcrumb entry)
  home            jump to the logged-in user's subtree
  root            jump to the top level
  get <n> [dir]   download the n-th row to dir (default .)
  pwd             print the breadcrumb
  quit            leave the browser`,
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

			reader := bufio.NewReader(os.Stdin)
			for {
				fmt.Print("girder> ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return nil // EOF ends the session
				}
				fields := strings.Fields(line)
				if len(fields) == 0 {
					continue
				}

				switch fields[0] {
				case "quit", "exit", "q":
					return nil

				case "ls":
					printListing(listing)

				case "pwd":
					fmt.Println(breadcrumb(listing))

				case "cd":
					row, err := pickRow(listing.Folders, fields)
					if err != nil {
						fmt.Println(err)
						continue
					}
					next, err := sess.navigate(ctx, row)
					if err != nil {
						fmt.Println(err)
						continue
					}
					listing = next
					printListing(listing)

				case "up":
					var parent models.NodeRef
					if len(listing.RootPath) > 0 {
						parent = listing.RootPath[len(listing.RootPath)-1]
					} else if listing.Node.Type == models.TypeFolder {
						// Deep-linked into a folder with no breadcrumb yet;
						// ask the server who the parent is.
						p, err := sess.client.FolderParent(ctx, listing.Node.ID)
						if err != nil {
							fmt.Println(err)
							continue
						}
						parent = p
					} else {
						fmt.Println("already at the top")
						continue
					}
					next, err := sess.navigate(ctx, parent)
					if err != nil {
						fmt.Println(err)
						continue
					}
					listing = next
					printListing(listing)

				case "home":
					next, err := sess.navigateHome(ctx)
					if err != nil {
						fmt.Println(err)
						continue
					}
					listing = next
					printListing(listing)

				case "root":
					next, err := sess.navigate(ctx, models.RootNode)
					if err != nil {
						fmt.Println(err)
						continue
					}
					listing = next
					printListing(listing)

				case "get":
					rows := append(append([]models.NodeRef{}, listing.Folders...), listing.Files...)
					row, err := pickRow(rows, fields)
					if err != nil {
						fmt.Println(err)
						continue
					}
					dest := "."
					if len(fields) > 2 {
						dest = fields[2]
					}
					d := download.NewDownloader(sess.client, sess.bus, GetLogger(), download.Options{
						ProgressOutput: os.Stderr,
					})
					if err := d.DownloadNode(ctx, row, dest); err != nil {
						fmt.Println(err)
						continue
					}
					fmt.Printf("Downloaded %s to %s\n", row.Name, dest)

				default:
					fmt.Printf("unknown command %q (try ls, cd, up, home, root, get, pwd, quit)\n", fields[0])
				}
			}
		},
	}
	return cmd
}

// pickRow resolves a 1-based row number argument against the listing rows.
func pickRow(rows []models.NodeRef, fields []string) (models.NodeRef, error) {
	if len(fields) < 2 {
		return models.NodeRef{}, fmt.Errorf("usage: %s <row number>", fields[0])
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 || n > len(rows) {
		return models.NodeRef{}, fmt.Errorf("row number must be between 1 and %d", len(rows))
	}
	return rows[n-1], nil
}
