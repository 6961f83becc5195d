// Package download implements the recursive download pipeline: it walks a
// remote subtree (folders, items, files), mirrors it onto the local
// filesystem, and streams the file bodies with bounded concurrency.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/girdertools/girder-nav/internal/events"
	"github.com/girdertools/girder-nav/internal/logging"
	"github.com/girdertools/girder-nav/internal/models"
)

const defaultWorkers = 4

// Client is the slice of the Girder client the downloader depends on.
type Client interface {
	ListFolders(ctx context.Context, parentID string, parentType models.NodeType) (models.ChildSet, error)
	ListItems(ctx context.Context, folderID string) (models.ChildSet, error)
	ListFileInfo(ctx context.Context, itemID string) ([]models.FileInfo, error)
	DownloadFile(ctx context.Context, fileID string, w io.Writer) (int64, error)
}

// Options tunes the pipeline. A nil ProgressOutput disables the progress UI.
type Options struct {
	Workers        int
	ProgressOutput io.Writer
}

// Downloader mirrors remote subtrees to the local filesystem.
type Downloader struct {
	client      Client
	bus         *events.EventBus
	log         *logging.Logger
	workers     int
	progressOut io.Writer
}

// task is one file to transfer, resolved during the planning walk.
type task struct {
	file      models.FileInfo
	localPath string
}

func NewDownloader(client Client, bus *events.EventBus, log *logging.Logger, opts Options) *Downloader {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Downloader{
		client:      client,
		bus:         bus,
		log:         log,
		workers:     workers,
		progressOut: opts.ProgressOutput,
	}
}

// DownloadNode mirrors node into destDir. Folder-like nodes (users,
// collections, folders) become directories; items collapse to their single
// matching file or become a directory of their files; a file node is
// downloaded directly.
func (d *Downloader) DownloadNode(ctx context.Context, node models.NodeRef, destDir string) error {
	tasks, err := d.plan(ctx, node, destDir)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}
	return d.execute(ctx, tasks)
}

// plan walks the remote subtree and resolves the list of file transfers
// without touching the filesystem.
func (d *Downloader) plan(ctx context.Context, node models.NodeRef, destDir string) ([]task, error) {
	switch node.Type {
	case models.TypeFile:
		return []task{{
			file:      models.FileInfo{ID: node.ID, Name: node.Name},
			localPath: filepath.Join(destDir, sanitizeName(node.Name)),
		}}, nil

	case models.TypeItem:
		return d.planItem(ctx, node.ID, node.Name, destDir)

	case models.TypeUser, models.TypeCollection, models.TypeFolder:
		return d.planContainer(ctx, node, destDir)

	default:
		return nil, fmt.Errorf("cannot download node of type %s", node.Type)
	}
}

func (d *Downloader) planContainer(ctx context.Context, node models.NodeRef, destDir string) ([]task, error) {
	var tasks []task

	folders, err := d.client.ListFolders(ctx, node.ID, node.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders under %s: %w", node.Name, err)
	}
	for folderID, folderName := range folders {
		child := models.NodeRef{Name: folderName, ID: folderID, Type: models.TypeFolder}
		childTasks, err := d.planContainer(ctx, child, filepath.Join(destDir, sanitizeName(folderName)))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, childTasks...)
	}

	if node.Type == models.TypeFolder {
		items, err := d.client.ListItems(ctx, node.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list items under %s: %w", node.Name, err)
		}
		for itemID, itemName := range items {
			itemTasks, err := d.planItem(ctx, itemID, itemName, destDir)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, itemTasks...)
		}
	}

	return tasks, nil
}

// planItem resolves an item the same way the browser's bumping policy does:
// an item holding exactly one file with the item's own name collapses to
// that file; anything else becomes a directory holding the item's files.
func (d *Downloader) planItem(ctx context.Context, itemID, itemName, destDir string) ([]task, error) {
	infos, err := d.client.ListFileInfo(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files of item %s: %w", itemName, err)
	}

	if len(infos) == 1 && infos[0].Name == itemName {
		return []task{{
			file:      infos[0],
			localPath: filepath.Join(destDir, sanitizeName(itemName)),
		}}, nil
	}

	tasks := make([]task, 0, len(infos))
	itemDir := filepath.Join(destDir, sanitizeName(itemName))
	for _, info := range infos {
		tasks = append(tasks, task{
			file:      info,
			localPath: filepath.Join(itemDir, sanitizeName(info.Name)),
		})
	}
	return tasks, nil
}

// execute runs the planned transfers on a bounded worker pool. The first
// failure cancels the remaining transfers.
func (d *Downloader) execute(ctx context.Context, tasks []task) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ui *UI
	if d.progressOut != nil {
		ui = NewUI(d.progressOut, len(tasks))
	}

	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for i, t := range tasks {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			if ui != nil {
				ui.Wait()
			}
			return firstErr
		}

		wg.Add(1)
		go func(index int, t task) {
			defer wg.Done()
			defer func() { <-sem }()

			var bar *FileBar
			if ui != nil {
				bar = ui.AddBar(index+1, t.file.Name, t.file.Size)
			}
			if err := d.downloadOne(ctx, t, bar); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(i, t)
	}

	wg.Wait()
	if ui != nil {
		ui.Wait()
	}
	return firstErr
}

func (d *Downloader) downloadOne(ctx context.Context, t task, bar *FileBar) error {
	node := models.NodeRef{Name: t.file.Name, ID: t.file.ID, Type: models.TypeFile}
	d.publish(events.EventDownloadStarted, node, t.localPath, 0, nil)

	if err := os.MkdirAll(filepath.Dir(t.localPath), 0755); err != nil {
		return d.fail(node, t, bar, fmt.Errorf("failed to create directory: %w", err))
	}

	out, err := os.Create(t.localPath)
	if err != nil {
		return d.fail(node, t, bar, fmt.Errorf("failed to create file: %w", err))
	}

	var w io.Writer = out
	if bar != nil {
		w = bar.Writer(out)
	}

	n, err := d.client.DownloadFile(ctx, t.file.ID, w)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(t.localPath)
		return d.fail(node, t, bar, err)
	}

	if bar != nil {
		bar.Done()
	}
	if d.log != nil {
		d.log.Debug().Str("file", t.file.Name).Str("path", t.localPath).Int64("bytes", n).Msg("download complete")
	}
	d.publish(events.EventDownloadCompleted, node, t.localPath, n, nil)
	return nil
}

func (d *Downloader) fail(node models.NodeRef, t task, bar *FileBar, err error) error {
	if bar != nil {
		bar.Abort()
	}
	if d.log != nil {
		d.log.Error().Str("file", t.file.Name).Err(err).Msg("download failed")
	}
	d.publish(events.EventDownloadFailed, node, t.localPath, 0, err)
	return fmt.Errorf("failed to download %s: %w", t.file.Name, err)
}

func (d *Downloader) publish(eventType events.EventType, node models.NodeRef, path string, bytes int64, err error) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(&events.DownloadEvent{
		BaseEvent: events.BaseEvent{EventType: eventType, Time: time.Now()},
		Node:      node,
		Path:      path,
		Bytes:     bytes,
		Err:       err,
	})
}

// sanitizeName makes a remote name safe to use as a single local path
// element.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
