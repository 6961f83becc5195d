package download

import (
	"fmt"
	"io"
	"os"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/girdertools/girder-nav/internal/constants"
)

// UI renders one progress bar per file using mpb. On a non-terminal output
// the bars are discarded and the caller's log lines carry the progress.
type UI struct {
	progress   *mpb.Progress
	isTerminal bool
	totalFiles int
}

// FileBar is the progress bar of a single file transfer.
type FileBar struct {
	bar *mpb.Bar
}

// NewUI creates a progress UI for totalFiles transfers writing to out.
// Passing os.Stderr gives the usual interactive rendering.
func NewUI(out io.Writer, totalFiles int) *UI {
	isTerminal := false
	if f, ok := out.(*os.File); ok {
		isTerminal = term.IsTerminal(int(f.Fd()))
	}

	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressUpdateInterval),
			mpb.WithWidth(80),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &UI{progress: p, isTerminal: isTerminal, totalFiles: totalFiles}
}

// AddBar registers the bar for one file. index is 1-based.
func (u *UI) AddBar(index int, name string, size int64) *FileBar {
	label := fmt.Sprintf("[%d/%d] %s", index, u.totalFiles, name)
	bar := u.progress.New(size,
		mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding(" ").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.Percentage(decor.WCSyncSpace),
		),
	)
	return &FileBar{bar: bar}
}

// Writer wraps w so bytes written advance the bar.
func (b *FileBar) Writer(w io.Writer) io.Writer {
	return b.bar.ProxyWriter(w)
}

// Done marks the bar complete even if the server sent fewer bytes than the
// advertised size.
func (b *FileBar) Done() {
	b.bar.SetTotal(-1, true)
}

// Abort removes the bar after a failed transfer.
func (b *FileBar) Abort() {
	b.bar.Abort(true)
}

// Wait blocks until every bar has rendered its final state.
func (u *UI) Wait() {
	u.progress.Wait()
}
