package export

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// Progress receives one Increment per file written.
type Progress interface {
	Start(total int)
	Increment(name string)
	Finish()
}

// NewProgress returns a progress bar on w when w is an interactive terminal,
// and a no-op reporter otherwise.
func NewProgress(w io.Writer) Progress {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return &barProgress{out: w}
	}
	return NoProgress{}
}

// NoProgress discards progress updates.
type NoProgress struct{}

func (NoProgress) Start(int)        {}
func (NoProgress) Increment(string) {}
func (NoProgress) Finish()          {}

type barProgress struct {
	out     io.Writer
	p       *mpb.Progress
	bar     *mpb.Bar
	current atomic.Value // string; read by the render goroutine
}

func (b *barProgress) Start(total int) {
	b.p = mpb.New(mpb.WithOutput(b.out), mpb.WithWidth(40))
	b.bar = b.p.AddBar(int64(total),
		mpb.BarFillerClearOnComplete(),
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name("exporting", decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				name, _ := b.current.Load().(string)
				return name
			}),
		),
	)
}

func (b *barProgress) Increment(name string) {
	if b.bar == nil {
		return
	}
	b.current.Store(name)
	b.bar.Increment()
}

func (b *barProgress) Finish() {
	if b.p == nil {
		return
	}
	// Files may have been skipped; force completion so Wait returns.
	b.bar.SetTotal(-1, true)
	b.p.Wait()
}
