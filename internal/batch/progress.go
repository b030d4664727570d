// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"io"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Progress observes completed files. Done is called concurrently.
type Progress interface {
	Done(file string, err error)
	Wait()
}

// BarProgress renders a single overall bar with the mpb library.
type BarProgress struct {
	container *mpb.Progress
	bar       *mpb.Bar

	mu     sync.Mutex
	failed int
}

// NewBarProgress creates a bar for total files rendered to w.
func NewBarProgress(w io.Writer, total int) *BarProgress {
	p := &BarProgress{}
	p.container = mpb.New(mpb.WithWidth(60), mpb.WithOutput(w))
	p.bar = p.container.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("scrubbing ", decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				p.mu.Lock()
				defer p.mu.Unlock()
				if p.failed == 0 {
					return ""
				}
				return " failed: " + strconv.Itoa(p.failed)
			}),
			decor.Percentage(decor.WCSyncSpace),
		),
	)
	return p
}

func (p *BarProgress) Done(_ string, err error) {
	if err != nil {
		p.mu.Lock()
		p.failed++
		p.mu.Unlock()
	}
	p.bar.Increment()
}

// Wait waits for the bar to finish rendering. A bar left short by
// cancellation is aborted so Wait does not block.
func (p *BarProgress) Wait() {
	if !p.bar.Completed() {
		p.bar.Abort(false)
	}
	p.container.Wait()
}

// LogProgress writes one log line per file for non-interactive runs.
type LogProgress struct {
	Logger zerolog.Logger
	Total  int

	mu   sync.Mutex
	done int
}

func (p *LogProgress) Done(file string, err error) {
	p.mu.Lock()
	p.done++
	n := p.done
	p.mu.Unlock()

	event := p.Logger.Info()
	if err != nil {
		event = p.Logger.Warn().Err(err)
	}
	event.Int("done", n).Int("total", p.Total).Str("file", filepath.Base(file)).Msg("processed")
}

func (p *LogProgress) Wait() {}

// NoopProgress discards progress.
type NoopProgress struct{}

func (NoopProgress) Done(string, error) {}
func (NoopProgress) Wait()              {}
