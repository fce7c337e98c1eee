package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinnerStyle  = lipgloss.NewStyle().Foreground(colorAccent)
)

const spinnerInterval = 80 * time.Millisecond

// spinner animates a one-line progress message while a bundle is built.
// It stops on Stop or when the parent context is done.
type spinner struct {
	w       io.Writer
	message string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func newSpinner(ctx context.Context, w io.Writer, message string) *spinner {
	ctx, cancel := context.WithCancel(ctx)
	return &spinner{w: w, message: message, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// Start begins the animation in the background.
func (s *spinner) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		for frame := 0; ; frame++ {
			select {
			case <-s.ctx.Done():
				fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
				return
			case <-ticker.C:
				glyph := spinnerFrames[frame%len(spinnerFrames)]
				fmt.Fprintf(s.w, "\r%s %s", spinnerStyle.Render(glyph), styleMuted.Render(s.message))
			}
		}
	}()
}

// Stop ends the animation and clears the line. Later calls do nothing.
func (s *spinner) Stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
