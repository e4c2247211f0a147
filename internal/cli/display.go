package cli

import (
	"fmt"
	"io"
	"sync"
)

// lineDisplay prints every results update on its own line
type lineDisplay struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

func newLineDisplay(w io.Writer) *lineDisplay {
	return &lineDisplay{w: w}
}

// Show prints text unless it repeats the previous line
func (d *lineDisplay) Show(attemptID, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if text == d.last {
		return
	}
	d.last = text
	fmt.Fprintln(d.w, text)
}
