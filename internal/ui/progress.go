package ui

import (
	"fmt"
	"io"

	"github.com/desertthunder/jukebox/internal/tasks"
)

// PrintProgress renders updates from ch to w, one line each, until ch is closed.
func PrintProgress(w io.Writer, p *Palette, ch <-chan tasks.ProgressUpdate) {
	for update := range ch {
		fmt.Fprintln(w, RenderUpdate(p, update))
	}
}

// RenderUpdate styles a single progress line by phase.
func RenderUpdate(p *Palette, u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.Finished:
		return p.OK(u.Message)
	case tasks.Failed:
		return p.Err(u.Message)
	case tasks.Download, tasks.Finalize:
		return p.Help(u.Message)
	default:
		return u.Message
	}
}
