// Package ui styles terminal output for the CLI with lipgloss.
//
// [Palette] holds the named styles; [PrintProgress] renders ingest progress updates as they arrive.
package ui
