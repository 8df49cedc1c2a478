package dev

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/vango-dev/devgate/internal/state"
)

const (
	barWidth  = 10
	nameWidth = 14
	sizeWidth = 7
)

// row pairs a dashboard label with the kind it displays.
type row struct {
	label string
	kind  state.Kind
}

var rows = []row{
	{"manifest", state.KindManifest},
	{"assets", state.KindAssets},
	{"service-worker", state.KindServiceWorker},
	{"script", state.KindScript},
	{"style", state.KindStyle},
	{"document", state.KindDocument},
}

// Styles colors the parts of a dashboard frame.
type Styles struct {
	URL     func(string) string
	Error   func(string) string
	Name    func(string) string
	Size    func(string) string
	Time    func(string) string
	Done    func(string) string
	Pending func(string) string
	Footer  func(string) string
}

// NewStyles returns lipgloss styles when color is true, and plain text
// otherwise.
func NewStyles(color bool) Styles {
	if !color {
		plain := func(s string) string { return s }
		return Styles{plain, plain, plain, plain, plain, plain, plain, plain}
	}

	render := func(style lipgloss.Style) func(string) string {
		return func(s string) string { return style.Render(s) }
	}
	return Styles{
		URL:     render(lipgloss.NewStyle().Underline(true)),
		Error:   render(lipgloss.NewStyle().Foreground(lipgloss.Color("1"))),
		Name:    render(lipgloss.NewStyle().Foreground(lipgloss.Color("2"))),
		Size:    render(lipgloss.NewStyle().Foreground(lipgloss.Color("5"))),
		Time:    render(lipgloss.NewStyle().Foreground(lipgloss.Color("6"))),
		Done:    render(lipgloss.NewStyle().Foreground(lipgloss.Color("2"))),
		Pending: func(s string) string { return s },
		Footer:  render(lipgloss.NewStyle().Foreground(lipgloss.Color("3"))),
	}
}

// Dashboard renders a frame for snap.
func Dashboard(snap state.Snapshot, styles Styles) string {
	var b strings.Builder

	if snap.URL != "" {
		b.WriteString("Listening on " + styles.URL(snap.URL))
	} else {
		b.WriteString("Waiting for server to start")
	}
	b.WriteString("\n\n")

	// An error replaces the table; the footer stays.
	if snap.Error != "" {
		b.WriteString(styles.Error(snap.Error))
		b.WriteString("\n")
	} else {
		writeRows(&b, snap, styles)
	}

	b.WriteString("\n")
	b.WriteString(styles.Footer("Server-sent events: waiting for connection"))
	b.WriteString("\n")
	b.WriteString("Total size: " + styles.Size(formatBytes(snap.TotalSize())))
	b.WriteString("\n")
	return b.String()
}

func writeRows(b *strings.Builder, snap state.Snapshot, styles Styles) {
	for _, r := range rows {
		rec, ok := snap.Files[r.kind]
		if !ok {
			rec = *state.Pending(r.kind)
		}
		status := styles.Pending(string(rec.Status))
		if rec.Done {
			status = styles.Done(string(rec.Status))
		}

		b.WriteString("  ")
		b.WriteString(styles.Name(padRight(r.label, nameWidth)))
		b.WriteString(styles.Size(padLeft(formatBytes(rec.Size), sizeWidth)))
		b.WriteString(" ")
		b.WriteString(styles.Time(rec.Timestamp))
		b.WriteString(" ")
		b.WriteString(ProgressBar(rec.Progress))
		b.WriteString(" ")
		b.WriteString(status)
		b.WriteString("\n")
	}
}

// ProgressBar draws progress (0-100) as a fixed-width bar.
func ProgressBar(progress int) string {
	filled := progress * barWidth / 100
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return "|" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "|"
}

func formatBytes(n int) string {
	if n < 0 {
		n = 0
	}
	return strings.ReplaceAll(humanize.Bytes(uint64(n)), " ", "")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
