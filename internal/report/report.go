package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/1broseidon/modepin/internal/display"
)

// Entry is one display in a report.
type Entry struct {
	Info    display.Info
	Managed bool
	Modes   []display.Mode
	// ModesErr is set when the mode list was requested but unavailable.
	ModesErr error
}

// Collect gathers report entries for every active display. Modes are listed
// only when withModes is set.
func Collect(svc display.Service, target display.Target, withModes bool) ([]Entry, error) {
	ids, err := svc.ActiveDisplays()
	if err != nil {
		return nil, fmt.Errorf("failed to list active displays: %w", err)
	}
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		info := display.Describe(svc, id)
		e := Entry{Info: info, Managed: info.Serial == target.Serial}
		if withModes {
			e.Modes, e.ModesErr = svc.AllModes(id)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

type styles struct {
	header  lipgloss.Style
	managed lipgloss.Style
	match   lipgloss.Style
	warn    lipgloss.Style
	dim     lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{header: plain, managed: plain, match: plain, warn: plain, dim: plain}
	}
	return styles{
		header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")),
		managed: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		match:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Write renders entries as a table. Color is used only when color is true.
func Write(w io.Writer, entries []Entry, target display.Target, color bool) error {
	st := newStyles(color)
	var b strings.Builder

	fmt.Fprintf(&b, "%s %d at %s\n", st.header.Render("target:"), target.Serial, target.Mode())

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		current := "-"
		if e.Info.Current != nil {
			current = e.Info.Current.String()
			if e.Managed && !target.Matches(*e.Info.Current) {
				current += " (differs)"
			}
		}
		main := "no"
		if e.Info.Main {
			main = "yes"
		}
		managed := ""
		if e.Managed {
			managed = "managed"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", e.Info.ID),
			e.Info.Name,
			fmt.Sprintf("%d", e.Info.Serial),
			main,
			current,
			managed,
		})
	}

	headers := []string{"ID", "NAME", "SERIAL", "MAIN", "CURRENT", ""}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], len(cell))
		}
	}

	writeRow := func(cells []string, style lipgloss.Style) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		b.WriteString(style.Render(strings.TrimRight(strings.Join(parts, "  "), " ")))
		b.WriteString("\n")
	}

	writeRow(headers, st.header)
	for i, r := range rows {
		style := lipgloss.NewStyle()
		if entries[i].Managed {
			style = st.managed
		}
		writeRow(r, style)
	}

	for _, e := range entries {
		if e.Modes == nil && e.ModesErr == nil {
			continue
		}
		fmt.Fprintf(&b, "\n%s\n", st.header.Render(fmt.Sprintf("modes for %s (%d):", e.Info.Name, e.Info.ID)))
		if e.ModesErr != nil {
			fmt.Fprintf(&b, "  %s\n", st.warn.Render("unavailable: "+e.ModesErr.Error()))
			continue
		}
		for _, m := range e.Modes {
			line := fmt.Sprintf("  %-24s id=%d", m.String(), m.ID)
			if target.Matches(m) {
				b.WriteString(st.match.Render(line + "  <- target"))
			} else {
				b.WriteString(st.dim.Render(line))
			}
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
