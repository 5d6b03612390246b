package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/canvasflow/canvasflow/pkg/canvas"
	"github.com/canvasflow/canvasflow/pkg/stream"
	"github.com/canvasflow/canvasflow/pkg/surface"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	groupStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	kindStyles = map[canvas.Kind]lipgloss.Style{
		canvas.KindIdea:     lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")),
		canvas.KindQuestion: lipgloss.NewStyle().Foreground(lipgloss.Color("#bb9af7")),
		canvas.KindAction:   lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")),
		canvas.KindDecision: lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e")),
		canvas.KindNote:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
	}
)

// renderSurface prints the recorded layout: containers with their members,
// free nodes, then edges, each with its final position.
func renderSurface(rec *surface.Recorder, sess *stream.Session) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("canvas") + "\n")

	els := rec.Elements()
	sort.SliceStable(els, func(i, j int) bool {
		if els[i].Pos.X != els[j].Pos.X {
			return els[i].Pos.X < els[j].Pos.X
		}
		return els[i].Pos.Y < els[j].Pos.Y
	})

	byContainer := make(map[string][]*surface.Recorded)
	for _, el := range els {
		if el.Container {
			continue
		}
		byContainer[el.ContainerID] = append(byContainer[el.ContainerID], el)
	}

	writeNode := func(indent string, el *surface.Recorded) {
		style, ok := kindStyles[el.Kind]
		if !ok {
			style = lipgloss.NewStyle()
		}
		label := el.ID
		if el.Title != "" {
			label += " " + el.Title
		}
		fmt.Fprintf(&b, "%s%s %s\n", indent, style.Render(label),
			dimStyle.Render(fmt.Sprintf("(%.0f,%.0f) %gx%g", el.Pos.X, el.Pos.Y, el.Actual.Width, el.Actual.Height)))
		for _, line := range strings.Split(el.Content, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				fmt.Fprintf(&b, "%s  %s\n", indent, line)
			}
		}
	}

	for _, el := range els {
		if !el.Container {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", groupStyle.Render("["+el.ID+"] "+el.Title),
			dimStyle.Render(fmt.Sprintf("(%.0f,%.0f) %gx%g", el.Pos.X, el.Pos.Y, el.Actual.Width, el.Actual.Height)))
		for _, m := range byContainer[el.ID] {
			writeNode("  ", m)
		}
	}
	for _, el := range byContainer[""] {
		writeNode("", el)
	}

	if edges := sess.Edges(); len(edges) > 0 {
		b.WriteString(titleStyle.Render("edges") + "\n")
		for _, e := range edges {
			arrow := "->"
			switch e.Dir {
			case canvas.DirBidirectional:
				arrow = "<->"
			case canvas.DirNone:
				arrow = "--"
			}
			line := fmt.Sprintf("%s %s %s", e.From, arrow, e.To)
			if e.Label != "" {
				line += dimStyle.Render(" (" + e.Label + ")")
			}
			b.WriteString("  " + line + "\n")
		}
	}
	return b.String()
}
