package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
	phasegraph "github.com/aretw0/ludus/pkg/graph"
)

// GraphOverlay contains session data to visualize on the graph.
type GraphOverlay struct {
	// Fired lists transition ids taken so far; their edges are highlighted.
	Fired        []string
	CurrentPhase string
}

// GenerateMermaid produces a Mermaid flowchart of the phase graph.
// Shapes:
// - init: ((Circle))
// - finished: (((Double circle)))
// - player input phase: [/Parallelogram/]
// - automatic phase: [Rectangle]
// Edges are labelled with the transition id, plus precondition labels when
// present. Transitions with their own state delta use a thick arrow.
func GenerateMermaid(c *artifact.Compiled, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, phase := range c.Phases() {
		opener, closer := "[", "]"
		switch {
		case phase == domain.PhaseInit:
			opener, closer = "((", "))"
		case phase == domain.PhaseFinished:
			opener, closer = "(((", ")))"
		case c.RequiresInput(phase):
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(phase), opener, escapeLabel(phase), closer)
	}

	edgeIndex := make(map[string]int)
	for i, e := range phasegraph.Build(c).Edges() {
		edgeIndex[e.ID] = i
		label := e.ID
		t, _ := c.Transition(e.ID)
		if t != nil {
			var explains []string
			for _, p := range t.Def.Preconditions {
				if p.Explain != "" {
					explains = append(explains, p.Explain)
				}
			}
			if len(explains) > 0 {
				label += ": " + strings.Join(explains, " and ")
			}
		}
		arrow := "-->"
		if t != nil && t.Automatic() && len(t.Program) > 0 {
			arrow = "==>"
		}
		fmt.Fprintf(&sb, "    %s %s|\"%s\"| %s\n", sanitizeMermaidID(e.From), arrow, escapeLabel(label), sanitizeMermaidID(e.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		if overlay.CurrentPhase != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentPhase))
		}
		seen := make(map[int]bool)
		for _, id := range overlay.Fired {
			i, ok := edgeIndex[id]
			if !ok || seen[i] {
				continue
			}
			seen[i] = true
			fmt.Fprintf(&sb, "    linkStyle %d stroke:#01579b,stroke-width:3px;\n", i)
		}
	}

	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	// Mermaid reserves "end" as a keyword.
	if strings.EqualFold(s, "end") {
		s = "phase_" + s
	}
	return s
}
