package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
)

// Overlay contains interaction data to visualize on a design tree.
type Overlay struct {
	VisitedLoci  []string
	CurrentLocus string
}

// OverlayFor marks the loci an interaction paired and the one it ended on.
func OverlayFor(in *domain.Interaction) *Overlay {
	if in == nil {
		return nil
	}
	o := &Overlay{}
	for _, p := range in.Pairs {
		o.VisitedLoci = append(o.VisitedLoci, p.Locus)
	}
	switch {
	case in.Divergence != nil:
		o.CurrentLocus = in.Divergence.Locus
	case in.Terminal != nil:
		o.CurrentLocus = in.Terminal.LocusPath
	case len(in.DaimonHints) > 0:
		o.CurrentLocus = in.DaimonHints[0]
	}
	return o
}

// DesignMermaid produces a Mermaid flowchart of a design's locus tree.
// It applies semantic styling:
// - Root: ((Circle))
// - Daimon: {{Hexagon}}
// - Proper act: [Rectangle]
// - Opened but unplayed locus: ([Stadium]), dashed
// Overlay styles (visited/current) are applied if provided.
func DesignMermaid(d *domain.Design, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	played := map[string]domain.Act{}
	var paths []string
	add := func(p string) {
		if _, ok := played[p]; ok || slices.Contains(paths, p) {
			return
		}
		paths = append(paths, p)
	}
	for _, a := range d.Acts {
		p := locus.Normalize(a.LocusPath)
		add(p)
		played[p] = a
		for _, child := range locus.ChildPaths(p, a.Ramification) {
			add(child)
		}
	}
	slices.SortFunc(paths, locus.Compare)

	var open []string
	for _, p := range paths {
		safeID := sanitizeMermaidID(p)
		a, ok := played[p]
		opener, closer := "[", "]"
		label := p
		switch {
		case !ok:
			opener, closer = "([", "])"
			open = append(open, safeID)
		case a.IsDaimon():
			opener, closer = "{{", "}}"
			label = p + " †"
		case p == d.Root():
			opener, closer = "((", "))"
		}
		if ok && a.Expression != "" && !a.IsDaimon() {
			label = fmt.Sprintf("%s <br/> %s", p, escape(a.Expression))
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		if p != d.Root() {
			if parent := locus.Parent(p); slices.Contains(paths, parent) {
				fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(parent), safeID)
			}
		}
	}

	if len(open) > 0 {
		sb.WriteString("    classDef open stroke-dasharray: 5 5;\n")
		for _, id := range open {
			fmt.Fprintf(&sb, "    class %s open;\n", id)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, p := range overlay.VisitedLoci {
			safeID := sanitizeMermaidID(locus.Normalize(p))
			if !visitedSet[safeID] {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentLocus != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(locus.Normalize(overlay.CurrentLocus)))
		}
	}

	return sb.String()
}

// DisputeMermaid draws every dispute of a set as a sequence of P/O exchanges.
func DisputeMermaid(set *domain.DisputeSet) string {
	var sb strings.Builder
	sb.WriteString("sequenceDiagram\n")
	sb.WriteString("    participant P\n")
	sb.WriteString("    participant O\n")

	for _, disp := range set.Disputes {
		fmt.Fprintf(&sb, "    Note over P,O: %s vs %s (%s)\n", escape(disp.DesignID), escape(disp.CounterDesignID), disp.Status)
		for _, pair := range disp.Pairs {
			fmt.Fprintf(&sb, "    P->>O: %s %s\n", pair.Locus, actLabel(pair.P))
			fmt.Fprintf(&sb, "    O-->>P: %s %s\n", pair.Locus, actLabel(pair.O))
		}
		if t := disp.Terminal; t != nil {
			from, to := "P", "O"
			if t.Polarity == domain.PolarityO {
				from, to = "O", "P"
			}
			fmt.Fprintf(&sb, "    %s-x%s: %s †\n", from, to, t.LocusPath)
		}
	}
	for _, id := range set.Divergent {
		fmt.Fprintf(&sb, "    Note over P,O: %s diverges\n", escape(id))
	}
	return sb.String()
}

func actLabel(a domain.Act) string {
	switch {
	case a.IsDaimon():
		return "†"
	case a.Expression == "" || a.Expression == domain.Wildcard:
		return "*"
	}
	return escape(a.Expression)
}

// escape keeps labels from closing the Mermaid string or statement.
func escape(s string) string {
	return strings.NewReplacer("\"", "'", ";", ",", "\n", " ").Replace(s)
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return "L" + s
}
