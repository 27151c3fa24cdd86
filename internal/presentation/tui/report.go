package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/ludics/internal/behaviour"
	"github.com/aretw0/ludics/internal/correspondence"
	"github.com/aretw0/ludics/internal/moves"
	"github.com/aretw0/ludics/pkg/domain"
)

// Markdown reports for the CLI.

func act(a domain.Act) string {
	if a.IsDaimon() {
		return fmt.Sprintf("`%s` †", a.LocusPath)
	}
	if a.Expression == "" {
		return fmt.Sprintf("`%s` %s", a.LocusPath, a.Polarity)
	}
	return fmt.Sprintf("`%s` %s %q", a.LocusPath, a.Polarity, a.Expression)
}

func sequence(seq []domain.Act) string {
	parts := make([]string, len(seq))
	for i, a := range seq {
		parts[i] = act(a)
	}
	return strings.Join(parts, " · ")
}

// InteractionReport describes one interaction.
func InteractionReport(in *domain.Interaction) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Interaction %s ⟂ %s\n\n", in.PositiveID, in.NegativeID)
	fmt.Fprintf(&sb, "**Status:** %s", in.Status)
	if in.BudgetExceeded {
		sb.WriteString(" (pair budget exhausted)")
	}
	sb.WriteString("\n\n")
	if in.StuckPlayer != "" {
		fmt.Fprintf(&sb, "- stuck: %s\n", in.StuckPlayer)
	}
	if in.Winner != "" {
		fmt.Fprintf(&sb, "- winner: %s\n", in.Winner)
	}
	if len(in.DaimonHints) > 0 {
		fmt.Fprintf(&sb, "- daimon hints: %s\n", strings.Join(in.DaimonHints, ", "))
	}
	if d := in.Divergence; d != nil {
		fmt.Fprintf(&sb, "- diverged at `%s`: %s\n", d.Locus, d.Reason)
	}

	if len(in.Pairs) > 0 {
		sb.WriteString("\n| # | locus | P | O |\n|---|---|---|---|\n")
		for i, p := range in.Pairs {
			fmt.Fprintf(&sb, "| %d | `%s` | %s | %s |\n", i+1, p.Locus, act(p.P), act(p.O))
		}
	}
	if in.Terminal != nil {
		fmt.Fprintf(&sb, "\nTerminal daimon: %s\n", act(*in.Terminal))
	}
	return sb.String()
}

// DisputeReport describes Disp(D).
func DisputeReport(set *domain.DisputeSet) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Disp(%s)\n\n%d dispute(s)\n\n", set.DesignID, set.Count)
	for _, d := range set.Disputes {
		fmt.Fprintf(&sb, "## %s\n\n- status: %s\n- length: %d\n", d.CounterDesignID, d.Status, d.Length)
		if len(d.Pairs) > 0 {
			acts := make([]domain.Act, 0, 2*len(d.Pairs))
			for _, p := range d.Pairs {
				acts = append(acts, p.P, p.O)
			}
			fmt.Fprintf(&sb, "- trace: %s\n", sequence(acts))
		}
		sb.WriteString("\n")
	}
	if len(set.Divergent) > 0 {
		fmt.Fprintf(&sb, "Divergent: %s\n\n", strings.Join(set.Divergent, ", "))
	}
	if len(set.Skipped) > 0 {
		fmt.Fprintf(&sb, "Skipped: %s\n", strings.Join(set.Skipped, ", "))
	}
	return sb.String()
}

// StrategyReport lists the plays of a strategy and its diagnostics.
func StrategyReport(s *domain.Strategy) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Strategy %s (%s)\n\n", s.ID, s.Player)
	fmt.Fprintf(&sb, "| plays | innocent | propagation | smallest | iterations |\n|---|---|---|---|---|\n")
	fmt.Fprintf(&sb, "| %d | %s | %s | %s | %d |\n\n", s.PlayCount, yes(s.IsInnocent), yes(s.SatisfiesPropagation), yes(s.IsSmallest), s.Iterations)
	for _, p := range s.Plays {
		fmt.Fprintf(&sb, "1. %s\n", sequence(p.Sequence))
	}
	violations := append(slices.Clone(s.Diagnostics.Innocence), s.Diagnostics.Propagation...)
	if len(violations) > 0 {
		sb.WriteString("\n## Violations\n\n")
		for _, v := range violations {
			fmt.Fprintf(&sb, "- %s\n", v)
		}
	}
	return sb.String()
}

// CheckReport renders the four correspondence checks.
func CheckReport(r correspondence.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Correspondence checks\n\nAll hold: **%s**\n\n", yes(r.AllHold))
	sb.WriteString("| check | holds | missing | extra | error |\n|---|---|---|---|---|\n")
	for _, c := range r.Checks() {
		fmt.Fprintf(&sb, "| %s | %s | %d | %d | %s |\n", c.Name, yes(c.Holds), len(c.Missing), len(c.Extra), c.Error)
	}
	return sb.String()
}

// BehaviourReport renders a biorthogonal closure.
func BehaviourReport(c *behaviour.Closure) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Behaviour of %s (%s)\n\nIs behaviour: **%s**\n\n", strings.Join(c.Input, ", "), c.Polarity, yes(c.IsBehaviour))
	sb.WriteString("| members | orthogonal | iterations | complete |\n|---|---|---|---|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %s |\n", len(c.Members), len(c.Orthogonal), c.Iterations, yes(c.Complete))
	if len(c.Orthogonal) > 0 {
		fmt.Fprintf(&sb, "\n- orthogonal: %s\n", strings.Join(c.Orthogonal, ", "))
	}
	if len(c.Added) > 0 {
		fmt.Fprintf(&sb, "\n- added by closure: %s\n", strings.Join(c.Added, ", "))
	}
	return sb.String()
}

// IncarnationReport lists the acts of a design its orthogonal counters visit.
func IncarnationReport(inc *behaviour.DesignIncarnation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Incarnation of %s\n\n", inc.Design.ID)
	if len(inc.Counters) == 0 {
		sb.WriteString("No orthogonal counter-design.\n")
	} else {
		fmt.Fprintf(&sb, "Visited by: %s\n", strings.Join(inc.Counters, ", "))
	}
	if len(inc.Design.Acts) > 0 {
		sb.WriteString("\n")
		for _, a := range inc.Design.Acts {
			fmt.Fprintf(&sb, "1. %s\n", act(a))
		}
	}
	if len(inc.Dropped) > 0 {
		fmt.Fprintf(&sb, "\nDropped: `%s`\n", strings.Join(inc.Dropped, "`, `"))
	}
	return sb.String()
}

// RoundTripReport renders a round trip outcome.
func RoundTripReport(title string, preserved bool, missing, extra []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\nPreserved: **%s**\n", title, yes(preserved))
	if len(missing) > 0 {
		fmt.Fprintf(&sb, "\n- missing: %s\n", strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		fmt.Fprintf(&sb, "\n- extra: %s\n", strings.Join(extra, ", "))
	}
	return sb.String()
}

// MovesReport lists the acts each dialogue move compiled to.
func MovesReport(dialogueID string, steps []moves.Step, closed bool, closedAt string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Dialogue %s\n\n", dialogueID)
	sb.WriteString("| # | move | acts |\n|---|---|---|\n")
	for i, st := range steps {
		fmt.Fprintf(&sb, "| %d | %s | %s |\n", i+1, st.Move.Kind, sequence(st.Acts))
	}
	if closed {
		fmt.Fprintf(&sb, "\nClosed at `%s`\n", closedAt)
	}
	return sb.String()
}

func yes(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
