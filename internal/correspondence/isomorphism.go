package correspondence

import (
	"slices"

	"github.com/aretw0/ludics/internal/dispute"
	"github.com/aretw0/ludics/internal/strategy"
	"github.com/aretw0/ludics/pkg/domain"
)

const (
	CheckPlaysViews = "plays_to_views"
	CheckViewsPlays = "views_to_plays"
	CheckDispCh     = "disp_to_ch"
	CheckChDisp     = "ch_to_disp"
)

// CheckResult is the outcome of one correspondence check. Checks never fail with
// an error: a broken precondition is reported in Error with Holds=false.
type CheckResult struct {
	Name        string         `json:"name"`
	Holds       bool           `json:"holds"`
	Missing     []string       `json:"missing,omitempty"`
	Extra       []string       `json:"extra,omitempty"`
	Diagnostics map[string]any `json:"diagnostics,omitempty"`
	Error       string         `json:"error,omitempty"`
}

func failed(name string, err error) CheckResult {
	return CheckResult{Name: name, Error: err.Error(), Diagnostics: map[string]any{}}
}

// PlaysViews re-derives the views of s and checks that Plays(V) gives s back.
func PlaysViews(s *domain.Strategy, opts Options) CheckResult {
	views := strategy.Views(s)
	res, err := strategy.ComputePlays(views, opts.Plays)
	if err != nil {
		return failed(CheckPlaysViews, err)
	}
	if res.Player == "" {
		res.Player = s.Player
	}
	rebuilt := strategy.Build(s.ID, s.DesignID, res)
	missing, extra := playDiff(s, rebuilt)
	return CheckResult{
		Name:    CheckPlaysViews,
		Holds:   len(missing) == 0 && len(extra) == 0,
		Missing: missing,
		Extra:   extra,
		Diagnostics: map[string]any{
			"views":       len(views),
			"plays":       rebuilt.PlayCount,
			"is_smallest": res.IsSmallest,
			"iterations":  res.Iterations,
		},
	}
}

// ViewsPlays checks that the view projection of Plays(V) is V again.
func ViewsPlays(views []domain.View, opts Options) CheckResult {
	res, err := strategy.ComputePlays(views, opts.Plays)
	if err != nil {
		return failed(CheckViewsPlays, err)
	}
	want := normalizeViews(views)
	got := strategy.ViewsOf(strategy.Sequences(res.Plays), res.Player)
	missing, extra := strategy.SameViews(want, got)
	return CheckResult{
		Name:    CheckViewsPlays,
		Holds:   len(missing) == 0 && len(extra) == 0,
		Missing: missing,
		Extra:   extra,
		Diagnostics: map[string]any{
			"views":       len(want),
			"plays":       res.PlayCount,
			"is_smallest": res.IsSmallest,
		},
	}
}

// DispCh turns s into a design and checks that its disputes against counters show
// the same views as s. Without counters the opponent designs of s's plays are used.
func DispCh(s *domain.Strategy, counters []*domain.Design, opts Options) CheckResult {
	d, err := StrategyToDesign(s, nil)
	if err != nil {
		return failed(CheckDispCh, err)
	}
	if len(counters) == 0 {
		if counters, err = CounterDesigns(s); err != nil {
			return failed(CheckDispCh, err)
		}
	}
	set, err := dispute.Compute(d, counters, opts.Interaction)
	if err != nil {
		return failed(CheckDispCh, err)
	}
	want := strategy.Views(s)
	got := strategy.ViewsOf(dispute.Plays(set), s.Player)
	missing, extra := strategy.SameViews(want, got)
	return CheckResult{
		Name:    CheckDispCh,
		Holds:   len(missing) == 0 && len(extra) == 0,
		Missing: missing,
		Extra:   extra,
		Diagnostics: map[string]any{
			"chronicle_acts": len(d.Acts),
			"disputes":       set.Count,
			"divergent":      len(set.Divergent),
		},
	}
}

// ChDisp derives the strategy of d, turns it back into a design and checks that
// both designs play identically against every counter. When s is given the derived
// strategy must also equal s.
func ChDisp(d *domain.Design, s *domain.Strategy, counters []*domain.Design, opts Options) CheckResult {
	var err error
	if len(counters) == 0 && s != nil {
		if counters, err = CounterDesigns(s); err != nil {
			return failed(CheckChDisp, err)
		}
	}
	derived, before, err := DesignToStrategy(d, counters, opts)
	if err != nil {
		return failed(CheckChDisp, err)
	}
	back, err := StrategyToDesign(derived, d)
	if err != nil {
		return failed(CheckChDisp, err)
	}
	after, err := dispute.Compute(back, counters, opts.Interaction)
	if err != nil {
		return failed(CheckChDisp, err)
	}

	var mismatched []string
	want := traces(before)
	got := traces(after)
	for id, tr := range want {
		if got[id] != tr {
			mismatched = append(mismatched, id)
		}
	}
	for id := range got {
		if _, ok := want[id]; !ok {
			mismatched = append(mismatched, id)
		}
	}
	slices.Sort(mismatched)

	matches := s == nil || derived.Equal(s)
	var missing, extra []string
	if s != nil {
		missing, extra = playDiff(s, derived)
	}
	return CheckResult{
		Name:    CheckChDisp,
		Holds:   len(mismatched) == 0 && matches,
		Missing: missing,
		Extra:   extra,
		Diagnostics: map[string]any{
			"disputes":           before.Count,
			"mismatched":         mismatched,
			"strategy_matches":   matches,
			"derived_play_count": derived.PlayCount,
		},
	}
}

// Report gathers the four checks.
type Report struct {
	PlaysViews CheckResult `json:"plays_views"`
	ViewsPlays CheckResult `json:"views_plays"`
	DispCh     CheckResult `json:"disp_ch"`
	ChDisp     CheckResult `json:"ch_disp"`
	AllHold    bool        `json:"all_hold"`
}

// Checks lists the results in a fixed order.
func (r Report) Checks() []CheckResult {
	return []CheckResult{r.PlaysViews, r.ViewsPlays, r.DispCh, r.ChDisp}
}

// CheckAll runs the four checks for d and s against counters.
func CheckAll(d *domain.Design, s *domain.Strategy, counters []*domain.Design, opts Options) Report {
	r := Report{
		PlaysViews: PlaysViews(s, opts),
		ViewsPlays: ViewsPlays(strategy.Views(s), opts),
		DispCh:     DispCh(s, counters, opts),
		ChDisp:     ChDisp(d, s, counters, opts),
	}
	r.AllHold = AllHold(r)
	return r
}

// AllHold reduces a report to one boolean.
func AllHold(r Report) bool {
	for _, c := range r.Checks() {
		if !c.Holds {
			return false
		}
	}
	return true
}

// traces keys every dispute of a set by counter-design with its status and play.
func traces(set *domain.DisputeSet) map[string]string {
	out := make(map[string]string, len(set.Disputes)+len(set.Divergent))
	for _, d := range set.Disputes {
		out[d.CounterDesignID] = string(d.Status) + ":" + domain.SequenceKey(dispute.PlayOf(d.Pairs, d.Terminal))
	}
	for _, id := range set.Divergent {
		out[id] = string(domain.StatusDivergent)
	}
	return out
}

func playDiff(want, got *domain.Strategy) (missing, extra []string) {
	wk, gk := want.PlayKeys(), got.PlayKeys()
	for _, p := range want.Plays {
		if !gk[domain.SequenceKey(p.Sequence)] {
			missing = append(missing, p.ID)
		}
	}
	for _, p := range got.Plays {
		if !wk[domain.SequenceKey(p.Sequence)] {
			extra = append(extra, p.ID)
		}
	}
	if want.Player != got.Player {
		extra = append(extra, "player:"+string(got.Player))
	}
	return missing, extra
}

func normalizeViews(views []domain.View) []domain.View {
	if len(views) == 0 {
		return nil
	}
	seqs := make([][]domain.Act, len(views))
	for i, v := range views {
		seqs[i] = v.Sequence
	}
	maximal := strategy.Maximal(seqs)
	out := make([]domain.View, len(maximal))
	for i, s := range maximal {
		out[i] = domain.NewView(s, views[0].Player)
	}
	return out
}
