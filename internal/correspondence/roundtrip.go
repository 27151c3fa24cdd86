package correspondence

import "github.com/aretw0/ludics/pkg/domain"

// DesignRoundTrip is the outcome of Design → Strategy → Design.
type DesignRoundTrip struct {
	Preserved bool             `json:"preserved"`
	Strategy  *domain.Strategy `json:"strategy"`
	Design    *domain.Design   `json:"design"`
	// Missing lists loci of acts lost on the way; Extra loci of acts that appeared.
	Missing []string `json:"missing,omitempty"`
	Extra   []string `json:"extra,omitempty"`
}

// RoundTripDesign converts d into its strategy against counters and back. Acts that
// no counter exercises cannot survive the trip.
func RoundTripDesign(d *domain.Design, counters []*domain.Design, opts Options) (*DesignRoundTrip, error) {
	s, _, err := DesignToStrategy(d, counters, opts)
	if err != nil {
		return nil, err
	}
	back, err := StrategyToDesign(s, d)
	if err != nil {
		return nil, err
	}
	rt := &DesignRoundTrip{Strategy: s, Design: back}
	rt.Missing, rt.Extra = actDiff(d, back)
	rt.Preserved = len(rt.Missing) == 0 && len(rt.Extra) == 0
	return rt, nil
}

// StrategyRoundTrip is the outcome of Strategy → Design → Strategy.
type StrategyRoundTrip struct {
	Preserved bool             `json:"preserved"`
	Design    *domain.Design   `json:"design"`
	Strategy  *domain.Strategy `json:"strategy"`
	Missing   []string         `json:"missing,omitempty"`
	Extra     []string         `json:"extra,omitempty"`
}

// RoundTripStrategy converts s into a design and back, playing it against counters
// or, when none are given, against the opponent designs of s's own plays.
func RoundTripStrategy(s *domain.Strategy, counters []*domain.Design, opts Options) (*StrategyRoundTrip, error) {
	d, err := StrategyToDesign(s, nil)
	if err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		if counters, err = CounterDesigns(s); err != nil {
			return nil, err
		}
	}
	back, _, err := DesignToStrategy(d, counters, opts)
	if err != nil {
		return nil, err
	}
	rt := &StrategyRoundTrip{Design: d, Strategy: back}
	rt.Missing, rt.Extra = playDiff(s, back)
	rt.Preserved = len(rt.Missing) == 0 && len(rt.Extra) == 0
	return rt, nil
}

func actDiff(want, got *domain.Design) (missing, extra []string) {
	wk, gk := map[string]bool{}, map[string]bool{}
	for _, a := range want.Acts {
		wk[a.Key()] = true
	}
	for _, a := range got.Acts {
		gk[a.Key()] = true
	}
	for _, a := range want.Acts {
		if !gk[a.Key()] {
			missing = append(missing, a.LocusPath)
		}
	}
	for _, a := range got.Acts {
		if !wk[a.Key()] {
			extra = append(extra, a.LocusPath)
		}
	}
	return missing, extra
}
