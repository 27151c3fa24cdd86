package ludics_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/ludics"
	"github.com/aretw0/ludics/pkg/domain"
)

// ExampleEngine_StepByID plays a claim against a design that accepts it.
func ExampleEngine_StepByID() {
	eng, err := ludics.New()
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	if _, err := eng.CreateDesign(ctx, domain.NewDesign("prop", "budget", "alice", domain.PolarityP)); err != nil {
		log.Fatal(err)
	}
	if _, err := eng.CreateDesign(ctx, domain.NewDesign("opp", "budget", "bob", domain.PolarityO)); err != nil {
		log.Fatal(err)
	}

	acts := []struct {
		design string
		act    domain.Act
	}{
		{"prop", domain.Act{Kind: domain.KindProper, Polarity: domain.PolarityP, LocusPath: "0", Expression: "the budget is sound", Ramification: []string{"1"}}},
		{"opp", domain.Act{Kind: domain.KindProper, Polarity: domain.PolarityO, LocusPath: "0", Ramification: []string{"1"}}},
		{"opp", domain.Act{Kind: domain.KindDaimon, Polarity: domain.PolarityO, LocusPath: "0.1"}},
	}
	for _, a := range acts {
		if _, err := eng.AppendAct(ctx, a.design, a.act); err != nil {
			log.Fatal(err)
		}
	}

	in, err := eng.StepByID(ctx, "prop", "opp")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(in.Status, "winner:", in.Winner, "pairs:", len(in.Pairs))
	// Output: CONVERGENT winner: P pairs: 1
}

// ExampleEngine_ApplyMove compiles a short challenge into acts.
func ExampleEngine_ApplyMove() {
	eng, err := ludics.New()
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	dl, err := eng.OpenDialogue(ctx, "bridge")
	if err != nil {
		log.Fatal(err)
	}
	for _, m := range []ludics.Move{
		{Kind: "ASSERT", Expression: "the bridge is safe"},
		{Kind: "WHY", Target: "0"},
	} {
		step, err := eng.ApplyMove(ctx, dl, m)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(m.Kind, step.Acts[0].Polarity, step.Acts[0].LocusPath)
	}
	// Output:
	// ASSERT P 0
	// WHY O 0.1
}
