/*
Package ludics is a dialogue engine built on the interaction model of ludics.

A dialogue is played on a tree of addresses (loci) by two participants, the
Proponent (P) and the Opponent (O). Each participant owns a design: an ordered
chronicle of polarized acts, each played at a locus and opening sub-loci for the
other side. Playing two designs against each other yields an interaction that
converges on a daimon (†), diverges on incompatible acts, or gets stuck.

# Concept

The engine keeps two representations of the same behavior and moves between them:

  - Designs are what participants write, act by act, under a single-writer discipline.
  - Strategies are sets of plays, computed from the disputes of a design against its
    counter-designs and closed under the innocence rule.

The four correspondence checks (plays to views, views to plays, disputes to
chronicles and back) verify that the two representations agree.

# Usage

	eng, err := ludics.New(ludics.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	prop, _ := eng.CreateDesign(ctx, domain.NewDesign("prop", "budget", "alice", domain.PolarityP))
	prop, _ = eng.AppendAct(ctx, prop.ID, domain.Act{
		Kind: domain.KindProper, Polarity: domain.PolarityP,
		LocusPath: "0", Expression: "the budget is sound", Ramification: []string{"1"},
	})

	set, err := eng.DispByID(ctx, "prop")

Dialogues can also be written as moves (ASSERT, WHY, GROUNDS, CONCEDE, RETRACT,
CLOSE) with OpenDialogue and ApplyMove; each move compiles into acts on the two
designs of the dialogue.

Storage is pluggable through ports.Store: memory, file, redis and sqlite adapters
are provided, and store middleware adds encryption, PII masking, logging and metrics.
*/
package ludics
