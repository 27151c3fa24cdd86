package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/ludics/internal/presentation/graph"
)

// newGraphCmd exports Mermaid diagrams of a design or of its disputes.
func newGraphCmd(a *app) *cobra.Command {
	var (
		against  string
		disputes bool
		counters []string
	)
	cmd := &cobra.Command{
		Use:   "graph <design>",
		Short: "Export a Mermaid diagram of a design or its disputes",
		Long: `Outputs a Mermaid diagram (graph TD) of the design's locus tree. With --against,
the loci visited by the interaction are highlighted. With --disputes, a sequence
diagram of every dispute is printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := a.engine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			if disputes {
				set, err := eng.DispByID(ctx, args[0], counters...)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), graph.DisputeMermaid(set))
				return err
			}

			d, err := eng.GetDesign(ctx, args[0])
			if err != nil {
				return err
			}
			var overlay *graph.Overlay
			if against != "" {
				in, err := eng.StepByID(ctx, args[0], against)
				if err != nil {
					return err
				}
				overlay = graph.OverlayFor(in)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), graph.DesignMermaid(d, overlay))
			return err
		},
	}
	cmd.Flags().StringVar(&against, "against", "", "Counter-design whose interaction is overlaid")
	cmd.Flags().BoolVar(&disputes, "disputes", false, "Print the disputes as a sequence diagram")
	cmd.Flags().StringSliceVar(&counters, "counter", nil, "Counter-design IDs for --disputes")
	return cmd
}
