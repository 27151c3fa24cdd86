package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/ludics/internal/presentation/tui"
	"github.com/aretw0/ludics/internal/strategy"
	"github.com/aretw0/ludics/pkg/domain"
)

func newStepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "step <design> <counter-design>",
		Short: "Run the interaction between two designs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			in, err := eng.StepByID(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.print(cmd, in, func() string { return tui.InteractionReport(in) })
		},
	}
}

func newDispCmd(a *app) *cobra.Command {
	var counters []string
	cmd := &cobra.Command{
		Use:   "disp <design>",
		Short: "Compute the disputes of a design against its counter-designs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			set, err := eng.DispByID(cmd.Context(), args[0], counters...)
			if err != nil {
				return err
			}
			return a.print(cmd, set, func() string { return tui.DisputeReport(set) })
		},
	}
	cmd.Flags().StringSliceVar(&counters, "counter", nil, "Counter-design IDs (default: every opposite design of the dialogue)")
	return cmd
}

func newPlaysCmd(a *app) *cobra.Command {
	var (
		counters  []string
		viewsFile string
	)
	cmd := &cobra.Command{
		Use:   "plays [design]",
		Short: "Close a set of views into the smallest innocent strategy",
		Long: `Computes Plays(V). The views are read from --views (a JSON array), or taken
from the strategy of the given design.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if viewsFile == "" && len(args) == 0 {
				return fmt.Errorf("either a design or --views is required")
			}
			eng, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			var (
				views    []domain.View
				designID string
			)
			if viewsFile != "" {
				data, err := os.ReadFile(viewsFile)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &views); err != nil {
					return fmt.Errorf("invalid views file: %w", err)
				}
			} else {
				designID = args[0]
				s, _, err := eng.StrategyByID(cmd.Context(), designID, counters...)
				if err != nil {
					return err
				}
				views = strategy.Views(s)
			}

			res, err := eng.ComputePlays(cmd.Context(), views)
			if err != nil {
				return err
			}
			s := strategy.Build("plays", designID, res)
			return a.print(cmd, s, func() string { return tui.StrategyReport(s) })
		},
	}
	cmd.Flags().StringSliceVar(&counters, "counter", nil, "Counter-design IDs")
	cmd.Flags().StringVar(&viewsFile, "views", "", "JSON file holding the views")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	var counters []string
	cmd := &cobra.Command{
		Use:   "check <design>",
		Short: "Check the four design/strategy correspondences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			rep, err := eng.CheckByID(cmd.Context(), args[0], counters...)
			if err != nil {
				return err
			}
			if err := a.print(cmd, rep, func() string { return tui.CheckReport(rep) }); err != nil {
				return err
			}
			if !rep.AllHold {
				return errChecksFailed
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&counters, "counter", nil, "Counter-design IDs")
	return cmd
}

func newRoundTripCmd(a *app) *cobra.Command {
	var counters []string
	cmd := &cobra.Command{
		Use:   "roundtrip <design>",
		Short: "Convert a design to its strategy and back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			rt, err := eng.RoundTripByID(cmd.Context(), args[0], counters...)
			if err != nil {
				return err
			}
			return a.print(cmd, rt, func() string {
				return tui.RoundTripReport("Round trip of "+args[0], rt.Preserved, rt.Missing, rt.Extra)
			})
		},
	}
	cmd.Flags().StringSliceVar(&counters, "counter", nil, "Counter-design IDs")
	return cmd
}

func newBehaviourCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "behaviour <dialogue> <design>...",
		Short: "Close designs under biorthogonality within their dialogue",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			c, err := eng.BehaviourByID(cmd.Context(), args[0], args[1:]...)
			if err != nil {
				return err
			}
			return a.print(cmd, c, func() string { return tui.BehaviourReport(c) })
		},
	}
}

func newIncarnationCmd(a *app) *cobra.Command {
	var counters []string
	cmd := &cobra.Command{
		Use:   "incarnation <design>",
		Short: "Show the part of a design its orthogonal counter-designs visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			inc, err := eng.IncarnationByID(cmd.Context(), args[0], counters...)
			if err != nil {
				return err
			}
			return a.print(cmd, inc, func() string { return tui.IncarnationReport(inc) })
		},
	}
	cmd.Flags().StringSliceVar(&counters, "counter", nil, "Counter-design IDs")
	return cmd
}
