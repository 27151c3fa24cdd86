package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/ludics"
	"github.com/aretw0/ludics/internal/cli"
	"github.com/aretw0/ludics/internal/metrics"
	"github.com/aretw0/ludics/internal/presentation/tui"
	httpAdapter "github.com/aretw0/ludics/pkg/adapters/http"
	"github.com/aretw0/ludics/pkg/persistence/middleware"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr, metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serves the engine as a JSON API over HTTP, with an SSE event stream at /events
and Prometheus metrics at /metrics (or on --metrics-addr when set).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			if metricsAddr != "" {
				a.cfg.HTTP.MetricsAddr = metricsAddr
			}
			sc := cli.NewSignalContext(cmd.Context())
			defer sc.Cancel()
			return a.serve(sc, cmd)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics on a separate listener")
	return cmd
}

func (a *app) serve(sc *cli.SignalContext, cmd *cobra.Command) error {
	collector := metrics.New()
	streams := httpAdapter.NewStreamManager()

	eng, err := a.engine(sc,
		ludics.WithLifecycleHooks(collector.Hooks()),
		ludics.WithLifecycleHooks(streams.Hooks()),
		ludics.WithStoreMiddleware(
			middleware.NewMetricsMiddleware(middleware.NewStoreMetrics(collector.Registry())),
			middleware.NewLoggingMiddleware(a.logger),
		),
	)
	if err != nil {
		return err
	}
	defer eng.Close()

	opts := []httpAdapter.Option{httpAdapter.WithStreams(streams), httpAdapter.WithLogger(a.logger)}
	servers := []*http.Server{}
	if a.cfg.HTTP.MetricsAddr == "" {
		opts = append(opts, httpAdapter.WithMetricsHandler(collector.Handler()))
	} else {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		servers = append(servers, &http.Server{Addr: a.cfg.HTTP.MetricsAddr, Handler: mux, ReadHeaderTimeout: shutdownTimeout})
	}
	servers = append(servers, &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           httpAdapter.NewHandler(eng, opts...),
		ReadHeaderTimeout: shutdownTimeout,
	})

	tui.PrintBanner(cmd.ErrOrStderr(), strings.TrimSpace(ludics.Version))

	g, ctx := errgroup.WithContext(sc)
	for _, srv := range servers {
		g.Go(func() error {
			a.logger.Info("listening", "addr", srv.Addr, "store", a.cfg.Store.Driver)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		if sig := sc.Signal(); sig != nil {
			a.logger.Info("shutting down", "signal", sig.String())
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("graceful shutdown of %s did not complete: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
