package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/yozoon/internal/blockchain/solbc"
	"github.com/rovshanmuradov/yozoon/internal/dex/yozoon"
	"github.com/rovshanmuradov/yozoon/internal/events"
)

const busShutdownTimeout = 5 * time.Second

func parseEventTypes(names []string) ([]events.EventType, error) {
	known := make(map[events.EventType]bool)
	for _, t := range events.AllTypes() {
		known[t] = true
	}
	out := make([]events.EventType, 0, len(names))
	for _, n := range names {
		t := events.EventType(n)
		if !known[t] {
			return nil, fmt.Errorf("unknown event type %q", n)
		}
		out = append(out, t)
	}
	return out, nil
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		only        []string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream program events as they land",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), "watch", func(ctx context.Context, log *zap.Logger) error {
				types, err := parseEventTypes(only)
				if err != nil {
					return err
				}
				programID, err := a.programID()
				if err != nil {
					return err
				}

				bus := events.NewBus(log, 0)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), busShutdownTimeout)
					defer cancel()
					if err := bus.Shutdown(shutdownCtx); err != nil {
						log.Warn("Event bus shutdown", zap.Error(err))
					}
				}()

				show := events.HandlerFunc(func(_ context.Context, ev events.Event) error {
					fmt.Fprintf(a.out, "%s %s\n", ev.Timestamp().Format(time.RFC3339), a.describeEvent(ev))
					return nil
				})
				if len(types) == 0 {
					bus.SubscribeAll(show)
				}
				for _, t := range types {
					bus.Subscribe(t, show)
				}

				if metricsAddr != "" {
					bus.SubscribeAll(a.metrics)
					stop := a.serveMetrics(metricsAddr, log)
					defer stop()
				}

				stream := solbc.NewLogStream(a.cfg.WebSocketURL, a.cfg.CommitmentType(), log)
				return stream.Run(ctx, programID, func(n solbc.LogNotification) error {
					if n.Failed {
						log.Debug("Skipping failed transaction", zap.String("signature", n.Signature.String()))
						return nil
					}
					evs, err := yozoon.ParseEvents(programID, n.Logs)
					if err != nil {
						log.Warn("Failed to decode events",
							zap.String("signature", n.Signature.String()), zap.Error(err))
					}
					for _, ev := range evs {
						if err := bus.Publish(ev); err != nil {
							log.Warn("Event dropped", zap.String("type", string(ev.Type())), zap.Error(err))
						}
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().StringSliceVar(&only, "type", nil, "only these event types, e.g. TokenPurchase,TokenSale")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9100")
	return cmd
}

// serveMetrics exposes the collector on addr/metrics until stop is called.
func (a *app) serveMetrics(addr string, log *zap.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.HTTPHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), busShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("Metrics server shutdown", zap.Error(err))
		}
	}
}
