package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/manifold-agent/manifold"
	"github.com/manifold-agent/manifold/pkg/adapters/a2a"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve this agent to remote peers",
	Long: `Starts the agent and exposes it over the A2A protocol: the agent card at
/.well-known/agent-card, message/send for running turns, and Prometheus
metrics at /metrics. Cancellation of a running turn is rejected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := prometheus.NewRegistry()
		agent, cfg, err := buildAgent(cmd, manifold.WithMetricsRegistry(registry))
		if err != nil {
			return err
		}
		defer agent.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Serve.Addr
		}

		card := cfg.Serve.Card
		if card.Name == "" {
			card.Name = "manifold-agent"
		}
		if card.Version == "" {
			card.Version = manifold.Version
		}

		surface := a2a.NewServer(card, agent,
			a2a.WithServerLogger(loggerFromFlags(cmd)),
			a2a.WithMetricsGatherer(registry),
		)
		srv := &http.Server{Addr: addr, Handler: surface.Router()}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("Serving agent %q on %s\n", card.Name, addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			fmt.Printf("\nShutting down... Signal: %v\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				if err := srv.Close(); err != nil {
					return fmt.Errorf("force close: %w", err)
				}
			}
			fmt.Println("Agent stopped gracefully")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (overrides serve.addr from config)")
}
