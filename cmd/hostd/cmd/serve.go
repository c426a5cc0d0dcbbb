package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gmfc/helios-os/internal/api"
	"github.com/gmfc/helios-os/internal/bridge"
	"github.com/gmfc/helios-os/internal/config"
	"github.com/gmfc/helios-os/internal/isolate"
	"github.com/gmfc/helios-os/internal/netfabric"
	"github.com/gmfc/helios-os/internal/persistence"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the helios-os host daemon",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := persistence.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("init persistence: %w", err)
	}
	log.Printf("helios-os: data directory %s", cfg.DataDir)

	fabric := netfabric.New()

	hub := api.NewHub()
	br := bridge.New(hub.Broadcast)
	runtime := isolate.NewRuntime(br, cfg.MaxIsolateWorkers)

	server := api.NewServer(api.Deps{
		Hub:              hub,
		Store:            store,
		Fabric:           fabric,
		Bridge:           br,
		Runtime:          runtime,
		APIKey:           cfg.APIKey,
		DefaultQuotaMS:   cfg.DefaultQuotaMS,
		DefaultQuotaMemB: cfg.DefaultQuotaMemB,
		DefaultSliceMS:   cfg.DefaultSliceMS,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("helios-os: starting host daemon on %s", addr)

	go func() {
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Printf("helios-os: server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("helios-os: shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
