package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/dataguardian/agent/internal/config"
	"github.com/dataguardian/agent/internal/ledger"
	"github.com/dataguardian/agent/internal/service_registry"
	"github.com/dataguardian/agent/internal/store"
	"github.com/dataguardian/agent/pkg/file"
	"github.com/dataguardian/agent/pkg/notify"
	"github.com/dataguardian/agent/pkg/procio"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          "dataguardian",
		Short:        "Daemon that tracks per-application disk I/O and alerts on excessive usage",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the monitoring daemon until interrupted",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDaemon()
			},
		},
		&cobra.Command{
			Use:   "usage",
			Short: "Print the persisted usage snapshot",
			RunE: func(cmd *cobra.Command, args []string) error {
				return printUsage()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the agent version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon() error {
	// Set up structured logging
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()

	// Load and validate configuration
	settings, err := config.Load(configFile)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	if level, err := zerolog.ParseLevel(settings.LogLevel); err == nil {
		log = log.Level(level)
	}

	fileClient := file.NewFileService()
	if err := fileClient.EnsureDir(settings.DataDir); err != nil {
		log.Error().Err(err).Str("dir", settings.DataDir).Msg("Failed to create data directory")
		return err
	}

	// Restore the ledger from the last snapshot, if any
	snapshotStore := store.NewStore(settings.SnapshotPath(), fileClient, log)
	usageLedger := ledger.NewLedger(log)
	usageLedger.Restore(snapshotStore.Load())

	collector := procio.NewGopsutilCollector(log)
	notifier := notify.New(log)

	// Register and start the periodic services
	serviceRegistry := service_registry.NewServiceRegistry(log)
	serviceRegistry.RegisterServices(settings, usageLedger, snapshotStore, collector, notifier)

	log.Info().
		Uint64("data_limit", settings.DataLimit).
		Uint64("check_interval_seconds", settings.CheckIntervalSeconds).
		Uint64("persistence_interval_seconds", settings.PersistenceIntervalSeconds).
		Str("snapshot", settings.SnapshotPath()).
		Int("restored_identities", usageLedger.Len()).
		Msg("Starting Data Guardian service")

	if err := serviceRegistry.StartServices(); err != nil {
		log.Error().Err(err).Msg("Failed to start services")
		return err
	}
	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	serviceRegistry.StopServices()
	return nil
}

func printUsage() error {
	log := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	settings, err := config.Load(configFile)
	if err != nil {
		return err
	}

	snapshotStore := store.NewStore(settings.SnapshotPath(), file.NewFileService(), log)
	records := snapshotStore.Load()
	if len(records) == 0 {
		fmt.Println("No usage data recorded yet.")
		return nil
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].TotalBytes > records[j].TotalBytes
	})

	for _, rec := range records {
		line := fmt.Sprintf("%-32s %10s", rec.Identity, humanize.Bytes(rec.TotalBytes))
		if rec.LastAlertAt != nil {
			line += fmt.Sprintf("  (last alert %s)", humanize.Time(*rec.LastAlertAt))
		}
		fmt.Println(line)
	}
	return nil
}
