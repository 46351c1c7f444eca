package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/indexscout/index-scout/internal/analyzer"
	"github.com/indexscout/index-scout/internal/catalog"
	"github.com/indexscout/index-scout/internal/config"
	"github.com/indexscout/index-scout/internal/pkg/logger"
	"github.com/indexscout/index-scout/internal/report"
	"github.com/indexscout/index-scout/internal/source"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "index-scout",
		Short: "Index Scout - missing index detection for MongoDB workloads",
		Long: `Index Scout analyzes query activity from a profiling collection, an
event log, or a streaming transport, and recommends compound indexes for
query shapes that no existing index supports.

Run 'index-scout analyze' for a one-shot batch run.
Run 'index-scout watch' to follow live activity until interrupted.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "include per-event decisions in the report")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")

	rootCmd.AddCommand(
		analyzeCmd(),
		watchCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a finite event source once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, false)
		},
	}
	addSourceFlags(cmd)
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live query activity until timeout or interrupt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, true)
		},
	}
	addSourceFlags(cmd)
	cmd.Flags().Int("timeout", 0, "stop after this many minutes (0 = run until interrupted)")
	return cmd
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("source", "", "event source type (file, profiler, kafka, redis)")
	cmd.Flags().String("file", "", "path to an extended-JSON event log")
	cmd.Flags().String("uri", "", "mongodb connection string")
	cmd.Flags().String("db", "", "database whose system.profile to read")
	cmd.Flags().StringSliceP("namespace", "n", nil, "namespace patterns to analyze (db.coll, db.*, *.coll)")
	cmd.Flags().Int("slow-ms", -1, "only analyze queries at least this slow")
	cmd.Flags().Bool("no-verify", false, "skip index verification; every shape becomes a recommendation")
}

// run wires configuration, source, and catalog into one analyzer run.
func run(cmd *cobra.Command, watch bool) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cmd, configPath, watch)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One client serves both the profiler source and the index catalog.
	var client *mongo.Client
	needsMongo := cfg.Source.Type == "profiler" || cfg.Run.Verify
	if needsMongo {
		client, err = connectMongo(ctx, cfg.Source.URI)
		if err != nil {
			return err
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}()
	}

	src, err := source.New(ctx, cfg.Source, source.Options{
		Watch: watch,
		Mongo: client,
		Log:   log,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	var cat *catalog.Catalog
	if cfg.Run.Verify {
		cat = catalog.New(catalog.NewMongoFetcher(client), cfg.Catalog, log)
	} else {
		cat = catalog.NewDisabled()
	}

	a, err := analyzer.New(src, cat, analyzer.Options{
		Namespaces: cfg.Filter.Namespaces,
		SlowTime:   time.Duration(cfg.Filter.SlowMS) * time.Millisecond,
		Timeout:    time.Duration(cfg.Run.TimeoutMin) * time.Minute,
		Verbose:    cfg.Run.Verbose,
	}, log)
	if err != nil {
		return err
	}

	result, runErr := a.Run(ctx)
	if result != nil {
		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			if err := report.JSON(os.Stdout, result); err != nil {
				return err
			}
		} else {
			if err := report.Text(os.Stdout, result); err != nil {
				return err
			}
		}
	}
	return runErr
}

// loadConfig layers command-line flags over file and environment config.
func loadConfig(cmd *cobra.Command, configPath string, watch bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("source"); v != "" {
		cfg.Source.Type = v
	}
	if v, _ := cmd.Flags().GetString("file"); v != "" {
		cfg.Source.Type = "file"
		cfg.Source.Path = v
	}
	if v, _ := cmd.Flags().GetString("uri"); v != "" {
		cfg.Source.URI = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.Source.Database = v
	}
	if v, _ := cmd.Flags().GetStringSlice("namespace"); len(v) > 0 {
		cfg.Filter.Namespaces = v
	}
	if v, _ := cmd.Flags().GetInt("slow-ms"); v >= 0 {
		cfg.Filter.SlowMS = v
	}
	if v, _ := cmd.Flags().GetBool("no-verify"); v {
		cfg.Run.Verify = false
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		cfg.Run.Verbose = true
	}
	if watch {
		if v, _ := cmd.Flags().GetInt("timeout"); v > 0 {
			cfg.Run.TimeoutMin = v
		}
	} else {
		// Batch runs end when the source does.
		cfg.Run.TimeoutMin = 0
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", uri, err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping %s: %w", uri, err)
	}
	return client, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("index-scout %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
