package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/aptemsync/internal/config"
	"github.com/dbsmedya/aptemsync/internal/emit"
	"github.com/dbsmedya/aptemsync/internal/extract"
	"github.com/dbsmedya/aptemsync/internal/httpclient"
	"github.com/dbsmedya/aptemsync/internal/logger"
	"github.com/dbsmedya/aptemsync/internal/replicate"
	"github.com/dbsmedya/aptemsync/internal/state"
)

var (
	syncEntities    []string
	syncConcurrency int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Extract entity data from the Aptem API",
	Long: `Sync discovers the tenant's entities and extracts their records as
newline-delimited JSON, resuming each entity from its persisted cursor.

The sync process follows these steps:
  1. Fetch and parse the $metadata document
  2. Select entities (discovered minus excluded, or --entity list)
  3. Page through each entity, incremental where UpdatedDate exists
  4. Unpack configured embedded child collections from parent records
  5. Checkpoint the cursor after every page

Example:
  aptemsync sync --config aptemsync.yaml
  aptemsync sync --config aptemsync.yaml --entity Learners --entity Users`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringSliceVarP(&syncEntities, "entity", "e", nil,
		"Restrict the run to named entities (repeatable)")
	syncCmd.Flags().IntVar(&syncConcurrency, "concurrency", 1,
		"Number of entities to extract in parallel")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply CLI overrides
	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.StartDate, overrides.MaxRetries)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize logger
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Infow("Starting sync operation",
		"tenant", cfg.TenantName,
		"config", configFile,
	)

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn("Received shutdown signal - completing current page...")
		cancel()
	}()

	// Cursor store
	store, closeStore, err := openStateStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Record output
	emitter, closeEmitter, err := openEmitter(cfg)
	if err != nil {
		return err
	}
	defer closeEmitter()

	client := httpclient.New(httpclient.Config{
		BaseURL:         cfg.BaseURL(),
		APIToken:        cfg.APIToken,
		Timeout:         time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		MetadataTimeout: time.Duration(cfg.HTTP.MetadataTimeoutSeconds) * time.Second,
		MaxRetries:      cfg.HTTP.MaxRetries,
		RateLimit:       cfg.HTTP.RateLimit,
		RateBurst:       cfg.HTTP.RateBurst,
		RetryClassifier: replicate.RetryableBadRequest,
	})

	runner := extract.NewRunner(cfg, client, store, log, emitter)

	result, err := runner.Run(ctx, syncConcurrency, syncEntities)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Sync operation cancelled by user")
			return nil
		}
		return fmt.Errorf("sync operation failed: %w", err)
	}

	// Display results
	fmt.Printf("\n=== Sync Complete ===\n")
	fmt.Printf("Run ID: %s\n", result.RunID)
	fmt.Printf("Entities: %d\n", result.Entities)
	fmt.Printf("Records: %d\n", result.Records)
	fmt.Printf("Duration: %s\n", result.Duration)

	return nil
}

// openStateStore builds the cursor store named by the configuration. The
// MySQL backend creates its checkpoint table on first use.
func openStateStore(ctx context.Context, cfg *config.Config) (state.Store, func(), error) {
	switch cfg.State.Backend {
	case "mysql":
		store, err := state.OpenSQLStore(cfg.State.DSN, cfg.State.Table)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open state database: %w", err)
		}
		if err := store.InitializeTable(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("failed to initialize state table: %w", err)
		}
		return store, func() { store.Close() }, nil
	default:
		store, err := state.NewFileStore(cfg.State.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open state file: %w", err)
		}
		return store, func() {}, nil
	}
}

// openEmitter builds the record writer: per-entity NDJSON files when an
// output directory is configured, an enveloped stdout stream otherwise.
func openEmitter(cfg *config.Config) (extract.Emitter, func(), error) {
	if cfg.Output.Directory == "" {
		return emit.NewStreamWriter(os.Stdout), func() {}, nil
	}
	writer, err := emit.NewDirectoryWriter(cfg.Output.Directory)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open output directory: %w", err)
	}
	return writer, func() { writer.Close() }, nil
}
