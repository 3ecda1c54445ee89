package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/tenderwatch/internal/analyze"
	"github.com/TobiSchelling/tenderwatch/internal/config"
	"github.com/TobiSchelling/tenderwatch/internal/database"
	"github.com/TobiSchelling/tenderwatch/internal/extract"
	"github.com/TobiSchelling/tenderwatch/internal/llm"
	"github.com/TobiSchelling/tenderwatch/internal/logging"
	"github.com/TobiSchelling/tenderwatch/internal/retrieve"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "tenderwatch",
	Short:   "Public procurement tender monitoring",
	Long:    "tenderwatch collects tenders from procurement platforms, tracks their changes, retrieves their documents and extracts key clauses.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "info"
		if verbose {
			level = "debug"
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			logging.Init(level, "text")
			return nil
		}

		if err := config.LoadEnv(); err != nil {
			return err
		}
		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if !verbose && cfg.Logging.Level != "" {
			level = cfg.Logging.Level
		}
		logging.Init(level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(closeExpiredCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(tendersCmd)
	rootCmd.AddCommand(platformsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tenderwatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/tenderwatch/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure platforms and the extraction model.")
		fmt.Println("Put GOOGLE_API_KEY in the environment or a .env file to enable extraction.")
		return nil
	},
}

func openDB() (*database.DB, error) {
	if cfg.Database.Driver == database.DriverPostgres {
		dsn := cfg.DatabaseDSN()
		if dsn == "" {
			return nil, fmt.Errorf("database driver is postgres but %s is not set", cfg.Database.DSNEnv)
		}
		return database.Connect(database.DriverPostgres, dsn)
	}
	return database.Open(cfg.DatabasePath())
}

func newDownloader(ctx context.Context, db *database.DB) (*retrieve.Downloader, error) {
	r := retrieve.New(retrieve.OptionsFromConfig(cfg))
	classifier := retrieve.NewClassifier(cfg.Documents.CompilableKeywords, cfg.Documents.InformativeKeywords)

	var archive retrieve.Archiver
	if cfg.Storage.Minio.Enabled {
		m, err := retrieve.NewMinioArchive(cfg.Storage.Minio)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		archive = m
	}
	return retrieve.NewDownloader(db, r, classifier, archive, cfg.Documents.MaxConcurrentDownloads), nil
}

// newExtractor builds the extractor and a cleanup func for the provider.
func newExtractor(ctx context.Context, db *database.DB) (*extract.Extractor, func(), error) {
	provider, err := llm.CreateProvider(ctx, cfg.Level2)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if c, ok := provider.(io.Closer); ok {
			c.Close()
		}
	}

	text := analyze.NewTextExtractor(cfg.Documents.MaxPDFPages, cfg.Documents.MinTextLength)
	e := extract.New(db, provider, analyze.New(text, nil),
		extract.NewGate(cfg.Level2.RequestsPerMinute), extract.OptionsFromConfig(cfg))
	return e, cleanup, nil
}

// optionalExtractor returns nil when extraction is disabled or no provider
// is configured.
func optionalExtractor(ctx context.Context, db *database.DB, disabled bool) (*extract.Extractor, func()) {
	if disabled || !cfg.Level2.Enabled {
		return nil, func() {}
	}
	e, cleanup, err := newExtractor(ctx, db)
	if errors.Is(err, llm.ErrNotConfigured) {
		slog.Warn("extraction disabled", "reason", err)
		return nil, func() {}
	}
	if err != nil {
		slog.Error("extraction disabled", "error", err)
		return nil, func() {}
	}
	return e, cleanup
}
