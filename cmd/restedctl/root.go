package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fruitsalade/rested/internal/auth"
	"github.com/fruitsalade/rested/internal/config"
	"github.com/fruitsalade/rested/internal/logging"
	"github.com/fruitsalade/rested/pkg/rested"
	"github.com/fruitsalade/rested/pkg/store"
	"github.com/fruitsalade/rested/pkg/transport"
)

var (
	// Persistent flags available to all subcommands
	cfgFile   string
	baseURLs  []string
	storeName string
	offline   bool
	logLevel  string

	app *App
)

// App holds the client built from the loaded configuration.
type App struct {
	Config *config.Config
	Client *rested.Client
	Store  store.Store
}

var rootCmd = &cobra.Command{
	Use:   "restedctl",
	Short: "restedctl reads and writes REST resources through a local cache",
	Long: `restedctl fetches REST resources, keeps them in a persistent cache and
serves reads from that cache while the server is unreachable.

Configuration can be provided via flags, environment variables (RESTED_*),
or a YAML configuration file.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&baseURLs, "base-url", nil, "API base URL (repeatable, overrides RESTED_BASE_URLS)")
	rootCmd.PersistentFlags().StringVar(&storeName, "store", "", "Cache store: memory, file, badger, postgres or s3")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Serve reads from the cache and queue writes")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	if cfg.Token == "" {
		if tf, err := auth.LoadToken(auth.TokenFilePath()); err == nil {
			if tf.IsExpired(0) {
				logging.Warn("saved token has expired, run restedctl login",
					zap.Time("expired_at", tf.ExpiresAt))
			} else {
				cfg.Token = tf.Token
			}
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	logging.Debug("cache store opened",
		logging.String("store", cfg.Store),
		logging.Int("base_urls", len(cfg.BaseURLs)))

	t := transport.NewHTTP(transport.Config{Timeout: cfg.Timeout})
	app = &App{
		Config: cfg,
		Client: rested.NewClient(cfg.Rested(), t, s),
		Store:  s,
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if len(baseURLs) > 0 {
		os.Setenv("RESTED_BASE_URLS", strings.Join(baseURLs, ","))
	}
	if storeName != "" {
		os.Setenv("RESTED_STORE", storeName)
	}
	if logLevel != "" {
		os.Setenv("LOG_LEVEL", logLevel)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if offline {
		cfg.Offline = true
	}
	return cfg, nil
}

func teardown() error {
	defer logging.Sync()
	if app == nil {
		return nil
	}
	if c, ok := app.Store.(store.Closer); ok {
		return c.Close()
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
