package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fruitsalade/rested/internal/config"
	"github.com/fruitsalade/rested/pkg/store"
	"github.com/fruitsalade/rested/pkg/store/badger"
	"github.com/fruitsalade/rested/pkg/store/postgres"
	"github.com/fruitsalade/rested/pkg/store/s3"
)

// openStore creates the cache store selected by cfg.Store.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreFile:
		s, err := store.NewFile(filepath.Join(cfg.CacheDir, "entries"), cfg.MaxCacheSize)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return s, nil
	case config.StoreBadger:
		s, err := badger.Open(badger.Config{Dir: filepath.Join(cfg.CacheDir, "badger")})
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return s, nil
	case config.StorePostgres:
		s, err := postgres.New(ctx, postgres.Config{DatabaseURL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case config.StoreS3:
		s, err := s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
