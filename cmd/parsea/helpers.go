package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parsea-dev/parsea/internal/cancel"
	"github.com/parsea-dev/parsea/internal/llm"
	"github.com/parsea-dev/parsea/internal/storage"
	"github.com/spf13/viper"
)

func databasePath() (string, error) {
	if path := viper.GetString("database.path"); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "parsea", "parsea.db"), nil
}

// openStorage opens the configured database and brings its schema current.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath, err := databasePath()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func buildRegistry() (cancel.Registry, error) {
	return cancel.NewFileRegistry(viper.GetString("cancellation.dir"))
}

func buildClassifier(registry cancel.Registry) (*llm.Classifier, error) {
	cfg := llm.Config{
		Provider:    viper.GetString("llm.provider"),
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
		CacheTTL:    viper.GetDuration("llm.cache_ttl"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
	}
	if cfg.Provider == "" {
		cfg.Provider = "anthropic"
	}

	classifier, err := llm.NewClassifier(cfg, registry, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}
	return classifier, nil
}
