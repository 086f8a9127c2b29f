package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/parsea-dev/parsea/internal/auth"
	"github.com/parsea-dev/parsea/internal/common"
	"github.com/parsea-dev/parsea/internal/pdfext"
	"github.com/parsea-dev/parsea/internal/pipeline"
	"github.com/parsea-dev/parsea/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE:  runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	secret := viper.GetString("auth.secret")
	if secret == "" {
		return common.NewUserError(
			"auth secret is not configured; set PARSEA_AUTH_SECRET or auth.secret",
			common.ErrMissingConfig)
	}

	issuer := viper.GetString("auth.issuer")
	if issuer == "" {
		issuer = "parsea"
	}
	tokens, err := auth.NewTokenService(secret, issuer, viper.GetDuration("auth.token_duration"))
	if err != nil {
		return err
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	registry, err := buildRegistry()
	if err != nil {
		return err
	}

	classifier, err := buildClassifier(registry)
	if err != nil {
		return err
	}
	defer classifier.Close()

	p := pipeline.New(classifier, pdfext.NewExtractor(), store, registry, slog.Default())

	srv := server.New(server.Config{
		Addr:          viper.GetString("server.addr"),
		MaxUploadSize: viper.GetInt64("server.max_upload_size"),
	}, store, p, registry, tokens, slog.Default())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			common.LogError(err, "server stopped unexpectedly", common.Fields{
				"addr": viper.GetString("server.addr"),
			})
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancelFn := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelFn()
		return srv.Shutdown(shutdownCtx)
	}
}
