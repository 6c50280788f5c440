package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nickyhof/storeadapter/server"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := server.NewViper()
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:          "storeadapter-server",
		Short:        "Serve a git-backed store over TCP",
		Version:      Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := server.LoadConfigWith(v, configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config, logger, nil)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (yaml, json or toml)")
	flags.BoolVar(&debug, "debug", false, "development logging")
	flags.String("addr", ":3306", "address to listen on")
	flags.String("base-dir", "", "store directory (memory if empty)")
	flags.String("git-url", "", "remote to clone an empty store from")
	flags.String("tls-cert", "", "TLS certificate file")
	flags.String("tls-key", "", "TLS key file")
	for key, flag := range map[string]string{
		"addr":          "addr",
		"base_dir":      "base-dir",
		"git_url":       "git-url",
		"tls.cert_file": "tls-cert",
		"tls.key_file":  "tls-key",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// serve runs the server until ctx is done. ready, when set, receives the
// listening address.
func serve(ctx context.Context, config server.Config, logger *zap.Logger, ready chan<- string) error {
	persistence, err := config.OpenPersistence()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	identity := config.CoreIdentity()
	if err := server.EnsurePerspectives(persistence, config.Perspectives, identity); err != nil {
		return fmt.Errorf("failed to create perspectives: %w", err)
	}

	srv := server.NewServerWithAuth(persistence, identity, config.Auth, server.WithLogger(logger))
	if config.TLS.Enabled() {
		err = srv.StartTLS(config.Addr, config.TLS.CertFile, config.TLS.KeyFile)
	} else {
		err = srv.Start(config.Addr)
	}
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Info("server started",
		zap.String("version", Version),
		zap.String("addr", srv.Addr()),
		zap.Bool("tls", srv.TLSEnabled()),
		zap.Bool("auth", srv.AuthEnabled()),
		zap.String("base_dir", config.BaseDir))
	if ready != nil {
		ready <- srv.Addr()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return srv.Stop()
}
