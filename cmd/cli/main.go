package main

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nickyhof/storeadapter"
	"github.com/nickyhof/storeadapter/adapter"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	if err := newRootCommand(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	v          *viper.Viper
	configPath string
	debug      bool
}

func newRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	opts := &rootOptions{v: adapter.NewViper()}

	cmd := &cobra.Command{
		Use:          "storeadapter",
		Short:        "Interactive SQL shell for git-backed stores",
		Version:      Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, closeFn, err := opts.open(out)
			if err != nil {
				return err
			}
			defer closeFn()

			cli.historyFile = historyPath()
			cli.loadHistory()
			defer cli.saveHistory()

			cli.printBanner()
			cli.Run(in, true)
			return nil
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (yaml, json or toml)")
	flags.BoolVar(&opts.debug, "debug", false, "log every statement")
	flags.String("url", "", "store url (memory://name, file:///dir, tcp://host:port)")
	flags.String("app", "", "app perspective to work through")
	flags.String("token", "", "access token")
	flags.String("token-file", "", "file, http(s) or s3 url holding the access token")
	flags.String("username", "", "username for commits")
	flags.Int("statement-limit", adapter.DefaultStatementLimit, "prepared statement cache size, 0 disables")
	flags.Bool("prepared-statements", true, "prepare statements instead of interpolating binds")
	for key, flag := range map[string]string{
		"url":                 "url",
		"app":                 "app",
		"token":               "token",
		"token_file":          "token-file",
		"username":            "username",
		"statement_limit":     "statement-limit",
		"prepared_statements": "prepared-statements",
	} {
		_ = opts.v.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(newExecCommand(opts, out))
	return cmd
}

func newExecCommand(opts *rootOptions, out io.Writer) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "exec [sql]",
		Short: "Execute statements and exit",
		Example: `  storeadapter exec --url memory://dev --app shop 'SHOW TABLES'
  storeadapter exec --url tcp://localhost:3306 --app shop --file seed.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" && len(args) == 0 {
				return errors.New("nothing to execute: pass sql or --file")
			}

			cli, closeFn, err := opts.open(out)
			if err != nil {
				return err
			}
			defer closeFn()

			if file != "" {
				return cli.ImportFile(file)
			}
			for _, statement := range splitStatements(strings.Join(args, " ")) {
				if err := cli.Execute(statement); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "SQL file to execute")
	return cmd
}

func (opts *rootOptions) logger() (*zap.Logger, error) {
	if opts.debug {
		return zap.NewDevelopment()
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return config.Build()
}

// open loads the configuration and connects an adapter.
func (opts *rootOptions) open(out io.Writer) (*CLI, func(), error) {
	config, err := adapter.LoadConfigWith(opts.v, opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := opts.logger()
	if err != nil {
		return nil, nil, err
	}

	a, err := storeadapter.Open(config, adapter.WithLogger(logger))
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return NewCLI(a, out), func() {
		a.Disconnect()
		_ = logger.Sync()
	}, nil
}
