// Package main provides the asnlookup CLI. It resolves a domain, asks the Team
// Cymru WHOIS service about the first address and prints the result.
package main

import (
	"asnlookup/internal/config"
	"asnlookup/internal/lookup"
	"asnlookup/pkg/logger"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serviceFactory builds the lookup service for cfg along with a cleanup function.
type serviceFactory func(ctx context.Context, cfg *config.Config) (lookup.Service, func(), error)

// app holds the dependencies of the root command.
type app struct {
	// program is printed in the usage line.
	program string
	// stdout receives the lookup result and nothing else.
	stdout io.Writer
	// newService is called once the domain argument is known to be valid.
	newService serviceFactory
}

func rootCommand(a app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "asnlookup <domain>",
		Short:         "Prints AS routing information for the first address of a domain",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				_, err := fmt.Fprintf(a.stdout, "Usage: %s <domain>\n", a.program)

				return err
			}

			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Setup(cfg.Environment, cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, closeSvc, err := a.newService(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeSvc()

			res, err := svc.Lookup(ctx, args[0])
			if err != nil {
				return err
			}

			return printLookup(a.stdout, res)
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Config File Path")

	return cmd
}

// run executes the root command with args and returns the process exit code.
// Failures are reported as a single line on stderr.
func run(ctx context.Context, a app, args []string, stderr io.Writer) int {
	cmd := rootCommand(a)
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)

		return 1
	}

	return 0
}

func main() {
	ctx := context.Background()

	defer func() {
		if p := recover(); p != nil {
			logger.Error(ctx, "captured panic, exiting...", zap.Any("panic", p))
			_ = logger.Get(ctx).Sync()

			panic(p)
		}
	}()

	code := run(ctx, app{
		program:    os.Args[0],
		stdout:     os.Stdout,
		newService: newService,
	}, os.Args[1:], os.Stderr)

	_ = logger.Get(ctx).Sync()
	if code != 0 {
		os.Exit(code) //nolint: gocritic
	}
}
