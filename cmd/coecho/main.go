// Command coecho is a line echo server driven by the cosched
// scheduler: one task accepts connections and one task per connection
// echoes every complete line back to the client.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/webriots/cosched"
	"github.com/webriots/cosched/internal/config"
	"github.com/webriots/cosched/internal/logging"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "coecho",
		Short:        "Line echo server on a cooperative scheduler",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept connections and echo every line back",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "path to a TOML config file")
	serveCmd.Flags().String("addr", "", "listen address (overrides config)")
	serveCmd.Flags().String("log-level", "", "log level (debug, info, warn, error)")
	serveCmd.Flags().String("log-format", "", "log format (text, json)")
	serveCmd.Flags().Duration("max-block", 0, "cap on an idle poll (0 blocks indefinitely)")
	serveCmd.Flags().Int("max-conns", 0, "exit after serving this many connections (0 serves forever)")
	serveCmd.Flags().Bool("debug", false, "shorthand for --log-level=debug")

	rootCmd.AddCommand(serveCmd)
	return rootCmd
}

// loadConfig reads the config file named by --config, if any, and
// applies the flags the user set on top of it.
func loadConfig(cmd *cobra.Command) (config.EchoConfig, error) {
	flags := cmd.Flags()

	cfg := config.DefaultEchoConfig()
	if path, _ := flags.GetString("config"); path != "" {
		var err error
		if cfg, err = config.LoadEchoConfig(path); err != nil {
			return config.EchoConfig{}, err
		}
	}

	if flags.Changed("addr") {
		cfg.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("max-block") {
		d, _ := flags.GetDuration("max-block")
		cfg.MaxBlock = d.String()
	}
	if flags.Changed("max-conns") {
		cfg.MaxConns, _ = flags.GetInt("max-conns")
	}
	if debug, _ := flags.GetBool("debug"); debug {
		cfg.LogLevel = "debug"
	}

	if _, err := cfg.MaxBlockDuration(); err != nil {
		return config.EchoConfig{}, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg, os.Stderr)
	if err != nil {
		return err
	}
	maxBlock, _ := cfg.MaxBlockDuration()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer ln.Close()

	sched, err := cosched.New(cosched.Config{
		MaxBlock: maxBlock,
		Logger:   logger.With("component", "scheduler"),
	})
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer sched.Close()

	srv := &server{
		ln:       ln.(*net.TCPListener),
		log:      logger,
		maxConns: cfg.MaxConns,
	}
	sched.Spawn(srv.accept())

	logger.Info("serving", "addr", ln.Addr().String(), "max_conns", cfg.MaxConns)

	err = sched.Run(cmd.Context())
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
