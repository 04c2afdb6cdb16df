package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/andrej220/netsurvey/internal/lg"
	"github.com/andrej220/netsurvey/internal/persistence"
	"github.com/andrej220/netsurvey/internal/processor"
	"github.com/andrej220/netsurvey/internal/prompt"
	"github.com/andrej220/netsurvey/pkg/collect"
	"github.com/andrej220/netsurvey/pkg/config"
	"github.com/andrej220/netsurvey/pkg/executor"
	"github.com/andrej220/netsurvey/pkg/pipeline"
	"github.com/andrej220/netsurvey/pkg/publish"
	"github.com/andrej220/netsurvey/pkg/report"
	"github.com/andrej220/netsurvey/pkg/router"
	"github.com/andrej220/netsurvey/pkg/store"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	hostsFile  string
	debug      bool
	logFormat  string

	// dialer replaces the SSH dialer when set.
	dialer executor.Dialer
	// prompter replaces the terminal prompt when set.
	prompter collect.Prompter
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{})
}

func newRootCmdWith(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "netsurvey",
		Short: "Survey network devices and compare their neighbors against a reference table",
		Long: `Connects to every device listed in the hosts file over SSH, detects its
vendor, collects identity, LLDP neighbor and transceiver output, writes the
cleaned logs and produces an Excel comparison against the reference table.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSurvey(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "json", "log format: json or console")
	cmd.Flags().StringVar(&opts.hostsFile, "hosts", config.DefaultHostsFile, "file with one device address per line")

	cmd.AddCommand(newConfigCmd(), newRunsCmd(opts))
	return cmd
}

// resolveConfig loads the configuration and applies the flags the user set.
func resolveConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("hosts") {
		cfg.HostsFile = opts.hostsFile
	}
	if flags.Changed("debug") {
		cfg.Log.Debug = opts.debug
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) lg.Logger {
	return lg.New(&lg.Config{ServiceName: SERVICENAME, Debug: cfg.Log.Debug, Format: cfg.Log.Format})
}

func runSurvey(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	defer logger.Sync()
	ctx := lg.Attach(cmd.Context(), logger)

	p, closeSinks, err := buildPipeline(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	res, err := p.RunFile(ctx, cfg.HostsFile)
	return printOutcome(cmd.OutOrStdout(), res, err)
}

func buildPipeline(ctx context.Context, cfg config.Config, opts *rootOptions, logger lg.Logger) (*pipeline.Pipeline, func(), error) {
	dialer := opts.dialer
	if dialer == nil {
		dialer = executor.NewSSHDialer(logger)
	}
	prompter := opts.prompter
	if prompter == nil {
		prompter = prompt.NewStdio()
	}

	cleaner := processor.NewCleaner()
	collector := collect.New(dialer, router.New(cleaner),
		collect.WithProfile(cfg.Profile()),
		collect.WithPrompter(prompter),
	)

	sinks := []pipeline.Sink{persistence.NewTextSink(cfg.OutputDir, cleaner)}
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("Close failed", lg.Err(err))
			}
		}
	}

	if cfg.KafkaEnabled() {
		pub := publish.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		sinks = append(sinks, pub)
		closers = append(closers, pub)
	}
	if cfg.MongoEnabled() {
		st, err := store.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("mongo store: %w", err)
		}
		sinks = append(sinks, st)
		closers = append(closers, st)
	}

	p := &pipeline.Pipeline{
		Collector:   collector,
		Sinks:       sinks,
		Reporter:    report.New(cfg.ReferenceFile, cfg.ReportDir, logger),
		Credentials: cfg.DeviceCredentials(),
	}
	return p, closeAll, nil
}

// printOutcome prints the operator-facing outcome of a run.
func printOutcome(out io.Writer, res *pipeline.Result, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrNoAddresses):
		fmt.Fprintln(out, "No IP addresses found")
	case errors.Is(err, pipeline.ErrNothingCollected):
		fmt.Fprintln(out, "No logs were collected.")
	case errors.Is(err, pipeline.ErrNothingParsed):
		fmt.Fprintln(out, "No data was parsed from logs.")
	case err != nil:
		return err
	case res.ReportPath != "":
		fmt.Fprintf(out, "Comparison results saved to %s\n", res.ReportPath)
	}
	return nil
}
