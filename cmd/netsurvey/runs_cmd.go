package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andrej220/netsurvey/internal/lg"
	"github.com/andrej220/netsurvey/internal/persistence"
	"github.com/andrej220/netsurvey/pkg/consumer"
	dm "github.com/andrej220/netsurvey/pkg/shared-models"
	"github.com/andrej220/netsurvey/pkg/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	errKafkaDisabled = errors.New("kafka brokers are not configured")
	errMongoDisabled = errors.New("mongo uri is not configured")
)

type deviceReader interface {
	Read(ctx context.Context) (dm.DeviceMessage, error)
}

func newRunsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect results published or stored by earlier runs",
	}

	var count int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print device results as they are published to Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			if !cfg.KafkaEnabled() {
				return errKafkaDisabled
			}
			c := consumer.NewConsumer[dm.DeviceMessage](consumer.Config{
				Brokers: cfg.Kafka.Brokers,
				GroupID: cfg.Kafka.GroupID,
				Topic:   cfg.Kafka.Topic,
			})
			defer c.Close()
			return tailDevices(cmd.Context(), c, cmd.OutOrStdout(), count)
		},
	}
	tail.Flags().IntVarP(&count, "count", "n", 0, "stop after this many messages (0 reads until interrupted)")

	show := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Print a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			if !cfg.MongoEnabled() {
				return errMongoDisabled
			}
			logger := newLogger(cfg)
			defer logger.Sync()

			ctx := lg.Attach(cmd.Context(), logger)
			st, err := store.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
			if err != nil {
				return err
			}
			defer st.Close()

			doc, err := st.Load(ctx, runID)
			if err != nil {
				return err
			}
			return printRun(cmd.OutOrStdout(), doc)
		},
	}

	cmd.AddCommand(tail, show)
	return cmd
}

// tailDevices prints one line per message until count messages were read or
// ctx is done.
func tailDevices(ctx context.Context, r deviceReader, out io.Writer, count int) error {
	for n := 0; count <= 0 || n < count; n++ {
		msg, err := r.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%d lines\n",
			msg.RunID, msg.Address, msg.Vendor, lineCount(msg.Cleaned))
	}
	return nil
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func printRun(out io.Writer, doc dm.RunDocument) error {
	data, err := persistence.JSONSerializer{Indent: "  "}.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", doc.RunID, err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
