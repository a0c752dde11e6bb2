package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
	"github.com/wyfcoding/insurancefundamentals/pkg/logger"
	"github.com/wyfcoding/insurancefundamentals/pkg/mq"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow simulation events published to Kafka",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	initCLILogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("kafka brokers are not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := mq.NewConsumer(mq.KafkaConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
	}, cfg.Kafka.Topic)
	defer consumer.Close()

	return consume(ctx, consumer, cmd.OutOrStdout())
}

type messageReader interface {
	ReadMessage(ctx context.Context) (*mq.Message, error)
}

// consume 逐条打印事件，ctx 结束时正常返回；无法解析的消息跳过
func consume(ctx context.Context, r messageReader, w io.Writer) error {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}

		var ev domain.SimulationEvent
		if err := msg.UnmarshalPayload(&ev); err != nil {
			logger.Warn(ctx, "skipping malformed event", "offset", msg.Offset, "error", err)
			continue
		}
		fmt.Fprintln(w, formatEvent(ev))
	}
}

func formatEvent(ev domain.SimulationEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-20s %-14s", ev.OccurredAt.Format(time.RFC3339), ev.Type, ev.Module)
	switch {
	case ev.Error != "":
		fmt.Fprintf(&b, " rejected: %s", ev.Error)
	case ev.Report != nil:
		if ev.Report.Cached {
			b.WriteString(" (cached)")
		} else {
			fmt.Fprintf(&b, " %.1fms", ev.Report.DurationMs)
		}
		if len(ev.Report.Interpretation) > 0 {
			fmt.Fprintf(&b, " %s", ev.Report.Interpretation[0])
		}
	}
	return b.String()
}
