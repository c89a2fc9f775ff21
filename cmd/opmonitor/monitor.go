package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"operatorMonitor/internal/config"
	"operatorMonitor/internal/fetcher"
	"operatorMonitor/internal/model"
	"operatorMonitor/internal/monitor"
)

const bannerRule = "================================================================================"

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Monitor contract events and send notifications",
		Args:  cobra.NoArgs,
		RunE:  runMonitor,
	}

	addChainFlags(cmd.Flags())
	addStoreFlags(cmd.Flags())
	cmd.Flags().Bool("show-history", false, "process historical events before live monitoring")
	cmd.Flags().String("from-block", "", "first block for the historical backfill")
	cmd.Flags().Int("max-events", 100, "maximum historical events to process")
	cmd.Flags().Bool("use-reconnection", true, "reconnect automatically after connection loss")
	cmd.Flags().Duration("reconnect-base-delay", 30*time.Second, "base delay between reconnection attempts")
	cmd.Flags().Int("max-reconnect-attempts", 0, "maximum reconnection attempts, 0 means unlimited")
	cmd.Flags().Duration("poll-interval", 2*time.Second, "live polling interval")
	cmd.Flags().Int("poll-failure-limit", 10, "consecutive failed polls before the reconnection supervisor recreates filters")
	cmd.Flags().String("events-out", "", "append processed events to this JSONL file")
	cmd.Flags().String("cursor-path", "", "persist the last seen block to this file")

	return cmd
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	a.printBanner(out)

	fmt.Fprintln(out, "\n🧪 Testing connections...")
	health := a.client.Health(ctx)
	if !health.Connected {
		fmt.Fprintf(out, "❌ Web3 connection failed: %v\n", health.Err)
		return fmt.Errorf("connect rpc: %w", health.Err)
	}
	fmt.Fprintln(out, "✅ Web3 connection successful")
	fmt.Fprintf(out, "   Current block: %d\n", health.CurrentBlock)
	fmt.Fprintf(out, "   Chain ID: %d\n", health.ChainID)
	printConnectionResults(out, a.fanout.TestConnections(ctx))

	if a.cfg.ShowHistory {
		if err := a.backfill(ctx, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	liveFrom := model.LatestBlock()
	next, resumed, err := monitor.ResumeFrom(ctx, a.cursor, 0)
	if err != nil {
		a.logger.Warn("load cursor failed", zap.Error(err))
	} else if resumed {
		liveFrom = model.AtBlock(next)
		a.logger.Info("resume from cursor", zap.Uint64("from", next))
	}

	mon, err := monitor.New(a.client, a.handles, a.handler, liveConfig(a.cfg, a.cursor), a.logger)
	if err != nil {
		return err
	}

	if a.cfg.UseReconnection {
		fmt.Fprintln(out, "\n🔄 Auto-reconnection enabled")
		sup := monitor.NewSupervisor(mon, a.client, monitor.SupervisorConfig{
			BaseDelay:   a.cfg.ReconnectBaseDelay,
			MaxAttempts: a.cfg.MaxReconnectAttempts,
		}, a.logger)
		return sup.Run(ctx, liveFrom, a.cfg.PollInterval)
	}

	fmt.Fprintln(out, "\n🔄 Auto-reconnection disabled")
	err = mon.Listen(ctx, liveFrom, a.cfg.PollInterval)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "\n👋 Monitor stopped")
		return nil
	}
	return err
}

// liveConfig applies the poll failure limit only when a supervisor is there
// to recreate the filters; without one, polling keeps going until cancelled.
func liveConfig(cfg config.Config, cursor monitor.CursorStore) monitor.Config {
	c := monitor.Config{Cursor: cursor}
	if cfg.UseReconnection {
		c.PollFailureLimit = cfg.PollFailureLimit
	}
	return c
}

func (a *app) printBanner(out io.Writer) {
	fmt.Fprintf(out, "\n🔍 Operator Event Monitor - %s\n", strings.ToUpper(a.cfg.Network))
	fmt.Fprintln(out, bannerRule)
	fmt.Fprintf(out, "🌐 Network: %s (Chain ID: %d)\n", a.network.Name, a.network.ChainID)
	fmt.Fprintf(out, "🔗 RPC URL: %s\n", a.cfg.RPCURL)
	fmt.Fprintln(out, "📄 Contracts being monitored:")
	for _, h := range a.handles {
		fmt.Fprintf(out, "   - %s: %s\n", h.Name(), h.Address().Hex())
	}
	fmt.Fprintf(out, "🔍 Block Explorer: %s\n", a.network.Explorer)
}

// backfill processes historical events from FROM_BLOCK (or genesis) to the
// chain head.
func (a *app) backfill(ctx context.Context, out io.Writer) error {
	from, err := a.cfg.FromBlockRef()
	if err != nil {
		return err
	}
	if from.Latest {
		from = model.AtBlock(0)
	}
	fmt.Fprintf(out, "\n📚 Fetching historical events from block %s...\n", from)

	events, err := a.fetcher.Fetch(ctx, a.sources(), fetcher.Request{
		From:      from,
		To:        model.LatestBlock(),
		MaxEvents: a.cfg.MaxEvents,
	})
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	a.processEvents(ctx, out, events)
	return nil
}

func (a *app) processEvents(ctx context.Context, out io.Writer, events []model.ChainEvent) {
	if len(events) == 0 {
		fmt.Fprintln(out, "No historical events found")
		return
	}
	fmt.Fprintf(out, "Found %d historical events\n", len(events))
	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}
		a.handler.HandleEvent(ctx, ev)
	}
}
