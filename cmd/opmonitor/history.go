package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"operatorMonitor/internal/fetcher"
	"operatorMonitor/internal/model"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <from_block> [to_block] [max_events]",
		Short: "Fetch and process historical events",
		Args:  cobra.RangeArgs(1, 3),
		RunE:  runHistory,
	}

	addChainFlags(cmd.Flags())
	addStoreFlags(cmd.Flags())
	cmd.Flags().Int("max-events", 100, "default maximum events to process")
	cmd.Flags().Int("fetch-concurrency", 4, "concurrent queries per block window")
	cmd.Flags().String("contract", "", "only query contracts of this kind (case-insensitive)")
	cmd.Flags().String("events-out", "", "append processed events to this JSONL file")

	return cmd
}

type historyArgs struct {
	from      model.BlockRef
	to        model.BlockRef
	maxEvents int
}

func parseHistoryArgs(args []string, defaultMax int) (historyArgs, error) {
	from, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return historyArgs{}, fmt.Errorf("invalid from_block %q: must be a number", args[0])
	}
	h := historyArgs{from: model.AtBlock(from), to: model.LatestBlock(), maxEvents: defaultMax}
	if len(args) > 1 {
		h.to, err = model.ParseBlockRef(args[1])
		if err != nil {
			return historyArgs{}, fmt.Errorf("invalid to_block: %w", err)
		}
	}
	if len(args) > 2 {
		h.maxEvents, err = strconv.Atoi(args[2])
		if err != nil {
			return historyArgs{}, fmt.Errorf("invalid max_events %q: must be a number", args[2])
		}
	}
	return h, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	h, err := parseHistoryArgs(args, a.cfg.MaxEvents)
	if err != nil {
		return err
	}
	contract, _ := cmd.Flags().GetString("contract")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n📚 Fetching historical events from block %s to %s\n", h.from, h.to)
	fmt.Fprintln(out, bannerRule)

	events, err := a.fetcher.Fetch(ctx, a.sources(), fetcher.Request{
		From:           h.from,
		To:             h.to,
		MaxEvents:      h.maxEvents,
		ContractFilter: contract,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("fetch history: %w", err)
	}
	a.processEvents(ctx, out, events)
	return nil
}
