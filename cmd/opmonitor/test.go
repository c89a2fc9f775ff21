package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"operatorMonitor/internal/notify"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test RPC, contract and notification connectivity",
		Args:  cobra.NoArgs,
		RunE:  runTest,
	}
	addChainFlags(cmd.Flags())
	return cmd
}

func runTest(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n🧪 Testing Operator Event Monitor - %s\n", strings.ToUpper(a.cfg.Network))
	fmt.Fprintln(out, bannerRule)

	fmt.Fprintln(out, "Testing Web3 connection...")
	health := a.client.Health(ctx)
	if health.Connected {
		fmt.Fprintln(out, "✅ Web3 connection successful")
		fmt.Fprintf(out, "   Current block: %d\n", health.CurrentBlock)
		fmt.Fprintf(out, "   Chain ID: %d\n", health.ChainID)
		fmt.Fprintf(out, "   Network: %s\n", health.Network)
	} else {
		fmt.Fprintf(out, "❌ Web3 connection failed: %v\n", health.Err)
	}

	fmt.Fprintf(out, "\nRegistered contract kinds: %s\n", strings.Join(a.kinds, ", "))

	fmt.Fprintln(out, "\nTesting contract connections...")
	for _, h := range a.handles {
		fmt.Fprintf(out, "✅ %s contract accessible\n", h.Name())
		fmt.Fprintf(out, "   Address: %s\n", h.Address().Hex())
		fmt.Fprintf(out, "   Events: %s\n", strings.Join(h.EventTypes(), ", "))
	}

	fmt.Fprintln(out, "\nTesting notifications...")
	printConnectionResults(out, a.fanout.TestConnections(ctx))

	fmt.Fprintln(out, "\n✅ Test completed")
	return nil
}

func printConnectionResults(out io.Writer, results []notify.ConnectionResult) {
	for _, r := range results {
		name := r.Name
		if r.Fallback {
			name += " (fallback)"
		}
		if r.Err != nil {
			fmt.Fprintf(out, "❌ %s: %v\n", name, r.Err)
			continue
		}
		fmt.Fprintf(out, "✅ %s\n", name)
	}
}
