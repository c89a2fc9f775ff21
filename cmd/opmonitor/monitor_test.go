package main

import (
	"testing"

	"operatorMonitor/internal/config"
)

func TestLiveConfigFailureLimitNeedsReconnection(t *testing.T) {
	cfg := config.Config{PollFailureLimit: 10, UseReconnection: true}
	if got := liveConfig(cfg, nil).PollFailureLimit; got != 10 {
		t.Fatalf("supervised limit mismatch: %d", got)
	}

	cfg.UseReconnection = false
	if got := liveConfig(cfg, nil).PollFailureLimit; got != 0 {
		t.Fatalf("unsupervised polling must not stall, limit %d", got)
	}
}
