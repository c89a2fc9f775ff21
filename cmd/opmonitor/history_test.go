package main

import (
	"testing"

	"operatorMonitor/internal/model"
)

func TestParseHistoryArgs(t *testing.T) {
	h, err := parseHistoryArgs([]string{"100"}, 50)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.from != model.AtBlock(100) || h.to != model.LatestBlock() || h.maxEvents != 50 {
		t.Fatalf("defaults mismatch: %+v", h)
	}

	h, err = parseHistoryArgs([]string{"100", "200", "7"}, 50)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.to != model.AtBlock(200) || h.maxEvents != 7 {
		t.Fatalf("explicit args mismatch: %+v", h)
	}

	h, err = parseHistoryArgs([]string{"100", "LATEST"}, 50)
	if err != nil || h.to != model.LatestBlock() {
		t.Fatalf("latest mismatch: %+v %v", h, err)
	}

	for _, args := range [][]string{{"latest"}, {"1", "soon"}, {"1", "2", "many"}} {
		if _, err := parseHistoryArgs(args, 50); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}
