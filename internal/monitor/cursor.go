package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cursor is the persisted live polling position.
type Cursor struct {
	LastSeenBlock uint64 `json:"last_seen_block"`
	UpdatedAt     string `json:"updated_at"`
}

// FileCursor persists the cursor as JSON on disk.
type FileCursor struct {
	path string
}

func NewFileCursor(path string) *FileCursor {
	return &FileCursor{path: path}
}

func (c *FileCursor) Load(context.Context) (uint64, bool, error) {
	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat cursor: %w", err)
	}
	if stat.IsDir() {
		return 0, false, fmt.Errorf("cursor path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, false, fmt.Errorf("read cursor: %w", err)
	}

	var cur Cursor
	if err := json.Unmarshal(data, &cur); err != nil {
		return 0, false, fmt.Errorf("parse cursor: %w", err)
	}
	return cur.LastSeenBlock, true, nil
}

// Save replaces the cursor file via a temp file and rename.
func (c *FileCursor) Save(_ context.Context, block uint64) error {
	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cursor dir: %w", err)
		}
	}

	data, err := json.Marshal(Cursor{
		LastSeenBlock: block,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write cursor tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename cursor: %w", err)
	}
	return nil
}

// ResumeFrom returns the block after the saved cursor, or fallback when no
// cursor is stored.
func ResumeFrom(ctx context.Context, store CursorStore, fallback uint64) (uint64, bool, error) {
	if store == nil {
		return fallback, false, nil
	}
	block, ok, err := store.Load(ctx)
	if err != nil || !ok {
		return fallback, false, err
	}
	return block + 1, true, nil
}
