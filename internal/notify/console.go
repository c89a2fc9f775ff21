package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"operatorMonitor/internal/model"
)

// Console writes messages to a writer, stdout by default.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

func (c *Console) Name() string { return "Console" }

func (c *Console) Send(_ context.Context, message string, _ *model.ChainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, message)
	return err
}

func (c *Console) TestConnection(context.Context) error { return nil }
