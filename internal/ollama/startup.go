package ollama

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// EnsureReady waits for the Ollama server to respond and makes sure the
// configured model is available locally, pulling it with progress output
// written to w if needed. The reachability wait uses exponential backoff
// capped at maxWait.
func EnsureReady(ctx context.Context, c *Client, model string, maxWait time.Duration, w io.Writer) error {
	if err := waitRunning(ctx, c, maxWait); err != nil {
		return err
	}

	if c.HasModel(ctx, model) {
		fmt.Fprintf(w, "model %s: ready\n", model)
		return nil
	}

	fmt.Fprintf(w, "model %s: pulling...\n", model)
	err := c.PullModel(ctx, model, func(p PullProgress) {
		if p.Total > 0 {
			pct := float64(p.Completed) / float64(p.Total) * 100
			fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
		} else {
			fmt.Fprintf(w, "  %s\n", p.Status)
		}
	})
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", model, err)
	}
	fmt.Fprintf(w, "model %s: ready\n", model)
	return nil
}

func waitRunning(ctx context.Context, c *Client, maxWait time.Duration) error {
	if maxWait <= 0 {
		maxWait = 10 * time.Second
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = maxWait

	check := func() error {
		if !c.IsRunning(ctx) {
			return fmt.Errorf("ollama not reachable at %s", c.baseURL)
		}
		return nil
	}

	if err := backoff.Retry(check, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("Ollama is not running (start it with: ollama serve): %w", err)
	}
	return nil
}
