package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/HMasataka/demoserve/pkg/retry"
	"github.com/gammazero/workerpool"
	"github.com/samber/lo"
)

type Config struct {
	Workers int
	Timeout time.Duration
	Retry   retry.Config
}

func DefaultConfig() Config {
	return Config{
		Workers: 4,
		Timeout: 2 * time.Second,
		Retry:   retry.DefaultConfig(),
	}
}

type Result struct {
	URL      string
	Status   int
	Attempts int
	Err      error
}

func (r Result) Healthy() bool {
	return r.Err == nil && r.Status > 0 && r.Status < http.StatusBadRequest
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("FAIL %s (%d attempts): %v", r.URL, r.Attempts, r.Err)
	}
	if !r.Healthy() {
		return fmt.Sprintf("FAIL %s: HTTP %d", r.URL, r.Status)
	}
	return fmt.Sprintf("OK   %s: HTTP %d", r.URL, r.Status)
}

type Client struct {
	client *http.Client
	config Config
}

func NewClient(config Config) *Client {
	return &Client{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

// Check probes every target on a worker pool. Results keep the order of
// targets; duplicate targets are probed once.
func (c *Client) Check(ctx context.Context, targets []string) []Result {
	targets = lo.Uniq(targets)
	results := make([]Result, len(targets))

	workers := c.config.Workers
	if workers < 1 {
		workers = 1
	}
	wp := workerpool.New(workers)

	for i, target := range targets {
		wp.Submit(func() {
			results[i] = c.probe(ctx, target)
		})
	}
	wp.StopWait()

	return results
}

var errServerError = errors.New("server error")

func (c *Client) probe(ctx context.Context, target string) Result {
	res := Result{URL: target}

	attempts, err := retry.Do(ctx, c.config.Retry, func(int) error {
		res.Status = 0

		status, err := c.get(ctx, target)
		if err != nil {
			return err
		}

		res.Status = status
		if status >= http.StatusInternalServerError {
			return errServerError
		}
		return nil
	})

	res.Attempts = attempts
	// a persistent 5xx is reported through Status
	if err != nil && !errors.Is(err, errServerError) {
		res.Err = err
	}
	return res
}

func (c *Client) get(ctx context.Context, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("failed to build request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// AllHealthy reports whether every result is healthy.
func AllHealthy(results []Result) bool {
	return lo.EveryBy(results, func(r Result) bool { return r.Healthy() })
}
