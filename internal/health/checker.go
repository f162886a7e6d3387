// Package health reports liveness and readiness of the service's backing stores.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger, e.g. a Redis client's Ping.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Result is the outcome of one readiness run. Checks maps dependency name to "ok" or the error text.
type Result struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// Checker pings every registered dependency concurrently.
type Checker struct {
	timeout time.Duration
	names   []string
	pingers map[string]Pinger
}

// NewChecker returns a Checker with no dependencies; it reports ready until one is added.
func NewChecker() *Checker {
	return &Checker{timeout: defaultCheckTimeout, pingers: map[string]Pinger{}}
}

// Add registers a dependency. A nil pinger is ignored.
func (c *Checker) Add(name string, p Pinger) *Checker {
	if p == nil {
		return c
	}
	if _, ok := c.pingers[name]; !ok {
		c.names = append(c.names, name)
		sort.Strings(c.names)
	}
	c.pingers[name] = p
	return c
}

// Check pings all dependencies, each bounded by the checker timeout.
func (c *Checker) Check(ctx context.Context) Result {
	res := Result{Ready: true, Checks: make(map[string]string, len(c.names))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range c.names {
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			status := "ok"
			ok := true
			if err := p.PingContext(pctx); err != nil {
				status, ok = err.Error(), false
			}
			mu.Lock()
			defer mu.Unlock()
			res.Checks[name] = status
			if !ok {
				res.Ready = false
			}
		}(name, c.pingers[name])
	}
	wg.Wait()
	return res
}
