// Package relay implements the relay execution engine: per-group scheduling
// in one region, result aggregation and batching, pushing to the server,
// and config-change reconciliation without restart.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/watchmesh/watchmesh/internal/config"
	"github.com/watchmesh/watchmesh/internal/httpclient"
	"github.com/watchmesh/watchmesh/internal/probe"
)

// MaxBatchPerGroup bounds the number of retained-but-unpushed outcomes per
// group: oldest outcomes are dropped once the bound is hit.
const MaxBatchPerGroup = 32

// ServerClient is the relay's narrow view of the server HTTP API — enough
// to fetch config and push a batch. Exists so the engine can be tested
// without a real HTTP server.
type ServerClient interface {
	FetchConfig(ctx context.Context) (*config.Snapshot, error)
	PushResults(ctx context.Context, region string, results []PushResult) error
}

// PushResult is one group's cycle outcome as sent on the wire.
type PushResult struct {
	Group  string `json:"group"`
	Status string `json:"status"`
}

// httpServerClient is the production ServerClient talking to the real API.
type httpServerClient struct {
	baseURL string
	token   string
	client  *retryablehttp.Client
}

// NewHTTPServerClient builds a ServerClient against a running server.
func NewHTTPServerClient(baseURL, token string, requestTimeout time.Duration) ServerClient {
	return &httpServerClient{
		baseURL: baseURL,
		token:   token,
		client:  httpclient.New(requestTimeout, 3),
	}
}

type configResponse struct {
	Hash    string `json:"hash"`
	Regions []struct {
		Name      string `json:"name"`
		Interval  string `json:"interval"`
		Threshold int    `json:"threshold"`
		Groups    []struct {
			Name      string   `json:"name"`
			Threshold int      `json:"threshold"`
			Mediums   []string `json:"mediums"`
			Tests     []struct {
				Kind    string `json:"kind"`
				Target  string `json:"target"`
				Timeout string `json:"timeout"`
			} `json:"tests"`
		} `json:"groups"`
	} `json:"regions"`
}

func (c *httpServerClient) FetchConfig(ctx context.Context) (*config.Snapshot, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/config", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay: fetch config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("relay: fetch config: auth rejected")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay: fetch config: status %d", resp.StatusCode)
	}

	var cr configResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("relay: decode config: %w", err)
	}

	cfg := config.Config{}
	for _, r := range cr.Regions {
		interval, _ := time.ParseDuration(r.Interval)
		region := config.Region{Name: r.Name, Interval: interval, Threshold: r.Threshold}
		for _, g := range r.Groups {
			group := config.Group{Name: g.Name, Threshold: g.Threshold, Mediums: g.Mediums}
			for _, t := range g.Tests {
				timeout, _ := time.ParseDuration(t.Timeout)
				group.Tests = append(group.Tests, config.Test{
					Kind:    config.ProbeKind(t.Kind),
					Target:  t.Target,
					Timeout: timeout,
				})
			}
			region.Groups = append(region.Groups, group)
		}
		cfg.Regions = append(cfg.Regions, region)
	}

	return &config.Snapshot{Config: cfg, Hash: cr.Hash}, nil
}

type pushRequest struct {
	Results []PushResult `json:"results"`
}

func (c *httpServerClient) PushResults(ctx context.Context, region string, results []PushResult) error {
	body, err := json.Marshal(pushRequest{Results: results})
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/relay/"+region, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay: push results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("relay: push results: status %d", resp.StatusCode)
	}
	return nil
}

// batch is the bounded, per-group queue of outcomes awaiting push.
type batch struct {
	mu    sync.Mutex
	items []PushResult
}

func (b *batch) add(r PushResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, r)
	if len(b.items) > MaxBatchPerGroup {
		b.items = b.items[len(b.items)-MaxBatchPerGroup:]
	}
}

func (b *batch) drain() []PushResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

func (b *batch) restore(items []PushResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(items, b.items...)
	if len(b.items) > MaxBatchPerGroup {
		b.items = b.items[len(b.items)-MaxBatchPerGroup:]
	}
}

// Engine runs the relay for one region: one ticker goroutine per group,
// plus a config poller that reconciles the running tickers on change.
type Engine struct {
	log        hclog.Logger
	client     ServerClient
	regionName string
	pollPeriod time.Duration

	mu      sync.Mutex
	hash    string
	region  config.Region
	cancels []context.CancelFunc
	batches map[string]*batch
	wg      sync.WaitGroup
}

// NewEngine constructs a relay engine with no region applied yet; Start
// fetches the config itself and locates the target region in it.
func NewEngine(log hclog.Logger, client ServerClient, regionName string, pollPeriod time.Duration) *Engine {
	if pollPeriod <= 0 {
		pollPeriod = config.DefaultConfigPollPeriod
	}
	return &Engine{
		log:        log,
		client:     client,
		regionName: regionName,
		pollPeriod: pollPeriod,
		batches:    make(map[string]*batch),
	}
}

// Start fetches the initial config, locates the configured region (a fatal
// error if absent), starts one ticker per group, and runs the config
// poller until ctx is canceled.
func (e *Engine) Start(ctx context.Context) error {
	snap, err := e.client.FetchConfig(ctx)
	if err != nil {
		return fmt.Errorf("relay: startup config fetch: %w", err)
	}

	region, ok := snap.Config.RegionByName(e.regionName)
	if !ok {
		return fmt.Errorf("relay: region %q not present in server config", e.regionName)
	}

	e.applyRegion(ctx, region, snap.Hash)

	e.pollLoop(ctx)
	e.mu.Lock()
	cancels := e.cancels
	e.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	e.wg.Wait()
	return nil
}

// applyRegion stops any running tickers and starts fresh ones for the new
// region subtree. Groups that still exist by name keep their batch queue
// (and thus their pending, not-yet-pushed outcomes); groups that no longer
// exist have their batch discarded.
func (e *Engine) applyRegion(ctx context.Context, region config.Region, hash string) {
	// Stop any running tickers first, without holding the lock across
	// wg.Wait() — a ticker goroutine briefly takes e.mu in tick() to read
	// the batch map, so holding it here would deadlock against its exit.
	e.mu.Lock()
	cancels := e.cancels
	e.cancels = nil
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	e.wg.Wait()

	e.mu.Lock()
	nextBatches := make(map[string]*batch, len(region.Groups))
	for _, g := range region.Groups {
		if existing, ok := e.batches[g.Name]; ok {
			nextBatches[g.Name] = existing
		} else {
			nextBatches[g.Name] = &batch{}
		}
	}
	e.batches = nextBatches
	e.region = region
	e.hash = hash
	e.mu.Unlock()

	for _, g := range region.Groups {
		gctx, cancel := context.WithCancel(ctx)
		e.mu.Lock()
		e.cancels = append(e.cancels, cancel)
		e.mu.Unlock()
		e.wg.Add(1)
		go func(g config.Group) {
			defer e.wg.Done()
			e.runGroupTicker(gctx, region, g)
		}(g)
	}
}

func (e *Engine) runGroupTicker(ctx context.Context, region config.Region, group config.Group) {
	ticker := time.NewTicker(region.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx, region.Name, group)
		}
	}
}

// tick runs every test in the group concurrently, aggregates to ok iff all
// tests succeeded, appends to the group's batch, then attempts a push.
func (e *Engine) tick(ctx context.Context, regionName string, group config.Group) {
	ok := true
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, test := range group.Tests {
		test := test
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := probe.Run(ctx, test)
			if !out.OK {
				mu.Lock()
				ok = false
				mu.Unlock()
				e.log.Debug("probe failed", "region", regionName, "group", group.Name, "kind", test.Kind, "target", test.Target, "reason", out.Reason)
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return // canceled by a reconfigure while probes were in flight; discard
	}

	status := "ok"
	if !ok {
		status = "fail"
	}

	e.mu.Lock()
	b, exists := e.batches[group.Name]
	e.mu.Unlock()
	if !exists {
		return // reconfigured away mid-tick; discard
	}
	b.add(PushResult{Group: group.Name, Status: status})

	e.pushBatches(ctx, regionName)
}

// pushBatches drains every group's batch and attempts one push. On
// failure the batch is restored so the next tick retries it.
func (e *Engine) pushBatches(ctx context.Context, regionName string) {
	e.mu.Lock()
	batches := make(map[string]*batch, len(e.batches))
	for k, v := range e.batches {
		batches[k] = v
	}
	e.mu.Unlock()

	var results []PushResult
	drained := make(map[string][]PushResult, len(batches))
	for name, b := range batches {
		items := b.drain()
		if len(items) == 0 {
			continue
		}
		drained[name] = items
		results = append(results, items...)
	}
	if len(results) == 0 {
		return
	}

	if err := e.client.PushResults(ctx, regionName, results); err != nil {
		e.log.Warn("push failed, will retry next tick", "region", regionName, "error", err)
		for name, items := range drained {
			if b, ok := batches[name]; ok {
				b.restore(items)
			}
		}
	}
}

// pollLoop periodically refetches config and reconciles on hash change
// until ctx is canceled.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := e.client.FetchConfig(ctx)
			if err != nil {
				e.log.Warn("config poll failed", "error", err)
				continue
			}
			e.mu.Lock()
			changed := snap.Hash != e.hash
			e.mu.Unlock()
			if !changed {
				continue
			}

			region, ok := snap.Config.RegionByName(e.regionName)
			if !ok {
				e.log.Error("region missing from refreshed config, keeping previous", "region", e.regionName)
				continue
			}
			e.log.Info("config changed, reconfiguring", "region", e.regionName, "hash", snap.Hash)
			e.applyRegion(ctx, region, snap.Hash)
		}
	}
}

// CurrentHash reports the config hash currently applied, for tests/CLI.
func (e *Engine) CurrentHash() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hash
}
