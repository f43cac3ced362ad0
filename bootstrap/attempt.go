package bootstrap

import (
	"context"
	"crypto/tls"
	"log"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/logos-network/blockcore/blockcache"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/storage"
)

// Config carries the spec.md §6.3 options an Attempt needs.
type Config struct {
	BootstrapConnections    int // base peer count, default 4
	BootstrapConnectionsMax int // ceiling, default 64
	TLSConfig               *tls.Config
}

func (c Config) baseOrDefault() int {
	if c.BootstrapConnections > 0 {
		return c.BootstrapConnections
	}
	return 4
}

func (c Config) maxOrDefault() int {
	if c.BootstrapConnectionsMax > 0 {
		return c.BootstrapConnectionsMax
	}
	return 64
}

// connStats tracks a connection's recent throughput for the rate-based
// eviction rule of spec.md §4.4.2.
type connStats struct {
	conn        *Conn
	connectedAt time.Time
	blocks      uint64
}

// Attempt drives one bootstrap run against a set of peer addresses:
// frontier exchange, then bounded-concurrency pulls and pushes.
type Attempt struct {
	cfg   Config
	cache *blockcache.Cache
	store *storage.Store

	mu          sync.Mutex
	pulls       []*PullRequest
	pushTargets []*PushRequest
	idle        []*connStats
	active      map[*Conn]*connStats
	totalBlocks uint64
	startTime   time.Time
}

// New creates an Attempt against cache/store with the given config.
func New(cfg Config, cache *blockcache.Cache, store *storage.Store) *Attempt {
	return &Attempt{
		cfg:    cfg,
		cache:  cache,
		store:  store,
		active: make(map[*Conn]*connStats),
	}
}

// localFrontier reads this node's own tips for all delegates, once per
// Run, so frontier_response processing never touches storage per-delegate.
func (a *Attempt) localFrontier() myFrontier {
	var mine myFrontier
	mine.EpochTip[0], _ = a.store.GetEpochTip()
	mine.MicroTip[0], _ = a.store.GetMicroTip()
	for d := uint8(0); d < core.NumDelegates; d++ {
		mine.BatchTip[d], _ = a.store.GetBatchTip(d)
	}
	for d := 1; d < core.NumDelegates; d++ {
		mine.EpochTip[d] = mine.EpochTip[0]
		mine.MicroTip[d] = mine.MicroTip[0]
	}
	return mine
}

// targetConnections implements spec.md §4.4.2's sizing formula.
func (a *Attempt) targetConnections() int {
	a.mu.Lock()
	pulls := len(a.pulls)
	a.mu.Unlock()

	base := float64(a.cfg.baseOrDefault())
	max := float64(a.cfg.maxOrDefault())
	frac := math.Min(1, float64(pulls)/50000)
	target := base + (max-base)*frac
	if target > max {
		target = max
	}
	return int(target)
}

// Run exchanges frontiers with each address in peers, then drains the
// resulting pull/push queues over a pool sized by targetConnections.
func (a *Attempt) Run(ctx context.Context, peers []string) error {
	a.startTime = time.Now()

	mine := a.localFrontier()
	for _, addr := range peers {
		if err := a.exchangeFrontier(addr, mine); err != nil {
			log.Printf("[bootstrap] frontier exchange with %s failed: %v", addr, err)
		}
	}

	a.mu.Lock()
	pending := len(a.pulls) + len(a.pushTargets)
	a.mu.Unlock()
	if pending == 0 {
		return nil
	}

	target := a.targetConnections()
	sem := semaphore.NewWeighted(int64(target))
	g, ctx := errgroup.WithContext(ctx)

	evictTicker := time.NewTicker(5 * time.Second)
	defer evictTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-evictTicker.C:
				a.evictSlowPeers()
			}
		}
	}()

	for {
		a.mu.Lock()
		empty := len(a.pulls) == 0 && len(a.pushTargets) == 0
		a.mu.Unlock()
		if empty {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			return a.worker(ctx, peers)
		})
	}
	return g.Wait()
}

// worker services one request (a pull or a push) using an idle
// connection if one is available, reusing it LIFO, or dialing a fresh
// one against an arbitrary known peer address otherwise.
func (a *Attempt) worker(ctx context.Context, peers []string) error {
	pull := a.popPull()
	if pull != nil {
		return a.runPull(ctx, pull, peers)
	}
	push := a.popPush()
	if push != nil {
		return a.runPush(ctx, push, peers)
	}
	return nil
}

func (a *Attempt) popPull() *PullRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pulls) == 0 {
		return nil
	}
	p := a.pulls[0]
	a.pulls = a.pulls[1:]
	return p
}

func (a *Attempt) popPush() *PushRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pushTargets) == 0 {
		return nil
	}
	p := a.pushTargets[0]
	a.pushTargets = a.pushTargets[1:]
	return p
}

func (a *Attempt) requeuePull(pr *PullRequest) {
	const maxAttempts = 16
	pr.Attempts++
	a.mu.Lock()
	defer a.mu.Unlock()
	if pr.Attempts > maxAttempts {
		log.Printf("[bootstrap] abandoning pull for delegate %d after %d attempts", pr.DelegateID, pr.Attempts)
		return
	}
	a.pulls = append(a.pulls, pr)
}

// takeIdle pops the most-recently-returned idle connection (LIFO, so
// the fastest peer tends to stay hot), or nil if none is idle.
func (a *Attempt) takeIdle() *connStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.idle) == 0 {
		return nil
	}
	cs := a.idle[len(a.idle)-1]
	a.idle = a.idle[:len(a.idle)-1]
	a.active[cs.conn] = cs
	return cs
}

func (a *Attempt) dial(addr string) (*connStats, error) {
	conn, err := Dial(addr, a.cfg.TLSConfig)
	if err != nil {
		return nil, err
	}
	cs := &connStats{conn: conn, connectedAt: time.Now()}
	a.mu.Lock()
	a.active[conn] = cs
	a.mu.Unlock()
	return cs, nil
}

// pool returns the connection to the idle list iff keep is true, or
// closes and forgets it otherwise.
func (a *Attempt) pool(cs *connStats, keep bool) {
	a.mu.Lock()
	delete(a.active, cs.conn)
	if keep {
		a.idle = append(a.idle, cs)
	}
	a.mu.Unlock()
	if !keep {
		cs.conn.Close()
	}
}

// evictSlowPeers implements spec.md §4.4.2: after a 5s warmup, drop
// peers under 10 blocks/sec, or under ~187 bytes/sec (1500 bit/s,
// expressed here as a block-rate proxy) after 30s. When more than 2/3
// of connections are active, additionally drop the slowest
// round(sqrt(target-2)) of them.
func (a *Attempt) evictSlowPeers() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	var toEvict []*connStats
	for _, cs := range a.active {
		age := now.Sub(cs.connectedAt)
		rate := float64(cs.blocks) / math.Max(age.Seconds(), 1)
		if age > 5*time.Second && rate < 10 {
			toEvict = append(toEvict, cs)
			continue
		}
		if age > 30*time.Second && rate < 1500.0/8 {
			toEvict = append(toEvict, cs)
		}
	}

	target := a.cfg.baseOrDefault()
	if len(a.active) > 0 && float64(len(a.active))*3 > float64(target)*2 {
		n := int(math.Round(math.Sqrt(math.Max(float64(target-2), 0))))
		toEvict = append(toEvict, a.slowestLocked(n)...)
	}

	for _, cs := range toEvict {
		delete(a.active, cs.conn)
		cs.conn.Close()
	}
}

func (a *Attempt) slowestLocked(n int) []*connStats {
	if n <= 0 {
		return nil
	}
	all := make([]*connStats, 0, len(a.active))
	for _, cs := range a.active {
		all = append(all, cs)
	}
	// simple selection: n smallest block counts
	for i := 0; i < n && i < len(all); i++ {
		minIdx := i
		for j := i + 1; j < len(all); j++ {
			if all[j].blocks < all[minIdx].blocks {
				minIdx = j
			}
		}
		all[i], all[minIdx] = all[minIdx], all[i]
	}
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}
