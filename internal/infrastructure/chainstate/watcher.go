package chainstate

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/chainswap/chainswap-daemon/internal/core/ports"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

const eventQueueMaxSize = 100

// WatcherOpts defines the parameters needed for creating a CoinWatcher with
// NewCoinWatcher.
type WatcherOpts struct {
	ChainState ports.ChainState
	Interval   time.Duration
	// RateLimit caps chain-state queries per second across all scans.
	RateLimit rate.Limit
	Logger    log.FieldLogger
}

// CoinWatcher periodically polls the chain state for a set of watched coin
// ids and emits a CoinSpentEvent the first time each of them is observed
// spent. A spent coin leaves the watch set; reconciliation of the owning
// trade is the listener's job.
type CoinWatcher struct {
	chain    ports.ChainState
	interval time.Duration
	limiter  *rate.Limiter
	log      log.FieldLogger

	mtx     sync.RWMutex
	watched map[chain.Bytes32]struct{}

	events chan ports.CoinSpentEvent
	quit   chan struct{}
	done   chan struct{}
}

func NewCoinWatcher(opts WatcherOpts) *CoinWatcher {
	limit := opts.RateLimit
	if limit <= 0 {
		limit = rate.Inf
	}
	return &CoinWatcher{
		chain:    opts.ChainState,
		interval: opts.Interval,
		limiter:  rate.NewLimiter(limit, 1),
		log:      opts.Logger,
		watched:  make(map[chain.Bytes32]struct{}),
		events:   make(chan ports.CoinSpentEvent, eventQueueMaxSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Watch adds the given coin ids to the watch set.
func (w *CoinWatcher) Watch(coinIDs ...chain.Bytes32) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	for _, id := range coinIDs {
		w.watched[id] = struct{}{}
	}
}

// Unwatch drops the given coin ids from the watch set.
func (w *CoinWatcher) Unwatch(coinIDs ...chain.Bytes32) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	for _, id := range coinIDs {
		delete(w.watched, id)
	}
}

// Events returns the channel spent-coin events are emitted on. The channel
// is closed once Stop returns.
func (w *CoinWatcher) Events() <-chan ports.CoinSpentEvent {
	return w.events
}

// Start runs the polling loop until Stop is called.
func (w *CoinWatcher) Start() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.quit:
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

// Stop terminates the polling loop and closes the event channel.
func (w *CoinWatcher) Stop() {
	close(w.quit)
	<-w.done
	close(w.events)
}

func (w *CoinWatcher) scan() {
	w.mtx.RLock()
	ids := make([]chain.Bytes32, 0, len(w.watched))
	for id := range w.watched {
		ids = append(ids, id)
	}
	w.mtx.RUnlock()
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	states, err := w.chain.CoinStates(ctx, ids)
	if err != nil {
		w.log.WithError(err).Warn("coin watcher scan failed")
		return
	}

	for _, id := range ids {
		state, ok := states[id]
		if !ok || !state.Spent {
			continue
		}
		w.Unwatch(id)
		event := ports.CoinSpentEvent{CoinID: id, Height: state.SpentHeight}
		select {
		case w.events <- event:
		case <-w.quit:
			return
		}
	}
}
