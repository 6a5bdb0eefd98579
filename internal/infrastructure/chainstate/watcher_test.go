package chainstate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/chainswap/chainswap-daemon/internal/core/ports"
	"github.com/chainswap/chainswap-daemon/internal/infrastructure/chainstate"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

type stubChainState struct {
	mu    sync.Mutex
	spent map[chain.Bytes32]uint32
}

func (s *stubChainState) markSpent(id chain.Bytes32, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spent[id] = height
}

func (s *stubChainState) CoinStates(
	_ context.Context, coinIDs []chain.Bytes32,
) (map[chain.Bytes32]ports.CoinState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[chain.Bytes32]ports.CoinState, len(coinIDs))
	for _, id := range coinIDs {
		state := ports.CoinState{CoinID: id}
		if height, ok := s.spent[id]; ok {
			state.Spent = true
			state.SpentHeight = height
		}
		out[id] = state
	}
	return out, nil
}

func TestCoinWatcher(t *testing.T) {
	t.Parallel()

	stub := &stubChainState{spent: make(map[chain.Bytes32]uint32)}
	watcher := chainstate.NewCoinWatcher(chainstate.WatcherOpts{
		ChainState: stub,
		Interval:   5 * time.Millisecond,
		Logger:     log.New(),
	})

	var watchedCoin, untouchedCoin chain.Bytes32
	watchedCoin[0] = 0x01
	untouchedCoin[0] = 0x02
	watcher.Watch(watchedCoin, untouchedCoin)

	go watcher.Start()

	stub.markSpent(watchedCoin, 42)

	select {
	case event := <-watcher.Events():
		require.Equal(t, watchedCoin, event.CoinID)
		require.Equal(t, uint32(42), event.Height)
	case <-time.After(2 * time.Second):
		t.Fatal("no spent event emitted")
	}

	// A spent coin leaves the watch set and is reported only once.
	select {
	case event := <-watcher.Events():
		t.Fatalf("unexpected second event for coin %s", event.CoinID)
	case <-time.After(50 * time.Millisecond):
	}

	watcher.Stop()
	_, open := <-watcher.Events()
	require.False(t, open)
}
