package chainstate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/chainswap/chainswap-daemon/internal/core/ports"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

const (
	maxNumOfFailingRequests = 10
	failingRatio            = 0.6
	maxParallelLookups      = 8
	requestTimeout          = 15 * time.Second
)

type coinRecordResponse struct {
	CoinID      string `json:"coin_id"`
	Spent       bool   `json:"spent"`
	SpentHeight uint32 `json:"spent_block_index"`
}

type explorerService struct {
	apiURL string
	client *http.Client
	cb     *gobreaker.CircuitBreaker
}

// NewExplorerService returns a ports.ChainState backed by an HTTP coin
// explorer. The endpoint is probed once so that a misconfigured URL fails at
// startup rather than on the first trade.
func NewExplorerService(apiURL string) (ports.ChainState, error) {
	svc := &explorerService{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		client: &http.Client{Timeout: requestTimeout},
		cb:     newCircuitBreaker(),
	}
	if err := svc.healthCheck(); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	return svc, nil
}

func (e *explorerService) healthCheck() error {
	_, err := e.get(context.Background(), fmt.Sprintf("%s/blocks/tip/height", e.apiURL))
	return err
}

func (e *explorerService) CoinStates(
	ctx context.Context, coinIDs []chain.Bytes32,
) (map[chain.Bytes32]ports.CoinState, error) {
	states := make(map[chain.Bytes32]ports.CoinState, len(coinIDs))
	var mtx sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelLookups)
	for _, coinID := range coinIDs {
		coinID := coinID
		eg.Go(func() error {
			state, err := e.coinState(ctx, coinID)
			if err != nil {
				return err
			}
			mtx.Lock()
			states[coinID] = state
			mtx.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return states, nil
}

func (e *explorerService) coinState(
	ctx context.Context, coinID chain.Bytes32,
) (ports.CoinState, error) {
	url := fmt.Sprintf("%s/coins/%s", e.apiURL, coinID.Hex())
	body, err := e.get(ctx, url)
	if err != nil {
		return ports.CoinState{}, fmt.Errorf("fetching coin %s: %w", coinID.Hex(), err)
	}

	var record coinRecordResponse
	if err := json.Unmarshal(body, &record); err != nil {
		return ports.CoinState{}, fmt.Errorf("parsing coin record: %w", err)
	}
	return ports.CoinState{
		CoinID:      coinID,
		Spent:       record.Spent,
		SpentHeight: record.SpentHeight,
	}, nil
}

func (e *explorerService) get(ctx context.Context, url string) ([]byte, error) {
	resp, err := e.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		res, err := e.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, err
		}
		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("explorer returned %d: %s", res.StatusCode, string(body))
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.([]byte), nil
}

func newCircuitBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "explorer",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return int(counts.Requests) > maxNumOfFailingRequests && ratio >= failingRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				log.Warnf("%s: circuit breaker tripped, explorer requests suspended", name)
			}
			if from == gobreaker.StateOpen && to == gobreaker.StateHalfOpen {
				log.Infof("%s: circuit breaker probing explorer again", name)
			}
			if from == gobreaker.StateHalfOpen && to == gobreaker.StateClosed {
				log.Infof("%s: circuit breaker closed, explorer recovered", name)
			}
		},
	})
}
