package eventlog

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

const subscriptionBufferSize = 128

// Store keeps emitted logs in order and serves them the way a node's log
// filter API does.
type Store struct {
	mu   sync.RWMutex
	logs []types.Log
	feed event.Feed
}

func New() *Store {
	return &Store{}
}

// Append records l and pushes it to live subscriptions. Index is assigned
// from the position in the store.
func (s *Store) Append(l types.Log) {
	s.mu.Lock()
	l.Index = uint(len(s.logs))
	s.logs = append(s.logs, l)
	s.mu.Unlock()

	s.feed.Send(l)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.logs)
}

func (s *Store) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []types.Log
	for _, l := range s.logs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if Match(q, l) {
			res = append(res, l)
		}
	}
	return res, nil
}

func (s *Store) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	sink := make(chan types.Log, subscriptionBufferSize)
	sub := s.feed.Subscribe(sink)

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-sink:
				if !Match(q, l) {
					continue
				}
				select {
				case ch <- l:
				case <-quit:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}), nil
}

// Match reports whether l passes the block range, address and topic filters of q.
func Match(q ethereum.FilterQuery, l types.Log) bool {
	if q.FromBlock != nil && q.FromBlock.Sign() >= 0 && l.BlockNumber < q.FromBlock.Uint64() {
		return false
	}
	if q.ToBlock != nil && q.ToBlock.Sign() > 0 && l.BlockNumber > q.ToBlock.Uint64() {
		return false
	}

	if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
		return false
	}

	if len(q.Topics) > len(l.Topics) {
		return false
	}
	for i, alternatives := range q.Topics {
		if len(alternatives) == 0 {
			continue
		}
		if !containsHash(alternatives, l.Topics[i]) {
			return false
		}
	}
	return true
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, v := range list {
		if v == a {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, h common.Hash) bool {
	for _, v := range list {
		if v == h {
			return true
		}
	}
	return false
}
