package checkpoint

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

var (
	ErrFutureLookup      = errors.New("checkpoint future lookup")
	ErrNonMonotonicWrite = errors.New("checkpoint index is not increasing")
)

// FutureLookupError is returned when a lookup asks for a height the ledger has not reached yet.
type FutureLookupError struct {
	Requested uint64
	Latest    uint64
}

func (e *FutureLookupError) Error() string {
	return fmt.Sprintf("%s: requested %d, latest %d", ErrFutureLookup, e.Requested, e.Latest)
}

func (e *FutureLookupError) Is(target error) bool {
	return target == ErrFutureLookup
}

// Checkpoint is an immutable value recorded for an account at a global index.
type Checkpoint struct {
	Index uint64
	Value *uint256.Int
}

// Ledger keeps append-only histories for many accounts that share one global height.
//
// All checkpoints live in a single arena; every account owns an ordered list of
// arena positions, so a history is addressed by indices rather than pointers.
type Ledger struct {
	mu sync.RWMutex

	height  uint64
	arena   []Checkpoint
	history map[common.Address][]int
}

func New() *Ledger {
	return &Ledger{
		history: make(map[common.Address][]int),
	}
}

// Height returns the current global index. Zero means nothing happened yet.
func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.height
}

// Advance moves the global index forward by one and returns the new value.
func (l *Ledger) Advance() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.height++
	return l.height
}

// Write appends value for account at the current height. Index 0 always reads
// as zero, so nothing can be written before the first Advance.
func (l *Ledger) Write(account common.Address, value *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.height == 0 {
		return errors.Wrapf(ErrNonMonotonicWrite, "account %s: height 0 is reserved", account)
	}

	positions := l.history[account]
	if n := len(positions); n > 0 {
		last := l.arena[positions[n-1]].Index
		if last >= l.height {
			return errors.Wrapf(ErrNonMonotonicWrite, "account %s: last %d, height %d", account, last, l.height)
		}
	}

	l.arena = append(l.arena, Checkpoint{Index: l.height, Value: value.Clone()})
	l.history[account] = append(positions, len(l.arena)-1)
	return nil
}

// Lookup returns the value recorded at the greatest checkpoint index not above index.
func (l *Ledger) Lookup(account common.Address, index uint64) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if index > l.height {
		return nil, &FutureLookupError{Requested: index, Latest: l.height}
	}

	positions := l.history[account]
	// first checkpoint strictly after index
	i := sort.Search(len(positions), func(i int) bool {
		return l.arena[positions[i]].Index > index
	})
	if i == 0 {
		return uint256.NewInt(0), nil
	}
	return l.arena[positions[i-1]].Value.Clone(), nil
}

// Latest returns the most recent value recorded for account.
func (l *Ledger) Latest(account common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := l.history[account]
	if len(positions) == 0 {
		return uint256.NewInt(0)
	}
	return l.arena[positions[len(positions)-1]].Value.Clone()
}

// Checkpoints returns a copy of the history of account, oldest first.
func (l *Ledger) Checkpoints(account common.Address) []Checkpoint {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := l.history[account]
	res := make([]Checkpoint, 0, len(positions))
	for _, p := range positions {
		cp := l.arena[p]
		res = append(res, Checkpoint{Index: cp.Index, Value: cp.Value.Clone()})
	}
	return res
}
