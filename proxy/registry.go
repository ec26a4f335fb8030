package proxy

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var _ CodeResolver = (*Registry)(nil)

// Registry maps addresses to deployed code.
type Registry struct {
	mu   sync.RWMutex
	code map[common.Address]Code
}

func NewRegistry() *Registry {
	return &Registry{
		code: make(map[common.Address]Code),
	}
}

func (r *Registry) Deploy(addr common.Address, code Code) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.code[addr] = code
}

func (r *Registry) CodeAt(addr common.Address) (Code, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.code[addr]
	return c, ok
}
