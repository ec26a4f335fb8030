package proxy

import (
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrAdminOnlyAllowedOperation = errors.New("admin only allowed operation")
	ErrNoReturnData              = errors.New("call returned no data")
)

// CallContext is what delegated code sees while it runs on behalf of the proxy.
type CallContext struct {
	// Self is the proxy address, the identity code executes under.
	Self   common.Address
	Caller common.Address
	// Admin is the proxy admin at the time of the call.
	Admin   common.Address
	Storage Storage
}

// Code is executable logic living at some address.
type Code interface {
	Handle(ctx *CallContext, input []byte) ([]byte, error)
}

// CodeResolver tells whether an address holds code.
type CodeResolver interface {
	CodeAt(addr common.Address) (Code, bool)
}

// Proxy forwards every call to its implementation while keeping its own
// pointers in namespaced storage slots.
type Proxy struct {
	mu sync.Mutex

	address  common.Address
	resolver CodeResolver
	logger   logrus.FieldLogger
	storage  map[common.Hash]common.Hash
}

// New creates a proxy owned by admin with no implementation.
func New(address, admin common.Address, resolver CodeResolver, logger logrus.FieldLogger) *Proxy {
	p := &Proxy{
		address:  address,
		resolver: resolver,
		logger:   logger,
		storage:  make(map[common.Hash]common.Hash),
	}
	p.storage[adminSlot] = common.BytesToHash(admin.Bytes())
	return p
}

func (p *Proxy) Address() common.Address {
	return p.address
}

func (p *Proxy) Admin() common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.admin()
}

func (p *Proxy) Implementation() common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()

	return common.BytesToAddress(p.storage[implementationSlot].Bytes())
}

// Load reads a raw storage word of the proxy.
func (p *Proxy) Load(slot common.Hash) common.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.storage[slot]
}

func (p *Proxy) SetAdmin(sender, admin common.Address) error {
	return p.setPointer(sender, adminSlot, admin, "admin")
}

func (p *Proxy) SetImplementation(sender, implementation common.Address) error {
	return p.setPointer(sender, implementationSlot, implementation, "implementation")
}

func (p *Proxy) setPointer(sender common.Address, slot common.Hash, value common.Address, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sender != p.admin() {
		return ErrAdminOnlyAllowedOperation
	}

	if value == (common.Address{}) {
		delete(p.storage, slot)
	} else {
		p.storage[slot] = common.BytesToHash(value.Bytes())
	}

	p.logger.WithFields(logrus.Fields{
		"proxy": p.address,
		name:    value,
	}).Info("Update proxy pointer")
	return nil
}

// Call forwards input to the implementation. A contract implementation runs
// against the proxy storage, its writes are kept only when it succeeds. An
// address without code accepts any call, changes nothing and returns no data.
func (p *Proxy) Call(sender common.Address, input []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	impl := common.BytesToAddress(p.storage[implementationSlot].Bytes())
	code, ok := p.resolver.CodeAt(impl)
	if !ok {
		p.logger.WithFields(logrus.Fields{
			"proxy":          p.address,
			"implementation": impl,
		}).Debug("Forward call to address without code")
		return nil, nil
	}

	j := newJournal(p.storage)
	ret, err := code.Handle(&CallContext{
		Self:    p.address,
		Caller:  sender,
		Admin:   p.admin(),
		Storage: j,
	}, input)
	if err != nil {
		return nil, err
	}

	j.commit()
	return ret, nil
}

// Invoke packs an ABI call, forwards it and decodes the outputs. When the
// method declares outputs but nothing came back, decoding fails with
// ErrNoReturnData.
func (p *Proxy) Invoke(sender common.Address, contract *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	m, ok := contract.Methods[method]
	if !ok {
		return nil, errors.Errorf("method %q not found", method)
	}

	input, err := contract.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}

	ret, err := p.Call(sender, input)
	if err != nil {
		return nil, err
	}

	if len(m.Outputs) == 0 {
		return nil, nil
	}
	if len(ret) == 0 {
		return nil, errors.Wrapf(ErrNoReturnData, "decode %s", method)
	}
	return m.Outputs.Unpack(ret)
}

func (p *Proxy) admin() common.Address {
	return common.BytesToAddress(p.storage[adminSlot].Bytes())
}
