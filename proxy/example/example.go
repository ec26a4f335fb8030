// Package example provides upgrade targets that can be plugged behind a proxy.
package example

import (
	"math/big"
	"strings"

	"github.com/axiomesh/proxygov/proxy"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

var ErrUnknownSelector = errors.New("unknown function selector")

var (
	slotX       = proxy.Slot(proxy.SharedStorageLocation, 0)
	slotY       = proxy.Slot(proxy.SharedStorageLocation, 1)
	slotZ       = proxy.Slot(proxy.SharedStorageLocation, 2)
	slotVersion = proxy.Slot(proxy.SharedStorageLocation, 3)
)

type handler func(ctx *proxy.CallContext, args []interface{}) ([]interface{}, error)

var _ proxy.Code = (*Implementation)(nil)

// Implementation dispatches ABI encoded calls to Go handlers.
type Implementation struct {
	ABI      abi.ABI
	version  uint64
	handlers map[string]handler
}

func newImplementation(definition string, version uint64) *Implementation {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}

	impl := &Implementation{
		ABI:     parsed,
		version: version,
	}
	impl.handlers = map[string]handler{
		"Initialize": impl.initialize,
		"Terminate":  impl.terminate,
		"version":    getter(slotVersion),
		"setX":       adminSetter(slotX),
		"setY":       setter(slotY),
		"getX":       getter(slotX),
		"getY":       getter(slotY),
	}
	return impl
}

func (impl *Implementation) Handle(ctx *proxy.CallContext, input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, ErrUnknownSelector
	}
	method, err := impl.ABI.MethodById(input[:4])
	if err != nil {
		return nil, errors.Wrapf(ErrUnknownSelector, "%x", input[:4])
	}
	h, ok := impl.handlers[method.Name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSelector, "%s", method.Name)
	}

	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method.Name)
	}
	out, err := h(ctx, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (impl *Implementation) initialize(ctx *proxy.CallContext, _ []interface{}) ([]interface{}, error) {
	if ctx.Caller != ctx.Admin {
		return nil, proxy.ErrAdminOnlyAllowedOperation
	}
	return nil, ctx.Storage.Store(slotVersion, common.BigToHash(new(big.Int).SetUint64(impl.version)))
}

func (impl *Implementation) terminate(ctx *proxy.CallContext, _ []interface{}) ([]interface{}, error) {
	if ctx.Caller != ctx.Admin {
		return nil, proxy.ErrAdminOnlyAllowedOperation
	}
	return nil, ctx.Storage.Store(slotVersion, common.Hash{})
}

func load(s proxy.Storage, slot common.Hash) *uint256.Int {
	v := s.Load(slot)
	return new(uint256.Int).SetBytes32(v[:])
}

func getter(slot common.Hash) handler {
	return func(ctx *proxy.CallContext, _ []interface{}) ([]interface{}, error) {
		return []interface{}{load(ctx.Storage, slot).ToBig()}, nil
	}
}

func setter(slot common.Hash) handler {
	return func(ctx *proxy.CallContext, args []interface{}) ([]interface{}, error) {
		v, ok := args[0].(*big.Int)
		if !ok {
			return nil, errors.Errorf("unexpected argument %T", args[0])
		}
		return nil, ctx.Storage.Store(slot, common.BigToHash(v))
	}
}

func adminSetter(slot common.Hash) handler {
	set := setter(slot)
	return func(ctx *proxy.CallContext, args []interface{}) ([]interface{}, error) {
		if ctx.Caller != ctx.Admin {
			return nil, proxy.ErrAdminOnlyAllowedOperation
		}
		return set(ctx, args)
	}
}

func product(slots ...common.Hash) handler {
	return func(ctx *proxy.CallContext, _ []interface{}) ([]interface{}, error) {
		res := uint256.NewInt(1)
		for _, s := range slots {
			res.Mul(res, load(ctx.Storage, s))
		}
		return []interface{}{res.ToBig()}, nil
	}
}
