package proxy

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

const (
	ProxyNamespace  = "$.proxy"
	SharedNamespace = "$.shared"
)

var (
	// ProxyStorageLocation holds the admin (+0) and implementation (+1) pointers.
	ProxyStorageLocation = StorageLocation(ProxyNamespace)
	// SharedStorageLocation is where implementations keep their own state.
	SharedStorageLocation = StorageLocation(SharedNamespace)

	adminSlot          = ProxyStorageLocation
	implementationSlot = Slot(ProxyStorageLocation, 1)

	ErrReservedSlot = errors.New("storage slot is reserved by the proxy")
)

// StorageLocation derives the ERC-7201 root slot of namespace:
// keccak256(uint256(keccak256(namespace)) - 1) & ~0xff.
func StorageLocation(namespace string) common.Hash {
	inner := new(uint256.Int).SetBytes(crypto.Keccak256([]byte(namespace)))
	inner.SubUint64(inner, 1)
	encoded := inner.Bytes32()

	loc := crypto.Keccak256Hash(encoded[:])
	loc[common.HashLength-1] = 0
	return loc
}

// Slot returns the slot located offset positions after base.
func Slot(base common.Hash, offset uint64) common.Hash {
	v := new(uint256.Int).SetBytes32(base.Bytes())
	v.AddUint64(v, offset)
	return v.Bytes32()
}

// Storage is a word-addressed key/value store as seen by executing code.
type Storage interface {
	Load(slot common.Hash) common.Hash
	Store(slot, value common.Hash) error
}

// journal buffers writes on top of the proxy storage until the call succeeds.
type journal struct {
	base  map[common.Hash]common.Hash
	dirty map[common.Hash]common.Hash
}

func newJournal(base map[common.Hash]common.Hash) *journal {
	return &journal{
		base:  base,
		dirty: make(map[common.Hash]common.Hash),
	}
}

func (j *journal) Load(slot common.Hash) common.Hash {
	if v, ok := j.dirty[slot]; ok {
		return v
	}
	return j.base[slot]
}

func (j *journal) Store(slot, value common.Hash) error {
	if slot == adminSlot || slot == implementationSlot {
		return errors.Wrapf(ErrReservedSlot, "slot %s", slot)
	}
	j.dirty[slot] = value
	return nil
}

func (j *journal) commit() {
	for k, v := range j.dirty {
		if v == (common.Hash{}) {
			delete(j.base, k)
			continue
		}
		j.base[k] = v
	}
}
