package core

import (
	"encoding/binary"

	"github.com/axiomesh/proxygov/governance"
	"github.com/ethereum/go-ethereum/common"
)

// ExecutedProposal is the audit record kept for every executed proposal seen on chain.
type ExecutedProposal struct {
	ID          uint64                  `json:"id"`
	Type        governance.ProposalType `json:"type"`
	Target      common.Address          `json:"target"`
	ExecutedBy  common.Address          `json:"executed_by"`
	BlockNumber uint64                  `json:"block_number"`
	TxHash      common.Hash             `json:"tx_hash"`
}

// Cursor is the position of the last processed log.
type Cursor struct {
	BlockNumber uint64 `json:"block_number"`
	Index       uint64 `json:"index"`
}

// Before reports whether c sorts strictly before o.
func (c Cursor) Before(o Cursor) bool {
	if c.BlockNumber != o.BlockNumber {
		return c.BlockNumber < o.BlockNumber
	}
	return c.Index < o.Index
}

func (c Cursor) encode() []byte {
	data := make([]byte, 16)
	binary.BigEndian.PutUint64(data[:8], c.BlockNumber)
	binary.BigEndian.PutUint64(data[8:], c.Index)
	return data
}

func decodeCursor(data []byte) (Cursor, bool) {
	if len(data) != 16 {
		return Cursor{}, false
	}
	return Cursor{
		BlockNumber: binary.BigEndian.Uint64(data[:8]),
		Index:       binary.BigEndian.Uint64(data[8:]),
	}, true
}
