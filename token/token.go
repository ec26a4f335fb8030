package token

import (
	"sync"

	"github.com/axiomesh/proxygov/checkpoint"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidReceiver     = errors.New("invalid receiver")
	ErrInvalidSender       = errors.New("invalid sender")
	ErrSupplyOverflow      = errors.New("total supply overflow")
)

// supplyAccount keys the total supply history. The zero address can never
// hold a balance: it is rejected both as a sender and as a receiver.
var supplyAccount = common.Address{}

// Token is a fungible balance ledger that records a checkpoint for every
// balance it changes. Each committed call or batch advances the shared
// height exactly once.
type Token struct {
	mu sync.Mutex

	name   string
	symbol string
	logger logrus.FieldLogger

	balances map[common.Address]*uint256.Int
	supply   *uint256.Int
	ledger   *checkpoint.Ledger
}

func New(name, symbol string, logger logrus.FieldLogger) *Token {
	return &Token{
		name:     name,
		symbol:   symbol,
		logger:   logger,
		balances: make(map[common.Address]*uint256.Int),
		supply:   uint256.NewInt(0),
		ledger:   checkpoint.New(),
	}
}

func (t *Token) Name() string {
	return t.name
}

func (t *Token) Symbol() string {
	return t.symbol
}

// Height returns the current global index.
func (t *Token) Height() uint64 {
	return t.ledger.Height()
}

func (t *Token) BalanceOf(account common.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.balanceOf(account)
}

func (t *Token) TotalSupply() *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.supply.Clone()
}

// BalanceOfAt returns the balance account had at index.
func (t *Token) BalanceOfAt(account common.Address, index uint64) (*uint256.Int, error) {
	return t.ledger.Lookup(account, index)
}

// TotalSupplyAt returns the total supply at index.
func (t *Token) TotalSupplyAt(index uint64) (*uint256.Int, error) {
	return t.ledger.Lookup(supplyAccount, index)
}

// Checkpoints exposes the recorded history of account.
func (t *Token) Checkpoints(account common.Address) []checkpoint.Checkpoint {
	return t.ledger.Checkpoints(account)
}

// Mine advances the height n times without changing any balance.
func (t *Token) Mine(n uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var h uint64
	for i := uint64(0); i < n; i++ {
		h = t.ledger.Advance()
	}
	if n == 0 {
		h = t.ledger.Height()
	}
	return h
}

func (t *Token) Mint(to common.Address, amount *uint256.Int) error {
	return t.Batch(func(tx *Tx) error {
		return tx.Mint(to, amount)
	})
}

func (t *Token) Transfer(from, to common.Address, amount *uint256.Int) error {
	return t.Batch(func(tx *Tx) error {
		return tx.Transfer(from, to, amount)
	})
}

// Batch runs fn atomically. When fn succeeds every changed balance is
// checkpointed at one new height; when it fails nothing is applied.
func (t *Token) Batch(fn func(tx *Tx) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx := &Tx{
		token:    t,
		balances: make(map[common.Address]*uint256.Int),
		supply:   t.supply.Clone(),
	}
	if err := fn(tx); err != nil {
		return err
	}

	return t.commit(tx)
}

func (t *Token) commit(tx *Tx) error {
	height := t.ledger.Advance()

	changed := 0
	for account, balance := range tx.balances {
		if balance.Eq(t.balanceOf(account)) {
			continue
		}
		t.balances[account] = balance
		if err := t.ledger.Write(account, balance); err != nil {
			return errors.Wrap(err, "write balance checkpoint")
		}
		changed++
	}

	if !tx.supply.Eq(t.supply) {
		t.supply = tx.supply
		if err := t.ledger.Write(supplyAccount, t.supply); err != nil {
			return errors.Wrap(err, "write supply checkpoint")
		}
	}

	t.logger.WithFields(logrus.Fields{
		"height":  height,
		"changed": changed,
		"ops":     tx.ops,
	}).Debug("Commit token batch")
	return nil
}

func (t *Token) balanceOf(account common.Address) *uint256.Int {
	if b, ok := t.balances[account]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

// Tx stages balance changes of a batch. Reads observe earlier writes of the same batch.
type Tx struct {
	token    *Token
	balances map[common.Address]*uint256.Int
	supply   *uint256.Int
	ops      int
}

func (tx *Tx) BalanceOf(account common.Address) *uint256.Int {
	if b, ok := tx.balances[account]; ok {
		return b.Clone()
	}
	return tx.token.balanceOf(account)
}

func (tx *Tx) Mint(to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}

	supply, overflow := new(uint256.Int).AddOverflow(tx.supply, amount)
	if overflow {
		return ErrSupplyOverflow
	}

	tx.supply = supply
	tx.balances[to] = new(uint256.Int).Add(tx.BalanceOf(to), amount)
	tx.ops++
	return nil
}

func (tx *Tx) Transfer(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) {
		return ErrInvalidSender
	}
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}

	fromBalance := tx.BalanceOf(from)
	if fromBalance.Lt(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "%s has %s, needs %s", from, fromBalance.ToBig(), amount.ToBig())
	}

	tx.balances[from] = new(uint256.Int).Sub(fromBalance, amount)
	tx.balances[to] = new(uint256.Int).Add(tx.BalanceOf(to), amount)
	tx.ops++
	return nil
}
