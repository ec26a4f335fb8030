package token

import (
	"testing"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/proxygov/checkpoint"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = common.HexToAddress("0xff00000000000000000000000000000000001001")
	addr1 = common.HexToAddress("0x110000000000000000000000000000000000ffff")
	addr2 = common.HexToAddress("0x220000000000000000000000000000000000ffff")
)

const supply = 1_000_000_000

func newToken(t *testing.T) *Token {
	tk := New("Decentralized Exchange", "DEDEX", log.New())
	require.Nil(t, tk.Mint(owner, uint256.NewInt(supply)))
	return tk
}

func TestDeployment(t *testing.T) {
	tk := newToken(t)

	assert.Equal(t, "DEDEX", tk.Symbol())
	assert.Equal(t, uint64(supply), tk.TotalSupply().Uint64())
	assert.Equal(t, tk.TotalSupply(), tk.BalanceOf(owner))
	assert.Equal(t, uint64(1), tk.Height())
}

func TestTransfer(t *testing.T) {
	tk := newToken(t)

	require.Nil(t, tk.Transfer(owner, addr1, uint256.NewInt(100)))
	assert.Equal(t, uint64(100), tk.BalanceOf(addr1).Uint64())

	err := tk.Transfer(addr1, owner, uint256.NewInt(101))
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, uint64(100), tk.BalanceOf(addr1).Uint64())
	// failed calls do not move the height
	assert.Equal(t, uint64(2), tk.Height())

	err = tk.Transfer(owner, common.Address{}, uint256.NewInt(1))
	assert.True(t, errors.Is(err, ErrInvalidReceiver))
	err = tk.Transfer(common.Address{}, owner, uint256.NewInt(1))
	assert.True(t, errors.Is(err, ErrInvalidSender))
	err = tk.Mint(common.Address{}, uint256.NewInt(1))
	assert.True(t, errors.Is(err, ErrInvalidReceiver))
}

func TestBalanceHistory(t *testing.T) {
	tk := newToken(t)
	require.Nil(t, tk.Transfer(owner, addr1, uint256.NewInt(100)))

	b0, err := tk.BalanceOfAt(owner, 0)
	require.Nil(t, err)
	assert.True(t, b0.IsZero())

	b1, err := tk.BalanceOfAt(owner, 1)
	require.Nil(t, err)
	assert.Equal(t, uint64(supply), b1.Uint64())

	b2, err := tk.BalanceOfAt(owner, 2)
	require.Nil(t, err)
	assert.Equal(t, uint64(supply-100), b2.Uint64())

	_, err = tk.BalanceOfAt(owner, tk.Height()+1)
	assert.True(t, errors.Is(err, checkpoint.ErrFutureLookup))

	s0, err := tk.TotalSupplyAt(0)
	require.Nil(t, err)
	assert.True(t, s0.IsZero())
	s2, err := tk.TotalSupplyAt(2)
	require.Nil(t, err)
	assert.Equal(t, uint64(supply), s2.Uint64())
}

func TestBatchSharesOneIndex(t *testing.T) {
	tk := newToken(t)
	before := tk.BalanceOf(owner).Uint64()

	err := tk.Batch(func(tx *Tx) error {
		if err := tx.Transfer(owner, addr1, uint256.NewInt(1000)); err != nil {
			return err
		}
		return tx.Transfer(owner, addr1, uint256.NewInt(1001))
	})
	require.Nil(t, err)
	assert.Equal(t, uint64(2), tk.Height())

	b, err := tk.BalanceOfAt(owner, tk.Height())
	require.Nil(t, err)
	assert.Equal(t, before-2001, b.Uint64())

	// one checkpoint per account for the whole batch
	assert.Len(t, tk.Checkpoints(owner), 2)
	assert.Len(t, tk.Checkpoints(addr1), 1)
	assert.Equal(t, tk.Checkpoints(owner)[1].Index, tk.Checkpoints(addr1)[0].Index)
}

func TestBatchIsAtomic(t *testing.T) {
	tk := newToken(t)

	err := tk.Batch(func(tx *Tx) error {
		if err := tx.Transfer(owner, addr1, uint256.NewInt(10)); err != nil {
			return err
		}
		return tx.Transfer(addr2, addr1, uint256.NewInt(1))
	})
	assert.True(t, errors.Is(err, ErrInsufficientBalance))

	assert.True(t, tk.BalanceOf(addr1).IsZero())
	assert.Equal(t, uint64(supply), tk.BalanceOf(owner).Uint64())
	assert.Equal(t, uint64(1), tk.Height())
	assert.Empty(t, tk.Checkpoints(addr1))
}

func TestMine(t *testing.T) {
	tk := newToken(t)

	assert.Equal(t, uint64(11), tk.Mine(10))
	assert.Equal(t, uint64(11), tk.Mine(0))

	b, err := tk.BalanceOfAt(owner, 7)
	require.Nil(t, err)
	assert.Equal(t, uint64(supply), b.Uint64())
}

func TestLatestIndexMatchesLiveBalance(t *testing.T) {
	tk := newToken(t)

	accounts := []common.Address{owner, addr1, addr2}
	for i := 0; i < 50; i++ {
		from := accounts[i%3]
		to := accounts[(i+1)%3]
		amount := uint256.NewInt(uint64(i * 7))
		if tk.BalanceOf(from).Lt(amount) {
			continue
		}
		require.Nil(t, tk.Transfer(from, to, amount))

		for _, a := range accounts {
			at, err := tk.BalanceOfAt(a, tk.Height())
			require.Nil(t, err)
			assert.Equal(t, tk.BalanceOf(a), at)
		}
	}
}

func TestSelfTransfer(t *testing.T) {
	tk := newToken(t)

	require.Nil(t, tk.Transfer(owner, owner, uint256.NewInt(5)))
	assert.Equal(t, uint64(supply), tk.BalanceOf(owner).Uint64())
	assert.Len(t, tk.Checkpoints(owner), 1)
}
