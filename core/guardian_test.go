package core

import (
	"context"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/proxygov/eventlog"
	"github.com/axiomesh/proxygov/governance"
	"github.com/axiomesh/proxygov/proxy"
	"github.com/axiomesh/proxygov/proxy/example"
	"github.com/axiomesh/proxygov/repo"
	"github.com/axiomesh/proxygov/token"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

var (
	v1Addr = common.HexToAddress("0x0000000000000000000000000000000000003001")
	v2Addr = common.HexToAddress("0x0000000000000000000000000000000000003002")
	addr1  = common.HexToAddress("0x110000000000000000000000000000000000ffff")
	addr2  = common.HexToAddress("0x220000000000000000000000000000000000ffff")
)

type chain struct {
	config *repo.Config
	token  *token.Token
	proxy  *proxy.Proxy
	gov    *governance.Governance
	logs   *eventlog.Store
}

func newChain(t *testing.T) *chain {
	c := repo.DefaultConfig(t.TempDir())
	c.Log.Level = "debug"

	logger := log.New()
	developer := common.HexToAddress(c.Governance.Developer)
	supply, err := c.Governance.Token.TotalSupply()
	require.Nil(t, err)

	tk := token.New(c.Governance.Token.Name, c.Governance.Token.Symbol, logger)
	require.Nil(t, tk.Mint(developer, supply))

	registry := proxy.NewRegistry()
	registry.Deploy(v1Addr, example.NewV1())
	registry.Deploy(v2Addr, example.NewV2())
	px := proxy.New(common.HexToAddress(c.Governance.ProxyAddress), developer, registry, logger)
	require.Nil(t, px.SetImplementation(developer, v1Addr))
	require.Nil(t, px.SetAdmin(developer, common.HexToAddress(c.Governance.Address)))

	logs := eventlog.New()
	gov := governance.New(common.HexToAddress(c.Governance.Address), developer, c.Governance.Config(), tk, px,
		governance.WithLogger(logger),
		governance.WithLogSink(logs),
	)

	return &chain{config: c, token: tk, proxy: px, gov: gov, logs: logs}
}

// pass runs a proposal by the developer, who holds the whole supply, through to execution.
func (c *chain) pass(t *testing.T, typ governance.ProposalType, target common.Address) uint64 {
	developer := c.gov.Developer()
	id, err := c.gov.NewProposal(developer, typ, "test: "+typ.String(), target)
	require.Nil(t, err)
	require.Nil(t, c.gov.Vote(developer, id, true))
	c.token.Mine(c.config.Governance.VotingPeriod)
	require.Nil(t, c.gov.Execute(developer, id))
	return id
}

func implementationIs(g *Guardian, want common.Address) func() bool {
	return func() bool {
		impl, ok := g.Implementation()
		return ok && impl == want
	}
}

func TestGuardianFollowsGovernance(t *testing.T) {
	c := newChain(t)
	id := c.pass(t, governance.NewProxyImplementation, v2Addr)

	g, err := NewGuardian(context.Background(), c.config, c.logs)
	require.Nil(t, err)
	require.Nil(t, g.Start())
	defer func() {
		assert.Nil(t, g.Stop())
	}()

	// history is processed before Start returns
	impl, ok := g.Implementation()
	require.True(t, ok)
	assert.Equal(t, v2Addr, impl)

	record, err := g.Executed(id)
	require.Nil(t, err)
	assert.Equal(t, id, record.ID)
	assert.Equal(t, governance.NewProxyImplementation, record.Type)
	assert.Equal(t, v2Addr, record.Target)
	assert.Equal(t, c.gov.Developer(), record.ExecutedBy)
	assert.Equal(t, c.token.Height(), record.BlockNumber)

	_, err = g.Executed(id + 1)
	assert.True(t, errors.Is(err, ErrExecutedProposalNotFound))

	_, ok = g.ProxyAdmin()
	assert.False(t, ok)
	assert.Equal(t, common.HexToAddress(c.config.Governance.Developer), g.Developer())

	c.pass(t, governance.NewProxyImplementation, v1Addr)
	assert.Eventually(t, implementationIs(g, v1Addr), waitFor, tick)

	c.pass(t, governance.NewDeveloper, addr1)
	assert.Eventually(t, func() bool { return g.Developer() == addr1 }, waitFor, tick)

	require.Nil(t, c.gov.SetDeveloper(addr1, addr2))
	assert.Eventually(t, func() bool { return g.Developer() == addr2 }, waitFor, tick)
}

func TestGuardianResumesFromCursor(t *testing.T) {
	c := newChain(t)

	g, err := NewGuardian(context.Background(), c.config, c.logs)
	require.Nil(t, err)
	require.Nil(t, g.Start())

	_, ok := g.Cursor()
	assert.False(t, ok)

	id := c.pass(t, governance.NewProxyImplementation, v2Addr)
	assert.Eventually(t, implementationIs(g, v2Addr), waitFor, tick)

	cursor, ok := g.Cursor()
	require.True(t, ok)
	assert.Equal(t, c.token.Height(), cursor.BlockNumber)
	require.Nil(t, g.Stop())

	c.pass(t, governance.NewProxyAdmin, addr1)

	g, err = NewGuardian(context.Background(), c.config, c.logs)
	require.Nil(t, err)
	require.Nil(t, g.Start())
	defer func() {
		assert.Nil(t, g.Stop())
	}()

	record, err := g.Executed(id)
	require.Nil(t, err)
	assert.Equal(t, v2Addr, record.Target)

	admin, ok := g.ProxyAdmin()
	require.True(t, ok)
	assert.Equal(t, addr1, admin)

	next, ok := g.Cursor()
	require.True(t, ok)
	assert.True(t, cursor.Before(next))
}

func TestGuardianSkipsUnknownLogs(t *testing.T) {
	c := newChain(t)
	c.config.Subscribe.Topics = nil

	c.logs.Append(types.Log{
		Address:     common.HexToAddress(c.config.Governance.Address),
		Topics:      []common.Hash{common.HexToHash("0xdead")},
		BlockNumber: c.token.Height(),
	})

	g, err := NewGuardian(context.Background(), c.config, c.logs)
	require.Nil(t, err)
	require.Nil(t, g.Start())
	defer func() {
		assert.Nil(t, g.Stop())
	}()

	cursor, ok := g.Cursor()
	require.True(t, ok)
	assert.Equal(t, uint64(0), cursor.Index)

	// every governance event advances the cursor, not only the tracked ones
	id, err := c.gov.NewProposal(c.gov.Developer(), governance.NewDeveloper, "test: developer", addr1)
	require.Nil(t, err)
	assert.Eventually(t, func() bool {
		cursor, _ := g.Cursor()
		return cursor.Index == 1
	}, waitFor, tick)
	_, err = g.Executed(id)
	assert.NotNil(t, err)
}

type droppedSubscription struct {
	err chan error
}

func (s *droppedSubscription) Unsubscribe() {}

func (s *droppedSubscription) Err() <-chan error {
	return s.err
}

// flakyClient serves history but its subscription never delivers and can be dropped.
type flakyClient struct {
	*eventlog.Store
	sub *droppedSubscription
}

func (c *flakyClient) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return c.sub, nil
}

func TestGuardianReconnects(t *testing.T) {
	c := newChain(t)
	flaky := &flakyClient{Store: c.logs, sub: &droppedSubscription{err: make(chan error, 1)}}

	dials := 0
	dialer := func(ctx context.Context, url string) (Client, error) {
		dials++
		assert.Equal(t, c.config.DialUrl, url)
		if dials == 1 {
			return nil, errors.New("connection refused")
		}
		return c.logs, nil
	}

	g, err := NewGuardian(context.Background(), c.config, flaky, WithDialer(dialer), WithRetry(3, time.Millisecond))
	require.Nil(t, err)
	require.Nil(t, g.Start())
	defer func() {
		assert.Nil(t, g.Stop())
	}()

	c.pass(t, governance.NewProxyImplementation, v2Addr)
	_, ok := g.Implementation()
	assert.False(t, ok)

	flaky.sub.err <- errors.New("websocket closed")
	assert.Eventually(t, implementationIs(g, v2Addr), waitFor, tick)

	c.pass(t, governance.NewProxyImplementation, v1Addr)
	assert.Eventually(t, implementationIs(g, v1Addr), waitFor, tick)
}

func TestCursorOrder(t *testing.T) {
	a := Cursor{BlockNumber: 5, Index: 9}
	b := Cursor{BlockNumber: 6, Index: 0}

	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))

	decoded, ok := decodeCursor(b.encode())
	require.True(t, ok)
	assert.Equal(t, b, decoded)

	_, ok = decodeCursor(nil)
	assert.False(t, ok)
}

func TestGuardianStats(t *testing.T) {
	c := newChain(t)
	c.pass(t, governance.NewProxyImplementation, v2Addr)

	g, err := NewGuardian(context.Background(), c.config, c.logs)
	require.Nil(t, err)
	require.Nil(t, g.Start())
	defer func() {
		assert.Nil(t, g.Stop())
	}()

	stats := g.Stats()
	assert.Equal(t, int64(1), stats["logs.processed"])
	assert.Equal(t, int64(1), stats["proposals.executed"])
	assert.Equal(t, int64(0), stats["logs.skipped"])
	assert.Equal(t, int64(0), stats["client.reconnects"])
	assert.Equal(t, int64(c.token.Height()), stats["logs.last_block"])
	assert.Equal(t, int64(1), stats["logs.handle_latency.count"])
}
