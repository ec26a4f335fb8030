package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"path/filepath"
	"sync"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/proxygov/governance"
	"github.com/axiomesh/proxygov/repo"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	LogChanMaxSize = 1000

	cursorKey         = "cursor"
	implementationKey = "implementation"
	proxyAdminKey     = "proxyAdmin"
	developerKey      = "developer"
	executedKeyPrefix = "executed/"

	defaultRetryLimit = 5
	defaultRetryDelay = 5 * time.Second
)

var ErrExecutedProposalNotFound = errors.New("executed proposal not found")

type Option func(*Guardian)

// WithDialer replaces the dialer used to reconnect after the subscription drops.
func WithDialer(dialer Dialer) Option {
	return func(g *Guardian) {
		g.dialer = dialer
	}
}

func WithRetry(limit uint, delay time.Duration) Option {
	return func(g *Guardian) {
		g.retryLimit = limit
		g.retryDelay = delay
	}
}

// Guardian follows the governance contract's logs and keeps an audit trail
// of what governance changed on the proxy.
type Guardian struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  logrus.FieldLogger
	db      storage.Storage
	config  *repo.Config
	metrics *Metrics

	client Client
	dialer Dialer
	query  ethereum.FilterQuery

	retryLimit uint
	retryDelay time.Duration

	logChan chan types.Log
	logSub  ethereum.Subscription
	wg      sync.WaitGroup

	// guards db writes against readers
	mu sync.RWMutex
}

func NewGuardian(ctx context.Context, config *repo.Config, client Client, opts ...Option) (*Guardian, error) {
	logger := log.New()
	logger.SetLevel(log.ParseLevel(config.Log.Level))

	query := ethereum.FilterQuery{}
	if config.Subscribe.ToBlock != 0 {
		query.ToBlock = new(big.Int).SetUint64(config.Subscribe.ToBlock)
	}
	for _, addr := range config.Subscribe.Addresses {
		query.Addresses = append(query.Addresses, common.HexToAddress(addr))
	}
	for _, topic := range config.Subscribe.Topics {
		var alternatives []common.Hash
		for _, s := range topic {
			alternatives = append(alternatives, common.HexToHash(s))
		}
		query.Topics = append(query.Topics, alternatives)
	}

	db, err := leveldb.New(filepath.Join(config.RepoRoot, repo.LevelDBDirName))
	if err != nil {
		return nil, errors.Wrap(err, "open leveldb")
	}

	ctx, cancel := context.WithCancel(ctx)
	g := &Guardian{
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger.WithField("module", "guardian"),
		db:         db,
		config:     config,
		metrics:    NewMetrics(),
		client:     client,
		dialer:     DialEthClient,
		query:      query,
		retryLimit: defaultRetryLimit,
		retryDelay: defaultRetryDelay,
		logChan:    make(chan types.Log, LogChanMaxSize),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Start catches up on historic logs and then follows new ones until Stop.
func (g *Guardian) Start() error {
	// subscribe before catching up so nothing emitted in between is missed
	if err := g.subscribeLog(); err != nil {
		return errors.Wrap(err, "subscribe logs")
	}
	if err := g.fetchHistoryLog(); err != nil {
		g.logSub.Unsubscribe()
		return errors.Wrap(err, "fetch history logs")
	}

	g.wg.Add(1)
	go g.listenEvents()

	return nil
}

func (g *Guardian) Stop() error {
	g.cancel()
	g.wg.Wait()

	return g.db.Close()
}

func (g *Guardian) fromBlock() *big.Int {
	from := g.config.Subscribe.FromBlock
	if cursor, ok := g.Cursor(); ok && cursor.BlockNumber > from {
		from = cursor.BlockNumber
	}
	return new(big.Int).SetUint64(from)
}

func (g *Guardian) fetchHistoryLog() error {
	q := g.query
	q.FromBlock = g.fromBlock()

	logs, err := g.client.FilterLogs(g.ctx, q)
	if err != nil {
		return err
	}
	g.logger.WithFields(logrus.Fields{
		"from_block": q.FromBlock,
		"count":      len(logs),
	}).Info("Fetched history logs")

	for _, l := range logs {
		g.handleLog(l)
	}
	return nil
}

func (g *Guardian) subscribeLog() error {
	q := g.query
	q.FromBlock = g.fromBlock()

	sub, err := g.client.SubscribeFilterLogs(g.ctx, q, g.logChan)
	if err != nil {
		return err
	}
	g.logSub = sub
	return nil
}

func (g *Guardian) listenEvents() {
	defer g.wg.Done()
	defer func() {
		g.logSub.Unsubscribe()
	}()

	g.logger.Info("Listen events")
	for {
		select {
		case <-g.ctx.Done():
			g.logger.Info("Context done")
			return
		case l := <-g.logChan:
			g.handleLog(l)
		case err := <-g.logSub.Err():
			if g.ctx.Err() != nil {
				return
			}
			g.logger.WithField("err", err).Warn("Log subscription dropped, reconnecting")
			if err := g.reconnect(); err != nil {
				g.logger.WithField("err", err).Error("Reconnect failed")
				return
			}
		}
	}
}

// reconnect dials a fresh client, resubscribes and backfills what was missed.
func (g *Guardian) reconnect() error {
	g.logSub.Unsubscribe()

	var client Client
	action := func(attempt uint) error {
		var err error
		client, err = g.dialer(g.ctx, g.config.DialUrl)
		if err != nil {
			g.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"err":     err,
			}).Warn("Dial failed")
		}
		return err
	}
	if err := retry.Retry(action, strategy.Limit(g.retryLimit), strategy.Backoff(backoff.Fibonacci(g.retryDelay))); err != nil {
		return errors.Wrapf(err, "dial %s", g.config.DialUrl)
	}
	g.client = client
	g.metrics.reconnects.Inc(1)

	if err := g.subscribeLog(); err != nil {
		return errors.Wrap(err, "resubscribe logs")
	}
	if err := g.fetchHistoryLog(); err != nil {
		return errors.Wrap(err, "backfill logs")
	}

	g.logger.Info("Reconnected")
	return nil
}

// handleLog applies l once; logs at or before the cursor are skipped.
func (g *Guardian) handleLog(l types.Log) {
	start := time.Now()
	pos := Cursor{BlockNumber: l.BlockNumber, Index: uint64(l.Index)}
	if last, ok := g.Cursor(); ok && !last.Before(pos) {
		return
	}
	if l.Removed {
		g.logger.WithField("block", l.BlockNumber).Warn("Ignore removed log")
		g.metrics.skipped.Inc(1)
		return
	}

	ev, err := governance.ParseEvent(l)
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"block": l.BlockNumber,
			"index": l.Index,
			"err":   err,
		}).Warn("Skip unknown log")
		g.metrics.skipped.Inc(1)
		g.advance(pos)
		return
	}

	g.mu.Lock()
	switch ev.Name {
	case governance.EventProposalExecuted:
		g.recordExecuted(ev, l)
	case governance.EventDeveloperChanged:
		g.db.Put([]byte(developerKey), ev.Account.Bytes())
	default:
		g.logger.WithFields(logrus.Fields{
			"event": ev.Name,
			"id":    ev.ProposalID,
		}).Debug("Governance event")
	}
	g.db.Put([]byte(cursorKey), pos.encode())
	g.mu.Unlock()

	g.metrics.observe(start, l.BlockNumber)
}

func (g *Guardian) recordExecuted(ev *governance.Event, l types.Log) {
	record := &ExecutedProposal{
		ID:          ev.ProposalID,
		Type:        ev.Type,
		Target:      ev.Target,
		ExecutedBy:  ev.Account,
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
	}
	data, err := json.Marshal(record)
	if err != nil {
		g.logger.WithField("err", err).Error("Marshal executed proposal")
		return
	}
	g.db.Put(executedKey(ev.ProposalID), data)
	g.metrics.executed.Inc(1)

	switch ev.Type {
	case governance.NewProxyImplementation:
		g.db.Put([]byte(implementationKey), ev.Target.Bytes())
	case governance.NewProxyAdmin:
		g.db.Put([]byte(proxyAdminKey), ev.Target.Bytes())
	case governance.NewDeveloper:
		g.db.Put([]byte(developerKey), ev.Target.Bytes())
	}

	g.logger.WithFields(logrus.Fields{
		"id":          record.ID,
		"type":        record.Type,
		"target":      record.Target,
		"executed_by": record.ExecutedBy,
		"block":       record.BlockNumber,
	}).Info("Proposal executed")
}

func (g *Guardian) advance(pos Cursor) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.db.Put([]byte(cursorKey), pos.encode())
}

func executedKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", executedKeyPrefix, id))
}

func (g *Guardian) Stats() map[string]int64 {
	return g.metrics.Snapshot()
}

// Cursor returns the position of the last processed log, if any.
func (g *Guardian) Cursor() (Cursor, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return decodeCursor(g.db.Get([]byte(cursorKey)))
}

func (g *Guardian) Executed(id uint64) (*ExecutedProposal, error) {
	g.mu.RLock()
	data := g.db.Get(executedKey(id))
	g.mu.RUnlock()

	if data == nil {
		return nil, errors.Wrapf(ErrExecutedProposalNotFound, "id %d", id)
	}
	record := &ExecutedProposal{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, errors.Wrapf(err, "unmarshal executed proposal %d", id)
	}
	return record, nil
}

// Implementation is the last implementation set by an executed proposal.
func (g *Guardian) Implementation() (common.Address, bool) {
	return g.address(implementationKey)
}

func (g *Guardian) ProxyAdmin() (common.Address, bool) {
	return g.address(proxyAdminKey)
}

// Developer falls back to the configured developer until a change is observed.
func (g *Guardian) Developer() common.Address {
	if dev, ok := g.address(developerKey); ok {
		return dev
	}
	return common.HexToAddress(g.config.Governance.Developer)
}

func (g *Guardian) address(key string) (common.Address, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	data := g.db.Get([]byte(key))
	if data == nil {
		return common.Address{}, false
	}
	return common.BytesToAddress(data), true
}
