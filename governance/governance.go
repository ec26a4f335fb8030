package governance

import (
	"sync"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// VotingToken is the balance ledger voting power is drawn from.
type VotingToken interface {
	Height() uint64
	BalanceOf(account common.Address) *uint256.Int
	BalanceOfAt(account common.Address, index uint64) (*uint256.Int, error)
	TotalSupply() *uint256.Int
}

// Proxy is the upgradeable proxy governance is the admin of.
type Proxy interface {
	Admin() common.Address
	SetAdmin(sender, admin common.Address) error
	SetImplementation(sender, implementation common.Address) error
}

type Option func(*Governance)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(g *Governance) {
		g.logger = logger
	}
}

func WithLogSink(sink LogSink) Option {
	return func(g *Governance) {
		g.sink = sink
	}
}

// Governance decides, by token holder vote, who the developer is and what
// the proxy admin and implementation are.
type Governance struct {
	mu sync.Mutex

	address common.Address
	config  Config
	token   VotingToken
	proxy   Proxy
	sink    LogSink
	logger  logrus.FieldLogger

	developer     common.Address
	proposals     []*Proposal
	userProposals map[common.Address][]uint64
}

// New creates a governance instance living at address. It only acts on the
// proxy while the proxy admin is address.
func New(address, developer common.Address, config Config, token VotingToken, proxy Proxy, opts ...Option) *Governance {
	g := &Governance{
		address:       address,
		config:        config,
		token:         token,
		proxy:         proxy,
		developer:     developer,
		userProposals: make(map[common.Address][]uint64),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.New()
	}
	return g
}

// NewProposal opens a proposal on behalf of sender and returns its id.
func (g *Governance) NewProposal(sender common.Address, typ ProposalType, description string, target common.Address) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkAdmin(); err != nil {
		return 0, err
	}
	if !typ.Valid() {
		return 0, &UnsupportedProposalTypeError{Type: typ}
	}
	if description == "" {
		return 0, ErrDescriptionIsEmpty
	}
	if target == (common.Address{}) {
		return 0, ErrTargetIsEmpty
	}

	th := g.thresholds()
	if err := g.authorize(sender, actionPropose, typ, sender, th); err != nil {
		return 0, err
	}
	if id, ok := g.activeProposal(sender, th); ok {
		return 0, &SenderHasActiveProposalError{ID: id}
	}

	p := &Proposal{
		ID:           uint64(len(g.proposals)) + 1,
		Type:         typ,
		Description:  description,
		Target:       target,
		CreatedBy:    sender,
		StartIndex:   g.token.Height(),
		VotesFor:     uint256.NewInt(0),
		VotesAgainst: uint256.NewInt(0),
		decisions:    make(map[common.Address]VotingDecision),
	}
	g.proposals = append(g.proposals, p)
	g.userProposals[sender] = append(g.userProposals[sender], p.ID)

	g.emit(EventProposalCreated,
		[]common.Hash{wordOf(p.ID), wordOf(uint64(typ)), addressWord(sender)},
		target, description, p.StartIndex)
	g.logger.WithFields(logrus.Fields{
		"id":          p.ID,
		"type":        typ,
		"created_by":  sender,
		"target":      target,
		"start_index": p.StartIndex,
	}).Info("New proposal")

	// with no supply the rejection threshold is already met
	if g.status(p, th) == Rejected {
		g.reject(p)
	}

	return p.ID, nil
}

// Vote adds the voting power sender had when the proposal was created.
func (g *Governance) Vote(sender common.Address, id uint64, inFavor bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.proposal(id)
	if err != nil {
		return err
	}

	th := g.thresholds()
	if status := g.status(p, th); status != WaitingForVotes {
		return &WrongProposalStatusError{Expected: WaitingForVotes, Actual: status}
	}
	if p.decisions[sender] != NotVoted {
		return ErrSenderAlreadyVoted
	}

	power, err := g.votingPower(p, sender)
	if err != nil {
		return err
	}

	if inFavor {
		p.VotesFor.Add(p.VotesFor, power)
		p.decisions[sender] = VotedFor
	} else {
		p.VotesAgainst.Add(p.VotesAgainst, power)
		p.decisions[sender] = VotedAgainst
	}

	g.emit(EventVoteCast, []common.Hash{wordOf(id), addressWord(sender)}, inFavor, power.ToBig())
	g.logger.WithFields(logrus.Fields{
		"id":       id,
		"voter":    sender,
		"in_favor": inFavor,
		"power":    power.ToBig(),
	}).Debug("Vote")

	if !p.VotesAgainst.Lt(th.Rejection) {
		g.reject(p)
	}
	return nil
}

// reject makes a rejection observed at the current height permanent.
func (g *Governance) reject(p *Proposal) {
	p.terminal = Rejected
	g.emit(EventProposalRejected, []common.Hash{wordOf(p.ID)}, p.VotesAgainst.ToBig())
	g.logger.WithFields(logrus.Fields{
		"id":            p.ID,
		"votes_against": p.VotesAgainst.ToBig(),
	}).Info("Proposal rejected")
}

// Cancel stops a proposal that is still waiting for votes or not yet executed.
func (g *Governance) Cancel(sender common.Address, id uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.proposal(id)
	if err != nil {
		return err
	}

	th := g.thresholds()
	if status := g.status(p, th); status != WaitingForVotes && status != Accepted {
		return &ProposalHasBeenFinalizedError{Status: status}
	}
	if err := g.authorize(sender, actionCancel, p.Type, p.CreatedBy, th); err != nil {
		return err
	}

	p.terminal = Cancelled

	g.emit(EventProposalCancelled, []common.Hash{wordOf(id), addressWord(sender)})
	g.logger.WithFields(logrus.Fields{
		"id":           id,
		"cancelled_by": sender,
	}).Info("Proposal cancelled")
	return nil
}

// Execute applies an accepted proposal.
func (g *Governance) Execute(sender common.Address, id uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.proposal(id)
	if err != nil {
		return err
	}
	if err := g.checkAdmin(); err != nil {
		return err
	}

	th := g.thresholds()
	if status := g.status(p, th); status != Accepted {
		return &WrongProposalStatusError{Expected: Accepted, Actual: status}
	}
	if err := g.authorize(sender, actionExecute, p.Type, p.CreatedBy, th); err != nil {
		return err
	}

	switch p.Type {
	case NewDeveloper:
		g.setDeveloper(p.Target)
	case NewProxyAdmin:
		if err := g.proxy.SetAdmin(g.address, p.Target); err != nil {
			return errors.Wrap(err, "set proxy admin")
		}
	case NewProxyImplementation:
		if err := g.proxy.SetImplementation(g.address, p.Target); err != nil {
			return errors.Wrap(err, "set proxy implementation")
		}
	}

	p.terminal = Executed

	g.emit(EventProposalExecuted, []common.Hash{wordOf(id), wordOf(uint64(p.Type))}, p.Target, sender)
	g.logger.WithFields(logrus.Fields{
		"id":          id,
		"type":        p.Type,
		"target":      p.Target,
		"executed_by": sender,
	}).Info("Proposal executed")
	return nil
}

// SetDeveloper lets the current developer hand over the role directly.
func (g *Governance) SetDeveloper(sender, developer common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if sender != g.developer {
		return ErrDeveloperOnlyAllowedOperation
	}
	if developer == (common.Address{}) {
		return ErrTargetIsEmpty
	}

	g.setDeveloper(developer)
	return nil
}

func (g *Governance) setDeveloper(developer common.Address) {
	previous := g.developer
	g.developer = developer

	g.emit(EventDeveloperChanged, []common.Hash{addressWord(previous), addressWord(developer)})
	g.logger.WithFields(logrus.Fields{
		"previous":  previous,
		"developer": developer,
	}).Info("Developer changed")
}

func (g *Governance) checkAdmin() error {
	if admin := g.proxy.Admin(); admin != g.address {
		return &ContractIsNotCurrentAdminError{Admin: admin}
	}
	return nil
}

func (g *Governance) proposal(id uint64) (*Proposal, error) {
	if id == 0 || id > uint64(len(g.proposals)) {
		return nil, &ProposalDoesNotExistError{ID: id}
	}
	return g.proposals[id-1], nil
}

func (g *Governance) thresholds() Thresholds {
	return NewThresholds(g.token.TotalSupply())
}

func (g *Governance) status(p *Proposal, th Thresholds) ProposalStatus {
	return deriveStatus(p, g.token.Height(), th, g.config)
}

func (g *Governance) activeProposal(sender common.Address, th Thresholds) (uint64, bool) {
	ids := g.userProposals[sender]
	for i := len(ids) - 1; i >= 0; i-- {
		switch g.status(g.proposals[ids[i]-1], th) {
		case WaitingForVotes, Accepted:
			return ids[i], true
		}
	}
	return 0, false
}

func (g *Governance) votingPower(p *Proposal, account common.Address) (*uint256.Int, error) {
	power, err := g.token.BalanceOfAt(account, p.StartIndex)
	if err != nil {
		return nil, errors.Wrapf(err, "voting power of %s in proposal %d", account, p.ID)
	}
	return power, nil
}
