package governance

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func (g *Governance) Address() common.Address {
	return g.address
}

func (g *Governance) Developer() common.Address {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.developer
}

func (g *Governance) VotingPeriod() uint64 {
	return g.config.VotingPeriod
}

func (g *Governance) ExecutionPeriod() uint64 {
	return g.config.ExecutionPeriod
}

func (g *Governance) AcceptanceThreshold() *uint256.Int {
	return g.thresholds().Acceptance
}

func (g *Governance) RejectionThreshold() *uint256.Int {
	return g.thresholds().Rejection
}

func (g *Governance) PublicProposalThreshold() *uint256.Int {
	return g.thresholds().PublicProposal
}

// LastProposalID returns zero when no proposal exists.
func (g *Governance) LastProposalID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return uint64(len(g.proposals))
}

func (g *Governance) ProposalMeta(id uint64) (*ProposalMeta, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.proposal(id)
	if err != nil {
		return nil, err
	}
	return &ProposalMeta{
		ID:           p.ID,
		Type:         p.Type,
		Status:       g.status(p, g.thresholds()),
		StartIndex:   p.StartIndex,
		VotesFor:     p.VotesFor.Clone(),
		VotesAgainst: p.VotesAgainst.Clone(),
	}, nil
}

func (g *Governance) ProposalDetails(id uint64) (*ProposalDetails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.proposal(id)
	if err != nil {
		return nil, err
	}
	return &ProposalDetails{
		ID:          p.ID,
		Description: p.Description,
		Target:      p.Target,
		CreatedBy:   p.CreatedBy,
	}, nil
}

func (g *Governance) ProposalStatus(id uint64) (ProposalStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.proposal(id)
	if err != nil {
		return StatusInvalid, err
	}
	return g.status(p, g.thresholds()), nil
}

// VotingPower returns the balance account had when proposal id was created.
func (g *Governance) VotingPower(id uint64, account common.Address) (*uint256.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.proposal(id)
	if err != nil {
		return nil, err
	}
	return g.votingPower(p, account)
}

func (g *Governance) VotingDecision(id uint64, account common.Address) (VotingDecision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.proposal(id)
	if err != nil {
		return NotVoted, err
	}
	return p.decisions[account], nil
}

// UserProposals lists the ids created by account, oldest first.
func (g *Governance) UserProposals(account common.Address) []uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := g.userProposals[account]
	res := make([]uint64, len(ids))
	copy(res, ids)
	return res
}
