package governance

import (
	"math"

	"github.com/holiman/uint256"
)

var (
	two     = uint256.NewInt(2)
	three   = uint256.NewInt(3)
	five    = uint256.NewInt(5)
	hundred = uint256.NewInt(100)
)

// Thresholds are fractions of the total supply at evaluation time.
type Thresholds struct {
	// Acceptance is strictly more than two thirds
	Acceptance *uint256.Int
	// Rejection is one third, rounded down
	Rejection *uint256.Int
	// PublicProposal is five percent
	PublicProposal *uint256.Int
}

func NewThresholds(supply *uint256.Int) Thresholds {
	acceptance, _ := new(uint256.Int).MulDivOverflow(supply, two, three)
	acceptance.AddUint64(acceptance, 1)
	public, _ := new(uint256.Int).MulDivOverflow(supply, five, hundred)

	return Thresholds{
		Acceptance:     acceptance,
		Rejection:      new(uint256.Int).Div(supply, three),
		PublicProposal: public,
	}
}

// deriveStatus computes the status of p at height. It reads nothing but its
// arguments, so two evaluations at the same height always agree.
func deriveStatus(p *Proposal, height uint64, th Thresholds, cfg Config) ProposalStatus {
	if p.terminal != StatusInvalid {
		return p.terminal
	}

	if !p.VotesAgainst.Lt(th.Rejection) {
		return Rejected
	}

	votingEnd := addSaturating(p.StartIndex, cfg.VotingPeriod)
	if height < votingEnd {
		return WaitingForVotes
	}

	if !p.VotesFor.Lt(th.Acceptance) {
		if height < addSaturating(votingEnd, cfg.ExecutionPeriod) {
			return Accepted
		}
		return Expired
	}

	return Rejected
}

func addSaturating(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
