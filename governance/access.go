package governance

import (
	"github.com/ethereum/go-ethereum/common"
)

type action uint8

const (
	actionPropose action = iota
	actionCancel
	actionExecute
)

// authorize is the single permission check for proposal operations.
// createdBy is only consulted for cancellation.
func (g *Governance) authorize(sender common.Address, act action, typ ProposalType, createdBy common.Address, th Thresholds) error {
	isDeveloper := sender == g.developer
	restricted := typ.touchesProxy()

	switch act {
	case actionPropose:
		if isDeveloper {
			return nil
		}
		if restricted && g.config.DeveloperOnlyUpgrades {
			return ErrDeveloperOnlyAllowedOperation
		}
		balance := g.token.BalanceOf(sender)
		if balance.Lt(th.PublicProposal) {
			return &VotingPowerBelowThresholdError{Balance: balance, Threshold: th.PublicProposal}
		}
		return nil

	case actionExecute:
		if restricted && !isDeveloper {
			return ErrDeveloperOnlyAllowedOperation
		}
		return nil

	case actionCancel:
		if isDeveloper {
			return nil
		}
		if restricted && g.config.DeveloperOnlyUpgrades {
			return ErrDeveloperOnlyAllowedOperation
		}
		// the proposer keeps standing only while the live balance stays above the public threshold
		if g.token.BalanceOf(createdBy).Lt(th.PublicProposal) {
			return &SenderIsNotProposerError{Authorized: g.developer}
		}
		if sender != createdBy {
			return &SenderIsNotProposerError{Authorized: createdBy}
		}
		return nil
	}

	return ErrDeveloperOnlyAllowedOperation
}
