package governance

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

var (
	ErrUnsupportedProposalType                 = errors.New("unsupported proposal type")
	ErrDescriptionIsEmpty                      = errors.New("description is empty")
	ErrTargetIsEmpty                           = errors.New("target is empty")
	ErrDeveloperOnlyAllowedOperation           = errors.New("developer only allowed operation")
	ErrVotingPowerBelowPublicProposalThreshold = errors.New("voting power below public proposal threshold")
	ErrSenderIsNotProposer                     = errors.New("sender is not proposer")
	ErrContractIsNotCurrentAdmin               = errors.New("contract is not current admin")
	ErrWrongProposalStatus                     = errors.New("wrong proposal status")
	ErrProposalDoesNotExist                    = errors.New("proposal does not exist")
	ErrSenderAlreadyVoted                      = errors.New("sender already voted")
	ErrSenderHasActiveProposal                 = errors.New("sender has active proposal")
	ErrProposalHasBeenFinalized                = errors.New("proposal has been finalized")
)

type UnsupportedProposalTypeError struct {
	Type ProposalType
}

func (e *UnsupportedProposalTypeError) Error() string {
	return fmt.Sprintf("%s: %d", ErrUnsupportedProposalType, e.Type)
}

func (e *UnsupportedProposalTypeError) Is(target error) bool {
	return target == ErrUnsupportedProposalType
}

type VotingPowerBelowThresholdError struct {
	Balance   *uint256.Int
	Threshold *uint256.Int
}

func (e *VotingPowerBelowThresholdError) Error() string {
	return fmt.Sprintf("%s: balance %s, threshold %s", ErrVotingPowerBelowPublicProposalThreshold, e.Balance.ToBig(), e.Threshold.ToBig())
}

func (e *VotingPowerBelowThresholdError) Is(target error) bool {
	return target == ErrVotingPowerBelowPublicProposalThreshold
}

// SenderIsNotProposerError names the account that is allowed to cancel.
type SenderIsNotProposerError struct {
	Authorized common.Address
}

func (e *SenderIsNotProposerError) Error() string {
	return fmt.Sprintf("%s: only %s may cancel", ErrSenderIsNotProposer, e.Authorized)
}

func (e *SenderIsNotProposerError) Is(target error) bool {
	return target == ErrSenderIsNotProposer
}

// ContractIsNotCurrentAdminError carries the admin the proxy answers to now.
type ContractIsNotCurrentAdminError struct {
	Admin common.Address
}

func (e *ContractIsNotCurrentAdminError) Error() string {
	return fmt.Sprintf("%s: proxy admin is %s", ErrContractIsNotCurrentAdmin, e.Admin)
}

func (e *ContractIsNotCurrentAdminError) Is(target error) bool {
	return target == ErrContractIsNotCurrentAdmin
}

type WrongProposalStatusError struct {
	Expected ProposalStatus
	Actual   ProposalStatus
}

func (e *WrongProposalStatusError) Error() string {
	return fmt.Sprintf("%s: expected %s, actual %s", ErrWrongProposalStatus, e.Expected, e.Actual)
}

func (e *WrongProposalStatusError) Is(target error) bool {
	return target == ErrWrongProposalStatus
}

type ProposalDoesNotExistError struct {
	ID uint64
}

func (e *ProposalDoesNotExistError) Error() string {
	return fmt.Sprintf("%s: %d", ErrProposalDoesNotExist, e.ID)
}

func (e *ProposalDoesNotExistError) Is(target error) bool {
	return target == ErrProposalDoesNotExist
}

// SenderHasActiveProposalError carries the id of the proposal that blocks a new one.
type SenderHasActiveProposalError struct {
	ID uint64
}

func (e *SenderHasActiveProposalError) Error() string {
	return fmt.Sprintf("%s: %d", ErrSenderHasActiveProposal, e.ID)
}

func (e *SenderHasActiveProposalError) Is(target error) bool {
	return target == ErrSenderHasActiveProposal
}

type ProposalHasBeenFinalizedError struct {
	Status ProposalStatus
}

func (e *ProposalHasBeenFinalizedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrProposalHasBeenFinalized, e.Status)
}

func (e *ProposalHasBeenFinalizedError) Is(target error) bool {
	return target == ErrProposalHasBeenFinalized
}
