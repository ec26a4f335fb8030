package governance

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type ProposalType uint8

const (
	InvalidProposal ProposalType = iota

	// NewDeveloper hands the developer role to the target
	NewDeveloper

	// NewProxyAdmin replaces the proxy admin, retiring this governance instance
	NewProxyAdmin

	// NewProxyImplementation points the proxy at new code
	NewProxyImplementation
)

func (t ProposalType) Valid() bool {
	return t >= NewDeveloper && t <= NewProxyImplementation
}

// touchesProxy reports whether executing the proposal changes the proxy.
func (t ProposalType) touchesProxy() bool {
	return t == NewProxyAdmin || t == NewProxyImplementation
}

func (t ProposalType) String() string {
	switch t {
	case NewDeveloper:
		return "NewDeveloper"
	case NewProxyAdmin:
		return "NewProxyAdmin"
	case NewProxyImplementation:
		return "NewProxyImplementation"
	default:
		return "Invalid"
	}
}

type ProposalStatus uint8

const (
	StatusInvalid ProposalStatus = iota
	WaitingForVotes
	Rejected
	Accepted
	Executed
	Expired
	Cancelled
)

func (s ProposalStatus) String() string {
	switch s {
	case WaitingForVotes:
		return "WaitingForVotes"
	case Rejected:
		return "Rejected"
	case Accepted:
		return "Accepted"
	case Executed:
		return "Executed"
	case Expired:
		return "Expired"
	case Cancelled:
		return "Cancelled"
	default:
		return "Invalid"
	}
}

type VotingDecision uint8

const (
	NotVoted VotingDecision = iota
	VotedFor
	VotedAgainst
)

func (d VotingDecision) String() string {
	switch d {
	case VotedFor:
		return "VotedFor"
	case VotedAgainst:
		return "VotedAgainst"
	default:
		return "NotVoted"
	}
}

type Config struct {
	// VotingPeriod is the number of heights a proposal accepts votes
	VotingPeriod uint64

	// ExecutionPeriod is the number of heights an accepted proposal may be executed after voting ends
	ExecutionPeriod uint64

	// DeveloperOnlyUpgrades restricts creating and cancelling proxy changing proposals to the developer
	DeveloperOnlyUpgrades bool
}

type Proposal struct {
	ID          uint64
	Type        ProposalType
	Description string
	Target      common.Address
	CreatedBy   common.Address

	// StartIndex is the height voting power is sampled at
	StartIndex   uint64
	VotesFor     *uint256.Int
	VotesAgainst *uint256.Int

	decisions map[common.Address]VotingDecision

	// terminal is StatusInvalid while the status is still derived from votes and height
	terminal ProposalStatus
}

type ProposalMeta struct {
	ID           uint64
	Type         ProposalType
	Status       ProposalStatus
	StartIndex   uint64
	VotesFor     *uint256.Int
	VotesAgainst *uint256.Int
}

type ProposalDetails struct {
	ID          uint64
	Description string
	Target      common.Address
	CreatedBy   common.Address
}
