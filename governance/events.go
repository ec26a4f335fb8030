package governance

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

const eventsDefinition = `[
	{"type":"event","name":"ProposalCreated","inputs":[
		{"name":"id","type":"uint64","indexed":true},
		{"name":"proposalType","type":"uint8","indexed":true},
		{"name":"createdBy","type":"address","indexed":true},
		{"name":"target","type":"address","indexed":false},
		{"name":"description","type":"string","indexed":false},
		{"name":"startIndex","type":"uint64","indexed":false}]},
	{"type":"event","name":"VoteCast","inputs":[
		{"name":"id","type":"uint64","indexed":true},
		{"name":"voter","type":"address","indexed":true},
		{"name":"inFavor","type":"bool","indexed":false},
		{"name":"power","type":"uint256","indexed":false}]},
	{"type":"event","name":"ProposalRejected","inputs":[
		{"name":"id","type":"uint64","indexed":true},
		{"name":"votesAgainst","type":"uint256","indexed":false}]},
	{"type":"event","name":"ProposalCancelled","inputs":[
		{"name":"id","type":"uint64","indexed":true},
		{"name":"cancelledBy","type":"address","indexed":true}]},
	{"type":"event","name":"ProposalExecuted","inputs":[
		{"name":"id","type":"uint64","indexed":true},
		{"name":"proposalType","type":"uint8","indexed":true},
		{"name":"target","type":"address","indexed":false},
		{"name":"executedBy","type":"address","indexed":false}]},
	{"type":"event","name":"DeveloperChanged","inputs":[
		{"name":"previous","type":"address","indexed":true},
		{"name":"developer","type":"address","indexed":true}]}
]`

const (
	EventProposalCreated   = "ProposalCreated"
	EventVoteCast          = "VoteCast"
	EventProposalRejected  = "ProposalRejected"
	EventProposalCancelled = "ProposalCancelled"
	EventProposalExecuted  = "ProposalExecuted"
	EventDeveloperChanged  = "DeveloperChanged"
)

// Events is the ABI of every log emitted by governance.
var Events abi.ABI

func init() {
	var err error
	Events, err = abi.JSON(strings.NewReader(eventsDefinition))
	if err != nil {
		panic(err)
	}
}

// EventID returns topic 0 of the named event.
func EventID(name string) common.Hash {
	return Events.Events[name].ID
}

// LogSink receives emitted logs.
type LogSink interface {
	Append(log types.Log)
}

// Event is a decoded governance log. Fields not carried by an event stay zero.
type Event struct {
	Name        string
	BlockNumber uint64
	ProposalID  uint64
	Type        ProposalType
	// Account is the creator, voter, canceller, executor or new developer
	Account     common.Address
	Previous    common.Address
	Target      common.Address
	Description string
	StartIndex  uint64
	InFavor     bool
	Power       *uint256.Int
}

func wordOf(v uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(v))
}

func addressWord(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func (g *Governance) emit(name string, topics []common.Hash, values ...interface{}) {
	if g.sink == nil {
		return
	}

	ev := Events.Events[name]
	data, err := ev.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		g.logger.WithField("event", name).Errorf("Pack event: %s", err)
		return
	}

	g.sink.Append(types.Log{
		Address:     g.address,
		Topics:      append([]common.Hash{ev.ID}, topics...),
		Data:        data,
		BlockNumber: g.token.Height(),
	})
}

// ParseEvent decodes a log emitted by governance.
func ParseEvent(log types.Log) (*Event, error) {
	if len(log.Topics) == 0 {
		return nil, errors.New("log has no topics")
	}
	ev, err := Events.EventByID(log.Topics[0])
	if err != nil {
		return nil, errors.Wrapf(err, "unknown event %s", log.Topics[0])
	}

	indexed := 0
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed++
		}
	}
	if len(log.Topics) != indexed+1 {
		return nil, errors.Errorf("%s: expected %d topics, got %d", ev.Name, indexed+1, len(log.Topics))
	}

	values, err := ev.Inputs.Unpack(log.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", ev.Name)
	}

	res := &Event{
		Name:        ev.Name,
		BlockNumber: log.BlockNumber,
	}
	topics := log.Topics[1:]
	switch ev.Name {
	case EventProposalCreated:
		res.ProposalID = topics[0].Big().Uint64()
		res.Type = ProposalType(topics[1].Big().Uint64())
		res.Account = common.BytesToAddress(topics[2].Bytes())
		res.Target = values[0].(common.Address)
		res.Description = values[1].(string)
		res.StartIndex = values[2].(uint64)
	case EventVoteCast:
		res.ProposalID = topics[0].Big().Uint64()
		res.Account = common.BytesToAddress(topics[1].Bytes())
		res.InFavor = values[0].(bool)
		res.Power, _ = uint256.FromBig(values[1].(*big.Int))
	case EventProposalRejected:
		res.ProposalID = topics[0].Big().Uint64()
		res.Power, _ = uint256.FromBig(values[0].(*big.Int))
	case EventProposalCancelled:
		res.ProposalID = topics[0].Big().Uint64()
		res.Account = common.BytesToAddress(topics[1].Bytes())
	case EventProposalExecuted:
		res.ProposalID = topics[0].Big().Uint64()
		res.Type = ProposalType(topics[1].Big().Uint64())
		res.Target = values[0].(common.Address)
		res.Account = values[1].(common.Address)
	case EventDeveloperChanged:
		res.Previous = common.BytesToAddress(topics[0].Bytes())
		res.Account = common.BytesToAddress(topics[1].Bytes())
	}
	return res, nil
}
