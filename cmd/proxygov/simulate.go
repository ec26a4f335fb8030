package main

import (
	"fmt"
	"math/big"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/proxygov/eventlog"
	"github.com/axiomesh/proxygov/governance"
	"github.com/axiomesh/proxygov/proxy"
	"github.com/axiomesh/proxygov/proxy/example"
	"github.com/axiomesh/proxygov/repo"
	"github.com/axiomesh/proxygov/token"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	v1Addr = common.HexToAddress("0x0000000000000000000000000000000000003001")
	v2Addr = common.HexToAddress("0x0000000000000000000000000000000000003002")

	holders = []common.Address{
		common.HexToAddress("0x110000000000000000000000000000000000ffff"),
		common.HexToAddress("0x220000000000000000000000000000000000ffff"),
		common.HexToAddress("0x330000000000000000000000000000000000ffff"),
	}
)

var simulateCMD = &cli.Command{
	Name:  "simulate",
	Usage: "Run an in-memory upgrade of the example proxy through a governance vote",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "reject",
			Usage: "Let the holders vote the upgrade down",
		},
	},
	Action: simulate,
}

type simulation struct {
	logger    logrus.FieldLogger
	developer common.Address
	token     *token.Token
	proxy     *proxy.Proxy
	gov       *governance.Governance
	logs      *eventlog.Store
}

func newSimulation(config *repo.Config) (*simulation, error) {
	logger := log.New()
	logger.SetLevel(log.ParseLevel(config.Log.Level))

	supply, err := config.Governance.Token.TotalSupply()
	if err != nil {
		return nil, err
	}
	developer := common.HexToAddress(config.Governance.Developer)
	govAddr := common.HexToAddress(config.Governance.Address)

	tk := token.New(config.Governance.Token.Name, config.Governance.Token.Symbol, logger.WithField("module", "token"))
	err = tk.Batch(func(tx *token.Tx) error {
		if err := tx.Mint(developer, supply); err != nil {
			return err
		}
		// a third each to the first two holders, 5% to the last
		share := new(uint256.Int).Div(supply, uint256.NewInt(3))
		for _, holder := range holders[:2] {
			if err := tx.Transfer(developer, holder, share); err != nil {
				return err
			}
		}
		fivePercent := new(uint256.Int).Div(supply, uint256.NewInt(20))
		return tx.Transfer(developer, holders[2], fivePercent)
	})
	if err != nil {
		return nil, errors.Wrap(err, "distribute supply")
	}

	registry := proxy.NewRegistry()
	registry.Deploy(v1Addr, example.NewV1())
	registry.Deploy(v2Addr, example.NewV2())
	px := proxy.New(common.HexToAddress(config.Governance.ProxyAddress), developer, registry, logger.WithField("module", "proxy"))
	if err := px.SetImplementation(developer, v1Addr); err != nil {
		return nil, err
	}
	if err := px.SetAdmin(developer, govAddr); err != nil {
		return nil, err
	}

	logs := eventlog.New()
	gov := governance.New(govAddr, developer, config.Governance.Config(), tk, px,
		governance.WithLogger(logger.WithField("module", "governance")),
		governance.WithLogSink(logs),
	)

	return &simulation{
		logger:    logger,
		developer: developer,
		token:     tk,
		proxy:     px,
		gov:       gov,
		logs:      logs,
	}, nil
}

func simulate(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	r, err := repo.Load(p)
	if err != nil {
		return err
	}

	s, err := newSimulation(r.Config)
	if err != nil {
		return err
	}
	if err := s.run(ctx.Bool("reject")); err != nil {
		return err
	}
	return s.report(ctx)
}

func (s *simulation) run(reject bool) error {
	v1 := example.NewV1()
	v2 := example.NewV2()
	govAddr := s.gov.Address()

	if _, err := s.proxy.Invoke(govAddr, &v1.ABI, "setX", big.NewInt(2)); err != nil {
		return errors.Wrap(err, "setX")
	}
	if _, err := s.proxy.Invoke(holders[0], &v1.ABI, "setY", big.NewInt(3)); err != nil {
		return errors.Wrap(err, "setY")
	}
	if err := s.printProd(&v1.ABI); err != nil {
		return err
	}

	id, err := s.gov.NewProposal(s.developer, governance.NewProxyImplementation, "upgrade example to v2", v2Addr)
	if err != nil {
		return err
	}
	for _, holder := range holders {
		if err := s.gov.Vote(holder, id, !reject); err != nil {
			if errors.Is(err, governance.ErrWrongProposalStatus) {
				break
			}
			return err
		}
	}
	s.token.Mine(s.gov.VotingPeriod())

	status, err := s.gov.ProposalStatus(id)
	if err != nil {
		return err
	}
	fmt.Printf("proposal %d: %s\n", id, status)
	if status != governance.Accepted {
		return nil
	}

	if err := s.gov.Execute(s.developer, id); err != nil {
		return err
	}
	if _, err := s.proxy.Invoke(govAddr, &v2.ABI, "setZ", big.NewInt(5)); err != nil {
		return errors.Wrap(err, "setZ")
	}
	return s.printProd(&v2.ABI)
}

func (s *simulation) printProd(contract *abi.ABI) error {
	out, err := s.proxy.Invoke(s.developer, contract, "getProd")
	if err != nil {
		return errors.Wrap(err, "getProd")
	}
	fmt.Printf("implementation %s: getProd() = %v\n", s.proxy.Implementation(), out[0])
	return nil
}

func (s *simulation) report(ctx *cli.Context) error {
	logs, err := s.logs.FilterLogs(ctx.Context, ethereum.FilterQuery{
		Addresses: []common.Address{s.gov.Address()},
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n%d governance events at height %d:\n", len(logs), s.token.Height())
	for _, l := range logs {
		ev, err := governance.ParseEvent(l)
		if err != nil {
			return err
		}
		s.logger.WithFields(logrus.Fields{
			"block":   ev.BlockNumber,
			"id":      ev.ProposalID,
			"account": ev.Account,
		}).Info(ev.Name)
		fmt.Printf("  #%d %-18s proposal=%d account=%s\n", ev.BlockNumber, ev.Name, ev.ProposalID, ev.Account)
	}
	return nil
}
