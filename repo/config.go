package repo

import (
	"time"

	"github.com/axiomesh/proxygov/governance"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

type Config struct {
	RepoRoot   string     `mapstructure:"-" toml:"-"`
	DialUrl    string     `mapstructure:"dial_url" toml:"dial_url"`
	Log        Log        `mapstructure:"log" toml:"log"`
	Governance Governance `mapstructure:"governance" toml:"governance"`
	Subscribe  Subscribe  `mapstructure:"subscribe" toml:"subscribe"`
	HTTP       HTTP       `mapstructure:"http" toml:"http"`
}

type Log struct {
	Level        string        `mapstructure:"level" toml:"level"`
	Filename     string        `mapstructure:"filename" toml:"filename"`
	ReportCaller bool          `mapstructure:"report_caller" toml:"report_caller"`
	MaxAge       time.Duration `mapstructure:"max_age" toml:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time" toml:"rotation_time"`
}

type Governance struct {
	Address      string `mapstructure:"address" toml:"address"`
	ProxyAddress string `mapstructure:"proxy_address" toml:"proxy_address"`
	Developer    string `mapstructure:"developer" toml:"developer"`

	// measured in token heights
	VotingPeriod    uint64 `mapstructure:"voting_period" toml:"voting_period"`
	ExecutionPeriod uint64 `mapstructure:"execution_period" toml:"execution_period"`

	DeveloperOnlyUpgrades bool  `mapstructure:"developer_only_upgrades" toml:"developer_only_upgrades"`
	Token                 Token `mapstructure:"token" toml:"token"`
}

type Token struct {
	Name   string `mapstructure:"name" toml:"name"`
	Symbol string `mapstructure:"symbol" toml:"symbol"`
	// decimal string, minted to the developer at genesis
	Supply string `mapstructure:"supply" toml:"supply"`
}

type Subscribe struct {
	// beginning of the queried range, 1 means genesis block
	FromBlock uint64 `mapstructure:"from_block" toml:"from_block"`
	// end of the range, 0 means latest block
	ToBlock   uint64   `mapstructure:"to_block" toml:"to_block"`
	Addresses []string `mapstructure:"addresses" toml:"addresses"`
	// Examples:
	// {} or nil          matches any topic list
	// {{A}}              matches topic A in first position
	// {{}, {B}}          matches any topic in first position AND B in second position
	// {{A, B}, {C, D}}   matches topic (A OR B) in first position AND (C OR D) in second position
	Topics [][]string `mapstructure:"topics" toml:"topics"`
}

type HTTP struct {
	// empty disables the query api
	Listen string `mapstructure:"listen" toml:"listen"`
}

func (g Governance) Config() governance.Config {
	return governance.Config{
		VotingPeriod:          g.VotingPeriod,
		ExecutionPeriod:       g.ExecutionPeriod,
		DeveloperOnlyUpgrades: g.DeveloperOnlyUpgrades,
	}
}

// TotalSupply parses the configured genesis supply.
func (t Token) TotalSupply() (*uint256.Int, error) {
	supply, err := uint256.FromDecimal(t.Supply)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid token supply %q", t.Supply)
	}
	return supply, nil
}

func (c *Config) Validate() error {
	for name, addr := range map[string]string{
		"governance.address":       c.Governance.Address,
		"governance.proxy_address": c.Governance.ProxyAddress,
		"governance.developer":     c.Governance.Developer,
	} {
		if !common.IsHexAddress(addr) {
			return errors.Errorf("%s: invalid address %q", name, addr)
		}
	}
	for _, addr := range c.Subscribe.Addresses {
		if !common.IsHexAddress(addr) {
			return errors.Errorf("subscribe.addresses: invalid address %q", addr)
		}
	}
	if c.Governance.VotingPeriod == 0 {
		return errors.New("governance.voting_period must be positive")
	}
	if _, err := c.Governance.Token.TotalSupply(); err != nil {
		return err
	}
	if c.Subscribe.ToBlock != 0 && c.Subscribe.ToBlock < c.Subscribe.FromBlock {
		return errors.Errorf("subscribe: to_block %d is before from_block %d", c.Subscribe.ToBlock, c.Subscribe.FromBlock)
	}
	return nil
}

func DefaultConfig(repoRoot string) *Config {
	return &Config{
		RepoRoot: repoRoot,
		DialUrl:  "ws://localhost:9991",
		Log: Log{
			Level:        "info",
			Filename:     "proxygov.log",
			ReportCaller: false,
			MaxAge:       30 * 24 * time.Hour,
			RotationTime: 24 * time.Hour,
		},
		Governance: Governance{
			Address:               GovernanceContractAddr,
			ProxyAddress:          ProxyContractAddr,
			Developer:             "0xff00000000000000000000000000000000001001",
			VotingPeriod:          100,
			ExecutionPeriod:       100,
			DeveloperOnlyUpgrades: true,
			Token: Token{
				Name:   "Decentralized Exchange",
				Symbol: "DEDEX",
				// 13!
				Supply: "6227020800",
			},
		},
		Subscribe: Subscribe{
			FromBlock: 1,
			ToBlock:   0,
			Addresses: []string{GovernanceContractAddr},
			// first position: executed proposals or direct developer hand-overs
			Topics: [][]string{{
				governance.EventID(governance.EventProposalExecuted).Hex(),
				governance.EventID(governance.EventDeveloperChanged).Hex(),
			}},
		},
		HTTP: HTTP{
			Listen: "127.0.0.1:9098",
		},
	}
}
