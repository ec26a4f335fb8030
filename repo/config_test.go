package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/axiomesh/proxygov/governance"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig(t.TempDir())
	require.Nil(t, c.Validate())

	supply, err := c.Governance.Token.TotalSupply()
	require.Nil(t, err)
	assert.Equal(t, uint64(6227020800), supply.Uint64())

	cfg := c.Governance.Config()
	assert.Equal(t, uint64(100), cfg.VotingPeriod)
	assert.Equal(t, uint64(100), cfg.ExecutionPeriod)
	assert.True(t, cfg.DeveloperOnlyUpgrades)

	require.Len(t, c.Subscribe.Topics, 1)
	assert.Equal(t, governance.EventID(governance.EventProposalExecuted), common.HexToHash(c.Subscribe.Topics[0][0]))
	assert.Equal(t, governance.EventID(governance.EventDeveloperChanged), common.HexToHash(c.Subscribe.Topics[0][1]))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"bad governance address", func(c *Config) { c.Governance.Address = "0x1234" }},
		{"bad developer", func(c *Config) { c.Governance.Developer = "developer" }},
		{"bad subscribe address", func(c *Config) { c.Subscribe.Addresses = []string{"nope"} }},
		{"zero voting period", func(c *Config) { c.Governance.VotingPeriod = 0 }},
		{"bad supply", func(c *Config) { c.Governance.Token.Supply = "13!" }},
		{"inverted block range", func(c *Config) { c.Subscribe.FromBlock, c.Subscribe.ToBlock = 10, 5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig(t.TempDir())
			tt.modify(c)
			assert.NotNil(t, c.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()

	r, err := Load(root)
	require.Nil(t, err)
	assert.Equal(t, root, r.Config.RepoRoot)
	assert.True(t, Exist(filepath.Join(root, cfgFileName)))

	r.Config.Governance.VotingPeriod = 42
	r.Config.Log.Level = "debug"
	require.Nil(t, r.Flush())

	loaded, err := Load(root)
	require.Nil(t, err)
	assert.Equal(t, uint64(42), loaded.Config.Governance.VotingPeriod)
	assert.Equal(t, "debug", loaded.Config.Log.Level)
	assert.Equal(t, r.Config.Subscribe.Topics, loaded.Config.Subscribe.Topics)
}

func TestLoadWithEnv(t *testing.T) {
	root := t.TempDir()
	_, err := Load(root)
	require.Nil(t, err)

	t.Setenv("PROXYGOV_GOVERNANCE_EXECUTION_PERIOD", "7")
	t.Setenv("PROXYGOV_LOG_LEVEL", "warn")
	t.Setenv("PROXYGOV_GOVERNANCE_DEVELOPER_ONLY_UPGRADES", "false")

	r, err := Load(root)
	require.Nil(t, err)
	assert.Equal(t, uint64(7), r.Config.Governance.ExecutionPeriod)
	assert.Equal(t, "warn", r.Config.Log.Level)
	assert.False(t, r.Config.Governance.DeveloperOnlyUpgrades)
}

func TestLoadInvalid(t *testing.T) {
	root := t.TempDir()
	r, err := Load(root)
	require.Nil(t, err)

	r.Config.Governance.Token.Supply = "-1"
	require.Nil(t, writeConfig(filepath.Join(root, cfgFileName), r.Config))

	_, err = Load(root)
	assert.NotNil(t, err)
}

func TestResolveRoot(t *testing.T) {
	p, err := ResolveRoot("/tmp/explicit")
	require.Nil(t, err)
	assert.Equal(t, "/tmp/explicit", p)

	t.Setenv(rootPathEnvVar, "/tmp/from-env")
	p, err = ResolveRoot("")
	require.Nil(t, err)
	assert.Equal(t, "/tmp/from-env", p)
}

func TestOpen(t *testing.T) {
	root := t.TempDir()

	_, err := Open(root)
	assert.True(t, errors.Is(err, ErrRepoNotExist))
	assert.False(t, Exist(filepath.Join(root, cfgFileName)))

	_, err = Load(root)
	require.Nil(t, err)

	r, err := Open(root)
	require.Nil(t, err)
	assert.Equal(t, root, r.Config.RepoRoot)
}

func TestCheckWritable(t *testing.T) {
	root := t.TempDir()
	assert.Nil(t, CheckWritable(root))

	fresh := filepath.Join(root, "fresh")
	assert.Nil(t, CheckWritable(fresh))
	_, err := os.Stat(fresh)
	assert.Nil(t, err)

	entries, err := os.ReadDir(root)
	require.Nil(t, err)
	assert.Len(t, entries, 1)
}
