package repo

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	rootPathEnvVar = "PROXYGOV_PATH"

	envPrefix = "PROXYGOV"

	cfgFileName = "proxygov.toml"

	defaultRepoRoot = "~/.proxygov"

	LogsDirName = "logs"

	LevelDBDirName = "leveldb"

	GovernanceContractAddr = "0x0000000000000000000000000000000000001001"

	ProxyContractAddr = "0x0000000000000000000000000000000000002001"
)

var (
	ErrRepoNotExist    = errors.New("proxygov repo does not exist")
	ErrRepoNotWritable = errors.New("proxygov repo is not writable")
)

// Repo is an opened repo root together with its validated config.
type Repo struct {
	Config *Config
}

// Exist reports whether anything is present at path.
func Exist(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !os.IsNotExist(err)
}

// ResolveRoot picks the repo root: an explicit value first, then
// $PROXYGOV_PATH, then ~/.proxygov.
func ResolveRoot(repoRoot string) (string, error) {
	if repoRoot != "" {
		return repoRoot, nil
	}
	if fromEnv := os.Getenv(rootPathEnvVar); fromEnv != "" {
		return fromEnv, nil
	}
	return homedir.Expand(defaultRepoRoot)
}

// Load opens the repo at repoRoot, writing the default config first when the
// root has none.
func Load(repoRoot string) (*Repo, error) {
	root, err := ResolveRoot(repoRoot)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig(root)
	cfgPath := filepath.Join(root, cfgFileName)

	if Exist(cfgPath) {
		if err := CheckWritable(root); err != nil {
			return nil, err
		}
		if err := readConfigFromFile(cfgPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "read %s", cfgPath)
		}
	} else {
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, errors.Wrapf(err, "create repo root %s", root)
		}
		if err := writeConfigWithEnv(cfgPath, cfg); err != nil {
			return nil, errors.Wrap(err, "write default config")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &Repo{Config: cfg}, nil
}

// Open is Load for a repo that must already be initialized.
func Open(repoRoot string) (*Repo, error) {
	root, err := ResolveRoot(repoRoot)
	if err != nil {
		return nil, err
	}
	if !Exist(filepath.Join(root, cfgFileName)) {
		return nil, errors.Wrap(ErrRepoNotExist, root)
	}
	return Load(root)
}

// Flush writes the config back with env overrides applied.
func (r *Repo) Flush() error {
	if err := writeConfigWithEnv(filepath.Join(r.Config.RepoRoot, cfgFileName), r.Config); err != nil {
		return errors.Wrap(err, "write config")
	}
	return nil
}

func writeConfigWithEnv(cfgPath string, config any) error {
	if err := writeConfig(cfgPath, config); err != nil {
		return err
	}
	// round trip through viper so env overrides land in the file
	if err := readConfigFromFile(cfgPath, config); err != nil {
		return errors.Wrap(err, "apply env overrides")
	}
	return writeConfig(cfgPath, config)
}

func writeConfig(cfgPath string, config any) error {
	raw, err := MarshalConfig(config)
	if err != nil {
		return err
	}
	return os.WriteFile(cfgPath, []byte(raw), 0644)
}

func MarshalConfig(config any) (string, error) {
	var buf bytes.Buffer
	e := toml.NewEncoder(&buf)
	e.SetIndentTables(true)
	e.SetArraysMultiline(true)
	if err := e.Encode(config); err != nil {
		return "", errors.Wrap(err, "encode config")
	}
	return buf.String(), nil
}

func readConfigFromFile(cfgPath string, config any) error {
	vp := viper.New()
	vp.SetConfigFile(cfgPath)
	vp.SetConfigType("toml")
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	if err := vp.ReadInConfig(); err != nil {
		return err
	}
	return vp.Unmarshal(config)
}

// CheckWritable makes sure dir exists and the current user can create files in it.
func CheckWritable(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return os.Mkdir(dir, 0775)
		}
		return errors.Wrapf(ErrRepoNotWritable, "stat %s: %v", dir, err)
	}

	f, err := os.CreateTemp(dir, ".writable-")
	if err != nil {
		return errors.Wrapf(ErrRepoNotWritable, "%s: %v", dir, err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close writable check file")
	}
	return os.Remove(name)
}
