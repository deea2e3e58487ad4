package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-orchestrator/flags"
)

type TOMLDuration time.Duration

func (t *TOMLDuration) UnmarshalText(b []byte) error {
	d, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}

	*t = TOMLDuration(d)
	return nil
}

// Profile is a named set of run settings kept in a TOML file. A value only
// applies when the matching flag was not given on the command line.
type Profile struct {
	Suites         []string     `toml:"suites"`
	Groups         []string     `toml:"groups"`
	Loops          int          `toml:"loops"`
	StopOnFail     bool         `toml:"stop_on_fail"`
	MaxParallel    int          `toml:"max_parallel"`
	DefaultTimeout TOMLDuration `toml:"default_timeout"`
	WorkDir        string       `toml:"workdir"`
	LogDir         string       `toml:"logdir"`
	RunInterval    TOMLDuration `toml:"run_interval"`
	DBURL          string       `toml:"db_url"`
	RedisURL       string       `toml:"redis_url"`
	LeaseTTL       TOMLDuration `toml:"lease_ttl"`

	defined map[string]bool
}

// LoadProfile reads a TOML profile. Unknown keys are rejected.
func LoadProfile(path string) (*Profile, error) {
	p := &Profile{defined: make(map[string]bool)}
	md, err := toml.DecodeFile(path, p)
	if err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown keys in profile %s: %s", path, strings.Join(keys, ", "))
	}
	for _, k := range md.Keys() {
		p.defined[k.String()] = true
	}
	return p, nil
}

func (p *Profile) use(ctx *cli.Context, key string, flag cli.Flag) bool {
	return p.defined[key] && !ctx.IsSet(flag.Names()[0])
}

// Apply copies the profile's values into cfg for every flag left unset.
func (p *Profile) Apply(ctx *cli.Context, cfg *Config) {
	if p.use(ctx, "suites", flags.Suites) {
		cfg.Suites = p.Suites
	}
	if p.use(ctx, "groups", flags.Groups) {
		cfg.Groups = p.Groups
	}
	if p.use(ctx, "loops", flags.Loops) {
		cfg.Loops = p.Loops
	}
	if p.use(ctx, "stop_on_fail", flags.StopOnFail) {
		cfg.StopOnFail = p.StopOnFail
	}
	if p.use(ctx, "max_parallel", flags.MaxParallel) {
		cfg.MaxParallel = p.MaxParallel
	}
	if p.use(ctx, "default_timeout", flags.DefaultTimeout) {
		cfg.DefaultTimeout = time.Duration(p.DefaultTimeout)
	}
	if p.use(ctx, "workdir", flags.WorkDir) {
		cfg.WorkDir = p.WorkDir
	}
	if p.use(ctx, "logdir", flags.LogDir) {
		cfg.LogDir = p.LogDir
	}
	if p.use(ctx, "run_interval", flags.RunInterval) {
		cfg.RunInterval = time.Duration(p.RunInterval)
	}
	if p.use(ctx, "db_url", flags.DBURL) {
		cfg.DBURL = p.DBURL
	}
	if p.use(ctx, "redis_url", flags.RedisURL) {
		cfg.RedisURL = p.RedisURL
	}
	if p.use(ctx, "lease_ttl", flags.LeaseTTL) {
		cfg.LeaseTTL = time.Duration(p.LeaseTTL)
	}
}
