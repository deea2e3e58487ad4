package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_ORCHESTRATOR"

var (
	Catalog = &cli.StringFlag{
		Name:     "catalog",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "CATALOG"),
		Usage:    "Path to the suite catalog (eg. 'suites.yaml')",
	}
	Suites = &cli.StringSliceFlag{
		Name:    "suites",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUITES"),
		Usage:   "Suites to run. Runs every suite of the catalog when empty.",
	}
	Groups = &cli.StringSliceFlag{
		Name:    "groups",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "GROUPS"),
		Usage:   "Group references (names or regular expressions) overriding each suite's selection",
	}
	Loops = &cli.IntFlag{
		Name:    "loops",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOOPS"),
		Usage:   "Number of passes over each suite. 0 keeps the catalog's value.",
	}
	StopOnFail = &cli.BoolFlag{
		Name:    "stop-on-fail",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STOP_ON_FAIL"),
		Usage:   "Abandon the remaining tests of a suite after the first failure",
	}
	MaxParallel = &cli.IntFlag{
		Name:    "max-parallel",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "MAX_PARALLEL"),
		Usage:   "Maximum number of suites running at the same time (0 = all)",
	}
	DefaultTimeout = &cli.DurationFlag{
		Name:    "default-timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DEFAULT_TIMEOUT"),
		Usage:   "Timeout for units that declare none (0 = no timeout)",
	}
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORKDIR"),
		Usage:   "Working directory for command tests of suites that declare none",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store suite summaries",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	DBURL = &cli.StringFlag{
		Name:    "db-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DB_URL"),
		Usage:   "Postgres connection string. Results are persisted when set.",
	}
	RedisURL = &cli.StringFlag{
		Name:    "redis-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REDIS_URL"),
		Usage:   "Redis URL. When set, replicas share a lease so only one runs each pass.",
	}
	LeaseTTL = &cli.DurationFlag{
		Name:    "lease-ttl",
		Value:   time.Hour,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LEASE_TTL"),
		Usage:   "Expiry of the run lease, should exceed the longest expected pass",
	}
	Profile = &cli.StringFlag{
		Name:    "profile",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROFILE"),
		Usage:   "Path to a TOML run profile supplying values for flags that are not set",
	}
	ShowProgress = &cli.BoolFlag{
		Name:    "show-progress",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_PROGRESS"),
		Usage:   "Log periodic progress updates while suites run",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   30 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between progress updates when --show-progress is set",
	}
	APIAddr = &cli.StringFlag{
		Name:    "api.addr",
		Value:   "0.0.0.0",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "API_ADDR"),
		Usage:   "Address the health and results API listens on",
	}
	APIPort = &cli.IntFlag{
		Name:    "api.port",
		Value:   8080,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "API_PORT"),
		Usage:   "Port the health and results API listens on",
	}
)

var requiredFlags = []cli.Flag{
	Catalog,
}

var optionalFlags = []cli.Flag{
	Suites,
	Groups,
	Loops,
	StopOnFail,
	MaxParallel,
	DefaultTimeout,
	WorkDir,
	LogDir,
	RunInterval,
	DBURL,
	RedisURL,
	LeaseTTL,
	Profile,
	ShowProgress,
	ProgressInterval,
	APIAddr,
	APIPort,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
