package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alecthomas/kong"

	"go.hackfix.me/sqlmgr/app/config"
	actx "go.hackfix.me/sqlmgr/app/context"
	dbtypes "go.hackfix.me/sqlmgr/db/types"
)

// CLI is the command line interface of sqlmgr.
type CLI struct {
	Init     Init     `kong:"cmd,help='Write the configuration file and initialize the database.'"`
	List     List     `kong:"cmd,help='List all migrations and their status.',aliases='ls,status'"`
	Apply    Apply    `kong:"cmd,help='Apply pending migrations.'"`
	Rollback Rollback `kong:"cmd,help='Roll back applied migrations.'"`
	AuditLog AuditLog `kong:"cmd,name='log',help='Inspect or manage the audit log.'"`
	Serve    Serve    `kong:"cmd,help='Start the web server.'"`

	Log struct {
		Level slog.Level `enum:"DEBUG,INFO,WARN,ERROR" default:"INFO" help:"Set the app logging level."`
	} `embed:"" prefix:"log-"`
	// NOTE: Not using kong.ConfigFlag or its support for reading values from
	// configuration files, since configuration is managed independently from
	// the CLI.
	ConfigFile string           `kong:"default='${configFile}',help='Path to the sqlmgr configuration file.'"`
	DataDir    string           `kong:"default='${dataDir}',help='Path to the directory where sqlmgr data is stored.'"`
	Version    kong.VersionFlag `kong:"help='Output version and exit.'"`

	// Overrides of configuration values.
	Driver           string        `kong:"help='Database driver. Valid values: sqlite, postgres.'"`
	DSN              string        `kong:"name='dsn',help='Data source name of the database.'"`
	MigrationsDir    string        `kong:"help='Directory migrations are discovered in.'"`
	LockTimeout      DurationValue `kong:"placeholder='DURATION',help='How long to wait for the migration lock, e.g. 30s or 2m.'"`
	StatementTimeout DurationValue `kong:"placeholder='DURATION',help='Maximum execution time of a single SQL statement. 0 disables it.'"`

	kong *kong.Kong
	kctx *kong.Context
}

// New initializes the command-line interface.
func New(name, configFilePath, dataDir, version string) (*CLI, error) {
	c := &CLI{}
	kparser, err := kong.New(c,
		kong.Name(name),
		kong.UsageOnError(),
		kong.DefaultEnvars("SQLMGR"),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			Summary:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"configFile": configFilePath,
			"dataDir":    dataDir,
			"version":    version,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed creating the Kong parser: %w", err)
	}

	c.kong = kparser

	return c, nil
}

// Execute starts the command execution. Parse must be called before this method.
func (c *CLI) Execute(appCtx *actx.Context) error {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	c.kong.Stdout = appCtx.Stdout
	c.kong.Stderr = appCtx.Stderr

	//nolint:wrapcheck // This is fine.
	return c.kctx.Run(appCtx)
}

// Parse the given command line arguments. This method must be called before
// Execute.
func (c *CLI) Parse(args []string) error {
	kctx, err := c.kong.Parse(args)
	if err != nil {
		return fmt.Errorf("failed parsing CLI arguments: %w", err)
	}
	c.kctx = kctx

	return nil
}

// Command returns the full path of the executed command.
func (c *CLI) Command() string {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	cmdPath := []string{}
	for _, p := range c.kctx.Path {
		if p.Command != nil {
			cmdPath = append(cmdPath, p.Command.Name)
		}
	}

	return strings.Join(cmdPath, " ")
}

// ApplyConfig reconciles the CLI with the configuration. Values set on the
// command line or in the environment override configuration values, and
// configuration values fill in CLI values that weren't set.
func (c *CLI) ApplyConfig(cfg *config.Config) error {
	if c.Driver != "" {
		d, err := dbtypes.DialectFromString(c.Driver)
		if err != nil {
			return err //nolint:wrapcheck // Already descriptive.
		}
		cfg.Database.Driver = sql.Null[dbtypes.Dialect]{V: d, Valid: true}
	}
	if c.DSN != "" {
		cfg.Database.DSN = sql.Null[string]{V: c.DSN, Valid: true}
	}
	if c.MigrationsDir != "" {
		cfg.Migrations.Dir = sql.Null[string]{V: c.MigrationsDir, Valid: true}
	}
	if c.LockTimeout.Valid {
		cfg.Lock.Timeout = c.LockTimeout.Null
	}
	if c.StatementTimeout.Valid {
		cfg.Execution.StatementTimeout = c.StatementTimeout.Null
	}

	if c.Serve.Address == "" && cfg.Server.Address.Valid {
		c.Serve.Address = cfg.Server.Address.V
	}
	if c.Serve.APIToken == "" && cfg.Server.APIToken.Valid {
		c.Serve.APIToken = cfg.Server.APIToken.V
	}

	return nil
}
