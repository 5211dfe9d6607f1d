package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.knockmap/knockmap.yaml"

	DefaultPicture = "https://i.ibb.co/ZNK5xmN/pdycc8-1-removebg-preview.png"
)

// Config is the top-level configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Tables    TablesConfig    `yaml:"tables"`
	Roster    RosterConfig    `yaml:"roster,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
	Cache     CacheConfig     `yaml:"cache,omitempty"`
	Board     BoardConfig     `yaml:"board,omitempty"`
	Audit     AuditConfig     `yaml:"audit,omitempty"`
	Export    ExportConfig    `yaml:"export,omitempty"`
	Logging   LogConfig       `yaml:"logging,omitempty"`
}

// WarehouseConfig defines the warehouse connection.
type WarehouseConfig struct {
	Type           string `yaml:"type"` // snowflake, postgresql, mysql or sqlite
	Account        string `yaml:"account,omitempty"`
	User           string `yaml:"user,omitempty"`
	Password       string `yaml:"password,omitempty"`
	Role           string `yaml:"role,omitempty"`
	Warehouse      string `yaml:"warehouse,omitempty"`
	Database       string `yaml:"database,omitempty"`
	Schema         string `yaml:"schema,omitempty"`
	DSN            string `yaml:"dsn,omitempty"`
	MaxConnections int    `yaml:"max_connections,omitempty"` // default 4, max 20
}

// TablesConfig names the warehouse tables the dashboard reads and writes.
type TablesConfig struct {
	Users         string `yaml:"users"`
	Targets       string `yaml:"targets"`
	Markets       string `yaml:"markets"`
	Opportunities string `yaml:"opportunities"`
}

// RosterConfig controls which users appear on the targets page.
type RosterConfig struct {
	Roles          []string `yaml:"roles,omitempty"`
	DefaultPicture string   `yaml:"default_picture,omitempty"`
}

// ServerConfig defines the HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port,omitempty"`
}

// CacheConfig defines the query result cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl,omitempty"`
}

// BoardConfig controls the appointment boards.
type BoardConfig struct {
	// Timezone is the IANA zone weeks are counted in. Empty means the
	// server's local zone.
	Timezone string `yaml:"timezone,omitempty"`
}

// Location returns the zone named by Timezone.
func (b BoardConfig) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("board.timezone: %w", err)
	}
	return loc, nil
}

// AuditConfig selects where edit events are recorded.
type AuditConfig struct {
	Type             string `yaml:"type,omitempty"` // log, mongodb or none
	ConnectionString string `yaml:"connection_string,omitempty"`
	Database         string `yaml:"database,omitempty"`
	Collection       string `yaml:"collection,omitempty"`
}

// ExportConfig defines where board snapshots are uploaded.
type ExportConfig struct {
	Region  string `yaml:"region,omitempty"`
	Profile string `yaml:"profile,omitempty"`
	Bucket  string `yaml:"bucket,omitempty"`
	Prefix  string `yaml:"prefix,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`     // debug, info, warn, error
	Directory string `yaml:"directory,omitempty"` // default ~/.knockmap/logs/
}

// Default returns a config with every default applied and the table names
// of the production warehouse.
func Default() *Config {
	cfg := &Config{
		Version: CurrentVersion,
		Warehouse: WarehouseConfig{
			Type: "snowflake",
		},
		Tables: TablesConfig{
			Users:         "operational.airtable.vw_users",
			Targets:       "raw.snowflake.lm_appointments",
			Markets:       "raw.snowflake.lm_markets",
			Opportunities: "raw.salesforce.opportunity",
		},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the config file from the given path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyDefaults() {
	if c.Warehouse.MaxConnections == 0 {
		c.Warehouse.MaxConnections = 4
	}
	if c.Warehouse.MaxConnections > 20 {
		c.Warehouse.MaxConnections = 20
	}
	if len(c.Roster.Roles) == 0 {
		c.Roster.Roles = []string{"Closer", "Manager"}
	}
	if c.Roster.DefaultPicture == "" {
		c.Roster.DefaultPicture = DefaultPicture
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8230
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 10 * time.Minute
	}
	if c.Audit.Type == "" {
		c.Audit.Type = "log"
	}
	if c.Audit.Database == "" {
		c.Audit.Database = "knockmap"
	}
	if c.Audit.Collection == "" {
		c.Audit.Collection = "edits"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.knockmap/logs/")
	}
}

// Table names are spliced into SQL text, so only dotted identifiers pass.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*){0,2}$`)

// Validate checks the fields the dashboard cannot run without.
func (c *Config) Validate() error {
	switch c.Warehouse.Type {
	case "snowflake", "postgresql", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported warehouse type %q", c.Warehouse.Type)
	}

	tables := map[string]string{
		"users":         c.Tables.Users,
		"targets":       c.Tables.Targets,
		"markets":       c.Tables.Markets,
		"opportunities": c.Tables.Opportunities,
	}
	for name, table := range tables {
		if table == "" {
			return fmt.Errorf("tables.%s is required", name)
		}
		if !tableNamePattern.MatchString(table) {
			return fmt.Errorf("tables.%s: %q is not a valid table name", name, table)
		}
	}

	if _, err := c.Board.Location(); err != nil {
		return err
	}

	switch c.Audit.Type {
	case "log", "none":
	case "mongodb":
		if c.Audit.ConnectionString == "" {
			return fmt.Errorf("audit.connection_string is required for mongodb audit")
		}
	default:
		return fmt.Errorf("unsupported audit type %q", c.Audit.Type)
	}
	return nil
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

func (c *Config) resolveSecrets() error {
	var err error
	c.Warehouse.Password, err = ResolveValue(c.Warehouse.Password)
	if err != nil {
		return fmt.Errorf("warehouse password: %w", err)
	}
	c.Warehouse.DSN, err = ResolveValue(c.Warehouse.DSN)
	if err != nil {
		return fmt.Errorf("warehouse dsn: %w", err)
	}
	c.Audit.ConnectionString, err = ResolveValue(c.Audit.ConnectionString)
	if err != nil {
		return fmt.Errorf("audit connection string: %w", err)
	}
	return nil
}

// ResolveValue resolves secret references in a string value.
func ResolveValue(val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
