package cli

import (
	"bytes"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"sigs.k8s.io/yaml"
)

const (
	maxWalkDepth = 25
	envPrefix    = "TABLERIZER"
)

// configFileNames are tried in order in every directory during discovery.
var configFileNames = []string{
	".tablerizerrc",
	".tablerizerrc.json",
	".tablerizerrc.yaml",
	".tablerizerrc.yml",
}

// Config represents the tablerizer configuration from .tablerizerrc.
type Config struct {
	Schemas      []string          `mapstructure:"schemas" json:"schemas"`
	Out          string            `mapstructure:"out" json:"out"`
	Roles        []string          `mapstructure:"roles" json:"roles"`
	RoleMappings map[string]string `mapstructure:"role_mappings" json:"role_mappings"`
	Scope        string            `mapstructure:"scope" json:"scope"`
	Clean        bool              `mapstructure:"clean" json:"clean"`

	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Log      LogConfig      `mapstructure:"log" json:"log"`

	// Sources records where each setting came from: "default", "file",
	// "env" or, once flags are applied, "flag".
	Sources map[string]string `mapstructure:"-" json:"-"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL      string `mapstructure:"url" json:"url"`
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Name     string `mapstructure:"name" json:"name"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// env > config file > defaults. Flags are layered on top by Resolve.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Set up environment variable binding
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.url", envPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, "", fmt.Errorf("binding DATABASE_URL: %w", err)
	}

	// 3. Find and load config file
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	// viper folds map keys to lower case, but role names are case-sensitive,
	// so role_mappings is decoded separately from the raw file and env value.
	var mappings map[string]string
	if configPath != "" {
		if err := readConfigFile(v, configPath); err != nil {
			return nil, configPath, err
		}
		if mappings, err = fileRoleMappings(configPath); err != nil {
			return nil, configPath, err
		}
	}

	// Role mappings arrive from the environment as "from=to,from=to".
	if raw, ok := os.LookupEnv(envPrefix + "_ROLE_MAPPINGS"); ok && raw != "" {
		envMappings, err := ParseRoleMappings(strings.Split(raw, ","))
		if err != nil {
			return nil, configPath, fmt.Errorf("%s_ROLE_MAPPINGS: %w", envPrefix, err)
		}
		v.Set("role_mappings", envMappings)
		mappings = envMappings
	}

	// 4. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}
	if mappings != nil {
		cfg.RoleMappings = mappings
	}
	cfg.Sources = sources(v)

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	// Top-level defaults
	v.SetDefault("schemas", []string{"public"})
	v.SetDefault("out", "./tablerize")
	v.SetDefault("roles", []string{})
	v.SetDefault("role_mappings", map[string]string{})
	v.SetDefault("scope", "all")
	v.SetDefault("clean", false)

	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// readConfigFile loads path into v. The extensionless .tablerizerrc may hold
// JSON or YAML; its first non-blank byte decides.
func readConfigFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" || filepath.Base(path) == ".tablerizerrc" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
		v.SetConfigType(detectConfigType(data))
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// fileRoleMappings returns role_mappings from the config file with the keys
// as written. It returns nil when the file has no role_mappings or is in a
// format other than JSON or YAML.
func fileRoleMappings(path string) (map[string]string, error) {
	switch filepath.Ext(path) {
	case "", ".json", ".yaml", ".yml":
	default:
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var raw struct {
		RoleMappings map[string]string `json:"role_mappings"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("reading role_mappings: %w", err)
	}
	return raw.RoleMappings, nil
}

func detectConfigType(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return "json"
	}
	return "yaml"
}

// sources reports where every known key's value came from.
func sources(v *viper.Viper) map[string]string {
	out := make(map[string]string)
	for _, key := range v.AllKeys() {
		envName := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		switch {
		case os.Getenv(envName) != "":
			out[key] = "env"
		case key == "database.url" && os.Getenv("DATABASE_URL") != "":
			out[key] = "env"
		case v.InConfig(key):
			out[key] = "file"
		default:
			out[key] = "default"
		}
	}
	return out
}

// SourceKeys returns the keys of c.Sources in sorted order.
func (c *Config) SourceKeys() []string {
	keys := make([]string, 0, len(c.Sources))
	for k := range c.Sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for .tablerizerrc and its
// .json/.yaml/.yml variants, stopping at a .git directory or after
// maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Auto-discovery: walk up to .git or maxWalkDepth
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range configFileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory)
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break // Stop at repo root
		}

		// Move up
		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached filesystem root
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}

// DSN returns the database connection string.
// If database.url is set, it's returned directly. Otherwise a URL is built
// from discrete fields when a host is set. An empty DSN lets the driver fall
// back to the PG* environment variables.
func (c *Config) DSN() (string, error) {
	db := c.Database

	if db.URL != "" {
		return db.URL, nil
	}
	if db.Host == "" {
		if db.Name != "" || db.User != "" {
			return "", fmt.Errorf("database.host is required when database.name or database.user is set")
		}
		return "", nil
	}

	// Build postgres:// URL
	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
	}
	if db.Name != "" {
		u.Path = "/" + db.Name
	}

	switch {
	case db.User != "" && db.Password != "":
		u.User = url.UserPassword(db.User, db.Password)
	case db.User != "":
		u.User = url.User(db.User)
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// Redacted returns a copy of c safe to print: passwords are masked, both in
// database.password and inside database.url.
func (c *Config) Redacted() Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = "********"
	}
	if out.Database.URL != "" {
		if u, err := url.Parse(out.Database.URL); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				out.Database.URL = u.Redacted()
			}
		}
	}
	return out
}

// ParseRoleMappings parses "from=to" pairs. Blank entries are ignored.
func ParseRoleMappings(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		from, to, ok := strings.Cut(pair, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid role mapping %q (expected from=to)", pair)
		}
		out[from] = to
	}
	return out, nil
}
