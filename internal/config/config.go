package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/tidyloom-cli/internal/source"
	"github.com/KaramelBytes/tidyloom-cli/internal/table"
	"github.com/KaramelBytes/tidyloom-cli/internal/tidy"
)

// Global configuration structure.
type Global struct {
	DataDir    string `mapstructure:"data_dir" yaml:"data_dir"`
	RecipesDir string `mapstructure:"recipes_dir" yaml:"recipes_dir"`
	ChartsDir  string `mapstructure:"charts_dir" yaml:"charts_dir"`

	// Loading
	Delimiter     string   `mapstructure:"delimiter" yaml:"delimiter"`
	MissingTokens []string `mapstructure:"missing_tokens" yaml:"missing_tokens"`
	DecimalSep    string   `mapstructure:"decimal_separator" yaml:"decimal_separator"`
	ThousandsSep  string   `mapstructure:"thousands_separator" yaml:"thousands_separator"`

	// Reshape policies
	SpreadDuplicates string `mapstructure:"spread_duplicates" yaml:"spread_duplicates"`
	SeparateExtra    string `mapstructure:"separate_extra" yaml:"separate_extra"`
	SeparateFill     string `mapstructure:"separate_fill" yaml:"separate_fill"`

	// Database source
	DBDriver   string `mapstructure:"db_driver" yaml:"db_driver"`
	DBServer   string `mapstructure:"db_server" yaml:"db_server"`
	DBPort     int    `mapstructure:"db_port" yaml:"db_port"`
	DBName     string `mapstructure:"db_name" yaml:"db_name"`
	DBUser     string `mapstructure:"db_user" yaml:"db_user"`
	DBPassword string `mapstructure:"db_password" yaml:"db_password"`
	DBTrusted  bool   `mapstructure:"db_trusted" yaml:"db_trusted"`
	DBSSLMode  string `mapstructure:"db_sslmode" yaml:"db_sslmode"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Keys lists every settable key in display order.
var Keys = []string{
	"data_dir", "recipes_dir", "charts_dir",
	"delimiter", "missing_tokens", "decimal_separator", "thousands_separator",
	"spread_duplicates", "separate_extra", "separate_fill",
	"db_driver", "db_server", "db_port", "db_name", "db_user", "db_password", "db_trusted", "db_sslmode",
	"log_level", "log_format",
}

// ErrUnknownKey is returned by Set for keys not in Keys.
var ErrUnknownKey = errors.New("unknown config key")

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".tidyloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.tidyloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := homeDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is loaded into the environment first; variables already set win.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	v := viper.New()
	v.SetEnvPrefix("TIDYLOOM")
	v.AutomaticEnv()

	v.SetDefault("delimiter", "")
	v.SetDefault("missing_tokens", []string{table.MissingLabel})
	v.SetDefault("decimal_separator", "")
	v.SetDefault("thousands_separator", "")
	v.SetDefault("spread_duplicates", string(tidy.DuplicateError))
	v.SetDefault("separate_extra", string(tidy.ExtraError))
	v.SetDefault("separate_fill", string(tidy.FillError))
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_server", "")
	v.SetDefault("db_port", 0)
	v.SetDefault("db_name", "")
	v.SetDefault("db_user", "")
	v.SetDefault("db_password", "")
	v.SetDefault("db_trusted", false)
	v.SetDefault("db_sslmode", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("data_dir", "")
	v.SetDefault("recipes_dir", "")
	v.SetDefault("charts_dir", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := homeDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.RecipesDir == "" || c.ChartsDir == "" {
		dir, err := homeDir()
		if err != nil {
			return nil, err
		}
		if c.RecipesDir == "" {
			c.RecipesDir = filepath.Join(dir, "recipes")
		}
		if c.ChartsDir == "" {
			c.ChartsDir = filepath.Join(dir, "charts")
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks enumerated settings.
func (c *Global) Validate() error {
	if _, err := tidy.ParseDuplicatePolicy(c.SpreadDuplicates); err != nil {
		return fmt.Errorf("spread_duplicates: %w", err)
	}
	if _, err := tidy.ParseExtraPolicy(c.SeparateExtra); err != nil {
		return fmt.Errorf("separate_extra: %w", err)
	}
	if _, err := tidy.ParseFillPolicy(c.SeparateFill); err != nil {
		return fmt.Errorf("separate_fill: %w", err)
	}
	for key, s := range map[string]string{"delimiter": c.Delimiter, "decimal_separator": c.DecimalSep, "thousands_separator": c.ThousandsSep} {
		if _, err := parseRune(s); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// parseRune accepts "", a single character, or the names "tab" and "\t".
func parseRune(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, fmt.Errorf("want a single character, got %q", s)
	}
	return r[0], nil
}

// SourceOptions turns the loading settings into reader options.
func (c *Global) SourceOptions() source.Options {
	opt := source.DefaultOptions()
	opt.Delimiter, _ = parseRune(c.Delimiter)
	if len(c.MissingTokens) > 0 {
		opt.Parse.MissingTokens = append([]string(nil), c.MissingTokens...)
	}
	opt.Parse.DecimalSeparator, _ = parseRune(c.DecimalSep)
	opt.Parse.ThousandsSeparator, _ = parseRune(c.ThousandsSep)
	return opt
}

// Conn returns the database connection settings.
func (c *Global) Conn() source.ConnConfig {
	return source.ConnConfig{
		Driver:   c.DBDriver,
		Server:   c.DBServer,
		Port:     c.DBPort,
		Database: c.DBName,
		User:     c.DBUser,
		Password: c.DBPassword,
		Trusted:  c.DBTrusted,
		SSLMode:  c.DBSSLMode,
	}
}

// Get renders one key for display. Passwords are masked.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "data_dir":
		return c.DataDir, nil
	case "recipes_dir":
		return c.RecipesDir, nil
	case "charts_dir":
		return c.ChartsDir, nil
	case "delimiter":
		return c.Delimiter, nil
	case "missing_tokens":
		return strings.Join(c.MissingTokens, ","), nil
	case "decimal_separator":
		return c.DecimalSep, nil
	case "thousands_separator":
		return c.ThousandsSep, nil
	case "spread_duplicates":
		return c.SpreadDuplicates, nil
	case "separate_extra":
		return c.SeparateExtra, nil
	case "separate_fill":
		return c.SeparateFill, nil
	case "db_driver":
		return c.DBDriver, nil
	case "db_server":
		return c.DBServer, nil
	case "db_port":
		return strconv.Itoa(c.DBPort), nil
	case "db_name":
		return c.DBName, nil
	case "db_user":
		return c.DBUser, nil
	case "db_password":
		return Mask(c.DBPassword), nil
	case "db_trusted":
		return strconv.FormatBool(c.DBTrusted), nil
	case "db_sslmode":
		return c.DBSSLMode, nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// Set parses and assigns one key.
func (c *Global) Set(key, val string) error {
	switch key {
	case "data_dir":
		c.DataDir = val
	case "recipes_dir":
		c.RecipesDir = val
	case "charts_dir":
		c.ChartsDir = val
	case "delimiter", "decimal_separator", "thousands_separator":
		if _, err := parseRune(val); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		switch key {
		case "delimiter":
			c.Delimiter = val
		case "decimal_separator":
			c.DecimalSep = val
		default:
			c.ThousandsSep = val
		}
	case "missing_tokens":
		var toks []string
		for _, t := range strings.Split(val, ",") {
			toks = append(toks, strings.TrimSpace(t))
		}
		c.MissingTokens = toks
	case "spread_duplicates":
		p, err := tidy.ParseDuplicatePolicy(strings.ToLower(val))
		if err != nil {
			return err
		}
		c.SpreadDuplicates = string(p)
	case "separate_extra":
		p, err := tidy.ParseExtraPolicy(strings.ToLower(val))
		if err != nil {
			return err
		}
		c.SeparateExtra = string(p)
	case "separate_fill":
		p, err := tidy.ParseFillPolicy(strings.ToLower(val))
		if err != nil {
			return err
		}
		c.SeparateFill = string(p)
	case "db_driver":
		switch strings.ToLower(val) {
		case "sqlite", "sqlite3":
			c.DBDriver = "sqlite"
		case "postgres", "postgresql", "pq":
			c.DBDriver = "postgres"
		default:
			return fmt.Errorf("invalid db_driver: %s (use sqlite or postgres)", val)
		}
	case "db_server":
		c.DBServer = val
	case "db_port":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 || i > 65535 {
			return fmt.Errorf("invalid port for db_port: %v", val)
		}
		c.DBPort = i
	case "db_name":
		c.DBName = val
	case "db_user":
		c.DBUser = val
	case "db_password":
		c.DBPassword = val
	case "db_trusted":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for db_trusted: %w", err)
		}
		c.DBTrusted = b
	case "db_sslmode":
		c.DBSSLMode = val
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug|info|warn|error)", val)
		}
	case "log_format":
		switch strings.ToLower(val) {
		case "console", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// Mask hides all but the ends of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
