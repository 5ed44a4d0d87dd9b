package config

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Match    MatchConfig    `yaml:"match" mapstructure:"match"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// MatchConfig names the identity columns and delimiters of both inputs.
type MatchConfig struct {
	CRMDelimiter            string `yaml:"crm_delimiter" mapstructure:"crm_delimiter"`
	CRMLastNameColumn       string `yaml:"crm_last_name_column" mapstructure:"crm_last_name_column"`
	CRMFirstNameColumn      string `yaml:"crm_first_name_column" mapstructure:"crm_first_name_column"`
	CandidateNameColumn     string `yaml:"candidate_name_column" mapstructure:"candidate_name_column"`
	CandidateForenameColumn string `yaml:"candidate_forename_column" mapstructure:"candidate_forename_column"`
	CandidateCSVDelimiter   string `yaml:"candidate_csv_delimiter" mapstructure:"candidate_csv_delimiter"`
}

// ClassifyConfig tunes classification.
type ClassifyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig configures the written result files.
type OutputConfig struct {
	Delimiter      string `yaml:"delimiter" mapstructure:"delimiter"`
	UniquesFile    string `yaml:"uniques_file" mapstructure:"uniques_file"`
	DuplicatesFile string `yaml:"duplicates_file" mapstructure:"duplicates_file"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst          int      `yaml:"burst" mapstructure:"burst"`
	MaxUploadMB    int64    `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Match: MatchConfig{
			CRMDelimiter:            ";",
			CRMLastNameColumn:       "Nom",
			CRMFirstNameColumn:      "Prénom",
			CandidateNameColumn:     "Nom",
			CandidateForenameColumn: "Prénom",
			CandidateCSVDelimiter:   ",",
		},
		Classify: ClassifyConfig{Workers: 4},
		Output: OutputConfig{
			Delimiter:      ",",
			UniquesFile:    "contacts_to_import.csv",
			DuplicatesFile: "duplicates_to_review.csv",
		},
		Server: ServerConfig{
			Port:           8080,
			RateLimit:      5,
			Burst:          10,
			MaxUploadMB:    32,
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEDUPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	d := Defaults()
	v.SetDefault("match.crm_delimiter", d.Match.CRMDelimiter)
	v.SetDefault("match.crm_last_name_column", d.Match.CRMLastNameColumn)
	v.SetDefault("match.crm_first_name_column", d.Match.CRMFirstNameColumn)
	v.SetDefault("match.candidate_name_column", d.Match.CandidateNameColumn)
	v.SetDefault("match.candidate_forename_column", d.Match.CandidateForenameColumn)
	v.SetDefault("match.candidate_csv_delimiter", d.Match.CandidateCSVDelimiter)
	v.SetDefault("classify.workers", d.Classify.Workers)
	v.SetDefault("output.delimiter", d.Output.Delimiter)
	v.SetDefault("output.uniques_file", d.Output.UniquesFile)
	v.SetDefault("output.duplicates_file", d.Output.DuplicatesFile)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.burst", d.Server.Burst)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that every column label is set and every delimiter is a
// single usable character.
func (m MatchConfig) Validate() error {
	cols := []struct{ key, val string }{
		{"crm_last_name_column", m.CRMLastNameColumn},
		{"crm_first_name_column", m.CRMFirstNameColumn},
		{"candidate_name_column", m.CandidateNameColumn},
		{"candidate_forename_column", m.CandidateForenameColumn},
	}
	for _, c := range cols {
		if strings.TrimSpace(c.val) == "" {
			return eris.Errorf("config: match.%s is required", c.key)
		}
	}
	if _, err := ParseDelimiter(m.CRMDelimiter); err != nil {
		return eris.Wrap(err, "config: match.crm_delimiter")
	}
	if _, err := ParseDelimiter(m.CandidateCSVDelimiter); err != nil {
		return eris.Wrap(err, "config: match.candidate_csv_delimiter")
	}
	return nil
}

// Validate checks the settings a command mode depends on. Mode is "run" or
// "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit <= 0 {
			errs = append(errs, "server.rate_limit must be > 0")
		}
		if c.Server.MaxUploadMB <= 0 {
			errs = append(errs, "server.max_upload_mb must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if err := c.Match.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Classify.Workers < 1 || c.Classify.Workers > 64 {
		errs = append(errs, "classify.workers must be between 1 and 64")
	}
	if _, err := ParseDelimiter(c.Output.Delimiter); err != nil {
		errs = append(errs, "output.delimiter: "+err.Error())
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ParseDelimiter converts a configured delimiter to a rune. "\t" and "tab" are
// accepted for tab-separated files.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, eris.Errorf("delimiter %q must be exactly one character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	switch r {
	case '"', '\r', '\n', utf8.RuneError:
		return 0, eris.Errorf("delimiter %q is not allowed", s)
	}
	return r, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "config: marshal")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "config: write %s", path)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
