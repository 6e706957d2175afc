package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Upload   UploadConfig   `yaml:"upload" envconfig:"UPLOAD"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
}

// UploadConfig contains file upload handling configuration.
type UploadConfig struct {
	Dir               string   `yaml:"dir" envconfig:"DIR" default:"uploads"`
	MaxFiles          int      `yaml:"max_files" envconfig:"MAX_FILES" default:"6" validate:"min=1"`
	MaxFileSizeMB     int64    `yaml:"max_file_size_mb" envconfig:"MAX_FILE_SIZE_MB" default:"10" validate:"min=1"`
	AllowedExtensions []string `yaml:"allowed_extensions" envconfig:"ALLOWED_EXTENSIONS" default:".xlsx,.xls"`
}

// PipelineConfig carries the tunable constants and vocabularies of the
// extraction, validation and computation stages. Every list defaults
// to the vocabulary the hand-authored reports actually use; all of it
// can be overridden per deployment.
type PipelineConfig struct {
	// CostPerRejectedUnit is the financial loss per rejected unit, in INR.
	CostPerRejectedUnit float64 `yaml:"cost_per_rejected_unit" envconfig:"COST_PER_REJECTED_UNIT" default:"365" validate:"min=0"`

	// FallbackMonth is the month key used when neither a date column nor
	// the sheet name yields a month for an inspection row.
	FallbackMonth string `yaml:"fallback_month" envconfig:"FALLBACK_MONTH" default:"2025-04"`

	// AbortErrorRatio terminates the batch when error rows exceed this
	// share of total rows.
	AbortErrorRatio float64 `yaml:"abort_error_ratio" envconfig:"ABORT_ERROR_RATIO" default:"0.5" validate:"gt=0,lte=1"`

	// MaxHeaderScanRows bounds the header row search.
	MaxHeaderScanRows int `yaml:"max_header_scan_rows" envconfig:"MAX_HEADER_SCAN_ROWS" default:"20" validate:"min=1"`

	// MaxSourcesPerMetric caps the provenance sample attached to each
	// derived metric in API responses.
	MaxSourcesPerMetric int `yaml:"max_sources_per_metric" envconfig:"MAX_SOURCES_PER_METRIC" default:"10" validate:"min=1"`

	// MaxReportedFindings bounds the error/warning lists kept in the
	// post-validation snapshot.
	MaxReportedFindings int `yaml:"max_reported_findings" envconfig:"MAX_REPORTED_FINDINGS" default:"20" validate:"min=1"`

	// HeaderKeywords are the domain terms the header-row scorer looks for.
	HeaderKeywords []string `yaml:"header_keywords" envconfig:"HEADER_KEYWORDS"`

	// DefectVocabulary lists the known defect-name substrings; any
	// inspection column whose name contains one is a defect counter.
	DefectVocabulary []string `yaml:"defect_vocabulary" envconfig:"DEFECT_VOCABULARY"`

	// SkipSheetTokens lists sheet-name substrings marking non-tabular
	// sheets to skip.
	SkipSheetTokens []string `yaml:"skip_sheet_tokens" envconfig:"SKIP_SHEET_TOKENS" default:"chart,graph,summary"`

	// MetadataColumns lists column-name substrings that identify a row
	// rather than count anything; such columns are exempt from the
	// negative-count check.
	MetadataColumns []string `yaml:"metadata_columns" envconfig:"METADATA_COLUMNS"`

	// CategoryPatterns is the filename classification table, in match
	// priority order. File-configurable only; there is no sane
	// environment encoding for it.
	CategoryPatterns []CategoryPattern `yaml:"category_patterns"`
}

// CategoryPattern binds one report category to the filename regexes
// that identify it.
type CategoryPattern struct {
	Category string   `yaml:"category"`
	Patterns []string `yaml:"patterns"`
}

// DefaultHeaderKeywords is the built-in header vocabulary.
var DefaultHeaderKeywords = []string{
	"s.no", "s.no.", "sl.no", "date", "month", "year",
	"production", "dispatch", "received", "inspected", "accepted", "rejected",
	"qty", "quantity", "total", "percentage", "%", "defect",
	"batch", "lot", "item", "product", "code", "remarks", "result",
}

// DefaultDefectVocabulary is the built-in defect-name vocabulary,
// ordered; the first token contained in a column name wins.
var DefaultDefectVocabulary = []string{
	"COAG", "RAISED WIRE", "SURFACE", "OVERLAPING", "BLACK MARK", "WEBBING",
	"MISSING", "LEAKAGE", "BUBBLE", "THIN", "DIRTY", "STICKY", "WEAK",
	"WRONG COLOR", "PIN HOLE", "STRIPPING", "BALLOON", "VALVE", "OTHER",
}

// DefaultMetadataColumns is the built-in metadata-column vocabulary.
var DefaultMetadataColumns = []string{
	"S.NO", "SL.NO", "DATE", "MONTH", "REMARKS", "COL_",
}

// DefaultCategoryPatterns is the built-in filename classification
// table. The hand-authored reports misspell "cumulative", so the
// patterns do too.
var DefaultCategoryPatterns = []CategoryPattern{
	{Category: "production_cumulative", Patterns: []string{
		`yearly.*production.*commulative`,
		`production.*commulative.*\d{4}`,
	}},
	{Category: "cumulative", Patterns: []string{
		`^commulative.*\d{4}`,
	}},
	{Category: "assembly", Patterns: []string{
		`assembly.*rejection.*report`,
	}},
	{Category: "visual", Patterns: []string{
		`visual.*inspection.*report`,
	}},
	{Category: "integrity", Patterns: []string{
		`balloon.*valve.*integrity`,
		`integrity.*inspection`,
	}},
	{Category: "shopfloor", Patterns: []string{
		`shopfloor.*rejection.*report`,
	}},
}

// Load loads configuration from environment variables and the optional
// config file, applies vocabulary defaults, and validates the result.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("QCP", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := configFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	cfg.applyVocabularyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no
// environment or file input. Used by the offline CLI and tests.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000"},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Upload: UploadConfig{
			Dir:               "uploads",
			MaxFiles:          6,
			MaxFileSizeMB:     10,
			AllowedExtensions: []string{".xlsx", ".xls"},
		},
		Pipeline: PipelineConfig{
			CostPerRejectedUnit: 365,
			FallbackMonth:       "2025-04",
			AbortErrorRatio:     0.5,
			MaxHeaderScanRows:   20,
			MaxSourcesPerMetric: 10,
			MaxReportedFindings: 20,
			SkipSheetTokens:     []string{"chart", "graph", "summary"},
		},
	}
	cfg.applyVocabularyDefaults()
	return cfg
}

func (c *Config) applyVocabularyDefaults() {
	if len(c.Pipeline.HeaderKeywords) == 0 {
		c.Pipeline.HeaderKeywords = append([]string(nil), DefaultHeaderKeywords...)
	}
	if len(c.Pipeline.DefectVocabulary) == 0 {
		c.Pipeline.DefectVocabulary = append([]string(nil), DefaultDefectVocabulary...)
	}
	if len(c.Pipeline.SkipSheetTokens) == 0 {
		c.Pipeline.SkipSheetTokens = []string{"chart", "graph", "summary"}
	}
	if len(c.Pipeline.MetadataColumns) == 0 {
		c.Pipeline.MetadataColumns = append([]string(nil), DefaultMetadataColumns...)
	}
	if len(c.Pipeline.CategoryPatterns) == 0 {
		c.Pipeline.CategoryPatterns = append([]CategoryPattern(nil), DefaultCategoryPatterns...)
	}
}

// Validate checks the configuration against the struct tags and
// compiles the category patterns, so a bad regex fails at startup
// rather than at classification time.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	for _, entry := range c.Pipeline.CategoryPatterns {
		for _, pattern := range entry.Patterns {
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid category pattern %q: %w", pattern, err)
			}
		}
	}
	return nil
}

func configFilePath() string {
	if path := os.Getenv("QCP_CONFIG_FILE"); path != "" {
		return path
	}
	return "config.yaml"
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// mergeConfigs overlays non-zero environment values on top of file
// values. Environment always wins.
func mergeConfigs(file, env Config) Config {
	merged := file

	if env.Server.Port != 0 {
		merged.Server.Port = env.Server.Port
	}
	if env.Server.ReadTimeout != 0 {
		merged.Server.ReadTimeout = env.Server.ReadTimeout
	}
	if env.Server.WriteTimeout != 0 {
		merged.Server.WriteTimeout = env.Server.WriteTimeout
	}
	if env.Server.IdleTimeout != 0 {
		merged.Server.IdleTimeout = env.Server.IdleTimeout
	}
	if env.Server.ShutdownTimeout != 0 {
		merged.Server.ShutdownTimeout = env.Server.ShutdownTimeout
	}
	if len(env.Server.AllowedOrigins) > 0 {
		merged.Server.AllowedOrigins = env.Server.AllowedOrigins
	}
	if env.Logging.Level != "" {
		merged.Logging.Level = env.Logging.Level
	}
	if env.Logging.Format != "" {
		merged.Logging.Format = env.Logging.Format
	}
	if env.Upload.Dir != "" {
		merged.Upload.Dir = env.Upload.Dir
	}
	if env.Upload.MaxFiles != 0 {
		merged.Upload.MaxFiles = env.Upload.MaxFiles
	}
	if env.Upload.MaxFileSizeMB != 0 {
		merged.Upload.MaxFileSizeMB = env.Upload.MaxFileSizeMB
	}
	if len(env.Upload.AllowedExtensions) > 0 {
		merged.Upload.AllowedExtensions = env.Upload.AllowedExtensions
	}
	if env.Pipeline.CostPerRejectedUnit != 0 {
		merged.Pipeline.CostPerRejectedUnit = env.Pipeline.CostPerRejectedUnit
	}
	if env.Pipeline.FallbackMonth != "" {
		merged.Pipeline.FallbackMonth = env.Pipeline.FallbackMonth
	}
	if env.Pipeline.AbortErrorRatio != 0 {
		merged.Pipeline.AbortErrorRatio = env.Pipeline.AbortErrorRatio
	}
	if env.Pipeline.MaxHeaderScanRows != 0 {
		merged.Pipeline.MaxHeaderScanRows = env.Pipeline.MaxHeaderScanRows
	}
	if env.Pipeline.MaxSourcesPerMetric != 0 {
		merged.Pipeline.MaxSourcesPerMetric = env.Pipeline.MaxSourcesPerMetric
	}
	if env.Pipeline.MaxReportedFindings != 0 {
		merged.Pipeline.MaxReportedFindings = env.Pipeline.MaxReportedFindings
	}
	if len(env.Pipeline.HeaderKeywords) > 0 {
		merged.Pipeline.HeaderKeywords = env.Pipeline.HeaderKeywords
	}
	if len(env.Pipeline.DefectVocabulary) > 0 {
		merged.Pipeline.DefectVocabulary = env.Pipeline.DefectVocabulary
	}
	if len(env.Pipeline.SkipSheetTokens) > 0 {
		merged.Pipeline.SkipSheetTokens = env.Pipeline.SkipSheetTokens
	}
	if len(env.Pipeline.MetadataColumns) > 0 {
		merged.Pipeline.MetadataColumns = env.Pipeline.MetadataColumns
	}

	return merged
}
