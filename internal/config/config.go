package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	DataDir     string `mapstructure:"data_dir" yaml:"data_dir"`
	FiltersFile string `mapstructure:"filters_file" yaml:"filters_file"`
	SheetName   string `mapstructure:"sheet_name" yaml:"sheet_name"`
	SheetIndex  int    `mapstructure:"sheet_index" yaml:"sheet_index"`

	// Column schema
	CodeColumn  string `mapstructure:"code_column" yaml:"code_column"`
	NameColumn  string `mapstructure:"name_column" yaml:"name_column"`
	YearColumn  string `mapstructure:"year_column" yaml:"year_column"`
	ValueColumn string `mapstructure:"value_column" yaml:"value_column"`

	// Year header detection for melt
	YearPattern string `mapstructure:"year_pattern" yaml:"year_pattern"`
	YearMin     int    `mapstructure:"year_min" yaml:"year_min"`
	YearMax     int    `mapstructure:"year_max" yaml:"year_max"`

	// Statistics / correlation
	FenceMultiplier   float64 `mapstructure:"fence_multiplier" yaml:"fence_multiplier"`
	QuantileMethod    string  `mapstructure:"quantile_method" yaml:"quantile_method"`
	CorrelationMethod string  `mapstructure:"correlation_method" yaml:"correlation_method"`
	StrictKeys        bool    `mapstructure:"strict_keys" yaml:"strict_keys"`

	// Number coercion; empty means auto-detect per value
	DecimalSeparator   string `mapstructure:"decimal_separator" yaml:"decimal_separator"`
	ThousandsSeparator string `mapstructure:"thousands_separator" yaml:"thousands_separator"`

	ExportFormat string `mapstructure:"export_format" yaml:"export_format"`
	ListenAddr   string `mapstructure:"listen_addr" yaml:"listen_addr"`
	LogFile      string `mapstructure:"log_file" yaml:"log_file"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"data_dir", "filters_file", "sheet_name", "sheet_index",
	"code_column", "name_column", "year_column", "value_column",
	"year_pattern", "year_min", "year_max",
	"fence_multiplier", "quantile_method", "correlation_method", "strict_keys",
	"decimal_separator", "thousands_separator",
	"export_format", "listen_addr", "log_file",
}

// DefaultDir returns ~/.munidata.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".munidata"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.munidata/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := DefaultDir()
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
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
// A .env file in the working directory is loaded into the environment first;
// variables already set are not overridden.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MUNIDATA")
	v.AutomaticEnv()

	for k, val := range defaults() {
		v.SetDefault(k, val)
	}

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
	return &c, nil
}

func defaults() map[string]any {
	return map[string]any{
		"data_dir":            "",
		"filters_file":        "Filtros.xlsx",
		"sheet_name":          "",
		"sheet_index":         0,
		"code_column":         "CD_MUN",
		"name_column":         "NM_MUN",
		"year_column":         "ANO",
		"value_column":        "VALOR",
		"year_pattern":        `^\s*(\d{4})\s*$`,
		"year_min":            1800,
		"year_max":            2200,
		"fence_multiplier":    1.5,
		"quantile_method":     "linear",
		"correlation_method":  "pearson",
		"strict_keys":         false,
		"decimal_separator":   "",
		"thousands_separator": "",
		"export_format":       "",
		"listen_addr":         "127.0.0.1:8080",
		"log_file":            "",
	}
}

// Set assigns a single key from its string form, validating numeric and
// boolean values.
func Set(c *Global, key, val string) error {
	switch key {
	case "data_dir":
		c.DataDir = val
	case "filters_file":
		c.FiltersFile = val
	case "sheet_name":
		c.SheetName = val
	case "sheet_index":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for sheet_index: %v", val)
		}
		c.SheetIndex = i
	case "code_column":
		c.CodeColumn = val
	case "name_column":
		c.NameColumn = val
	case "year_column":
		c.YearColumn = val
	case "value_column":
		c.ValueColumn = val
	case "year_pattern":
		if _, err := regexp.Compile(val); err != nil {
			return fmt.Errorf("invalid year_pattern: %w", err)
		}
		c.YearPattern = val
	case "year_min", "year_max":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for %s: %w", key, err)
		}
		if key == "year_min" {
			c.YearMin = i
		} else {
			c.YearMax = i
		}
	case "fence_multiplier":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid positive float for fence_multiplier: %v", val)
		}
		c.FenceMultiplier = f
	case "quantile_method":
		switch strings.ToLower(val) {
		case "linear", "exclusive":
			c.QuantileMethod = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid quantile_method: %s (use linear or exclusive)", val)
		}
	case "correlation_method":
		switch strings.ToLower(val) {
		case "pearson", "spearman", "kendall":
			c.CorrelationMethod = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid correlation_method: %s (use pearson, spearman or kendall)", val)
		}
	case "strict_keys":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for strict_keys: %w", err)
		}
		c.StrictKeys = b
	case "decimal_separator":
		c.DecimalSeparator = val
	case "thousands_separator":
		c.ThousandsSeparator = val
	case "export_format":
		c.ExportFormat = strings.ToLower(val)
	case "listen_addr":
		c.ListenAddr = val
	case "log_file":
		c.LogFile = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// Get renders a single key for display.
func Get(c *Global, key string) (string, error) {
	switch key {
	case "data_dir":
		return c.DataDir, nil
	case "filters_file":
		return c.FiltersFile, nil
	case "sheet_name":
		return c.SheetName, nil
	case "sheet_index":
		return strconv.Itoa(c.SheetIndex), nil
	case "code_column":
		return c.CodeColumn, nil
	case "name_column":
		return c.NameColumn, nil
	case "year_column":
		return c.YearColumn, nil
	case "value_column":
		return c.ValueColumn, nil
	case "year_pattern":
		return c.YearPattern, nil
	case "year_min":
		return strconv.Itoa(c.YearMin), nil
	case "year_max":
		return strconv.Itoa(c.YearMax), nil
	case "fence_multiplier":
		return strconv.FormatFloat(c.FenceMultiplier, 'g', -1, 64), nil
	case "quantile_method":
		return c.QuantileMethod, nil
	case "correlation_method":
		return c.CorrelationMethod, nil
	case "strict_keys":
		return strconv.FormatBool(c.StrictKeys), nil
	case "decimal_separator":
		return c.DecimalSeparator, nil
	case "thousands_separator":
		return c.ThousandsSeparator, nil
	case "export_format":
		return c.ExportFormat, nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "log_file":
		return c.LogFile, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}
