package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Dedupe policies.
const (
	DedupeKey   = "key"
	DedupeExact = "exact"
	DedupeNone  = "none"
)

// Resolver passes, in the order they may appear in MATCH_ORDER.
const (
	PassExact    = "exact"
	PassMerchant = "merchant"
	PassText     = "text"
)

// Report output formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatChart    = "chart"
	FormatAll      = "all"
)

type Config struct {
	// Merge
	InputDir    string
	OutputPath  string
	MappingFile string
	Dedupe      string
	MatchOrder  []string
	Workers     int
	LedgerBOM   bool
	Debug       bool
	// DebugBrands are lower-cased names whose records Debug dumps to
	// debug_brand_hits.csv
	DebugBrands []string

	// Logging
	LogLevel  slog.Level
	LogFormat string

	// Report
	MonthsBack   int
	TopMerchants int
	BigTop       int
	BigMinCents  int64
	Currency     string
	ReportDir    string
	ReportFormat string

	// SQLite ledger mirror (empty disables it)
	LedgerDBPath string

	// AMQP merge notifications (empty URL disables them)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export (empty spreadsheet ID disables it)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

func Load() *Config {
	cfg := &Config{
		InputDir:    getEnv("INPUT_DIR", "./input"),
		OutputPath:  getEnv("OUTPUT_PATH", "./output/merged.csv"),
		MappingFile: getEnv("MAPPING_FILE", "./category_map.csv"),
		Dedupe:      strings.ToLower(getEnv("DEDUPE", DedupeKey)),
		MatchOrder:  getEnvList("MATCH_ORDER", []string{PassExact, PassMerchant, PassText}),
		Workers:     getEnvInt("WORKERS", 4),
		LedgerBOM:   getEnvBool("LEDGER_BOM", false),
		Debug:       getEnvBool("DEBUG", false),
		DebugBrands: getEnvList("DEBUG_BRANDS", nil),

		LogLevel:  LogLevel(),
		LogFormat: LogFormat(),

		MonthsBack:   getEnvInt("MONTHS_BACK", 12),
		TopMerchants: getEnvInt("TOP_MERCHANTS", 10),
		BigTop:       getEnvInt("BIG_TOP", 10),
		BigMinCents:  getEnvCents("BIG_MIN", 0),
		Currency:     getEnv("CURRENCY", "¥"),
		ReportDir:    getEnv("REPORT_DIR", "./output/report"),
		ReportFormat: strings.ToLower(getEnv("REPORT_FORMAT", FormatAll)),

		LedgerDBPath: getEnv("LEDGER_DB_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bills"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_merged"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Ledger"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.InputDir) == "" {
		errors = append(errors, "input directory cannot be empty")
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		errors = append(errors, "output path cannot be empty")
	} else if filepath.Ext(c.OutputPath) != ".csv" {
		errors = append(errors, fmt.Sprintf("invalid output path '%s': ledger must be a .csv file", c.OutputPath))
	}

	switch c.Dedupe {
	case DedupeKey, DedupeExact, DedupeNone:
	default:
		errors = append(errors, fmt.Sprintf("invalid dedupe policy '%s': must be one of [%s %s %s]", c.Dedupe, DedupeKey, DedupeExact, DedupeNone))
	}

	if len(c.MatchOrder) == 0 {
		errors = append(errors, "match order cannot be empty")
	}
	seen := map[string]bool{}
	for _, p := range c.MatchOrder {
		switch p {
		case PassExact, PassMerchant, PassText:
		default:
			errors = append(errors, fmt.Sprintf("invalid match pass '%s': must be one of [%s %s %s]", p, PassExact, PassMerchant, PassText))
			continue
		}
		if seen[p] {
			errors = append(errors, fmt.Sprintf("match pass '%s' listed more than once", p))
		}
		seen[p] = true
	}

	if c.Workers < 1 {
		errors = append(errors, fmt.Sprintf("invalid workers %d: must be at least 1", c.Workers))
	} else if c.Workers > 64 {
		errors = append(errors, fmt.Sprintf("invalid workers %d: must be at most 64", c.Workers))
	}

	if c.MonthsBack < 1 {
		errors = append(errors, fmt.Sprintf("invalid months back %d: must be at least 1", c.MonthsBack))
	}
	if c.TopMerchants < 1 {
		errors = append(errors, fmt.Sprintf("invalid top merchants %d: must be at least 1", c.TopMerchants))
	}
	if c.BigTop < 1 {
		errors = append(errors, fmt.Sprintf("invalid big expense count %d: must be at least 1", c.BigTop))
	}
	if c.BigMinCents < 0 {
		errors = append(errors, "big expense threshold cannot be negative")
	}

	switch c.ReportFormat {
	case FormatText, FormatMarkdown, FormatChart, FormatAll:
	default:
		errors = append(errors, fmt.Sprintf("invalid report format '%s': must be one of [%s %s %s %s]", c.ReportFormat, FormatText, FormatMarkdown, FormatChart, FormatAll))
	}

	// Validate SQLite mirror directory if enabled
	if c.LedgerDBPath != "" {
		dir := filepath.Dir(c.LedgerDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create ledger database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate Google Sheets export if enabled
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// LogLevel reads LOG_LEVEL on its own so a logger can exist before the
// rest of the configuration is loaded.
func LogLevel() slog.Level {
	return getEnvLevel("LOG_LEVEL", slog.LevelInfo)
}

// LogFormat reads LOG_FORMAT ("text" or "json"); anything else is text.
func LogFormat() string {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "json") {
		return "json"
	}
	return "text"
}

// OutputDir is the directory holding the ledger and debug artifacts.
func (c *Config) OutputDir() string {
	return filepath.Dir(c.OutputPath)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

func getEnvCents(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			if f < 0 {
				return int64(f*100 - 0.5)
			}
			return int64(f*100 + 0.5)
		}
	}
	return defaultValue
}
