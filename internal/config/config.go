package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"invoicer/internal/logger"
)

// Storage backend names.
const (
	BackendDrive = "drive"
	BackendS3    = "s3"
)

type Config struct {
	// Ledger spreadsheet
	SpreadsheetID        string // bare ID or full sheet URL
	LedgerSheet          string
	ClientsSheet         string
	LedgerIncludeDueDate bool

	// Invoice defaults
	Currency          string
	DefaultTaxRate    string
	InvoiceNumberBase int

	// Document storage
	StorageBackend      string
	DriveParentFolderID string
	S3Endpoint          string
	S3AccessKey         string
	S3SecretKey         string
	S3Bucket            string
	S3UseSSL            bool

	// Company block printed on every invoice. Multi-line values use "|"
	// as the line separator.
	CompanyName    string
	CompanyAddress []string
	CompanyContact string
	InvoiceFooter  []string
	BankInfo       []string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		SpreadsheetID:        getEnv("SPREADSHEET_ID", ""),
		LedgerSheet:          getEnv("LEDGER_SHEET", "Invoices"),
		ClientsSheet:         getEnv("CLIENTS_SHEET", "Clients"),
		LedgerIncludeDueDate: getEnvBool("LEDGER_INCLUDE_DUE_DATE", false),
		Currency:             getEnv("CURRENCY", "AWG"),
		DefaultTaxRate:       getEnv("DEFAULT_TAX_RATE", "12"),
		InvoiceNumberBase:    getEnvInt("INVOICE_NUMBER_BASE", 1001),
		StorageBackend:       getEnv("STORAGE_BACKEND", BackendDrive),
		DriveParentFolderID:  getEnv("DRIVE_PARENT_FOLDER_ID", ""),
		S3Endpoint:           getEnv("S3_ENDPOINT", ""),
		S3AccessKey:          getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:          getEnv("S3_SECRET_KEY", ""),
		S3Bucket:             getEnv("S3_BUCKET", "invoices"),
		S3UseSSL:             getEnvBool("S3_USE_SSL", true),
		CompanyName:          getEnv("COMPANY_NAME", ""),
		CompanyAddress:       getEnvLines("COMPANY_ADDRESS", ""),
		CompanyContact:       getEnv("COMPANY_CONTACT", ""),
		InvoiceFooter:        getEnvLines("INVOICE_FOOTER", "Thank you for your business!|Payment due within 14 days."),
		BankInfo:             getEnvLines("BANK_INFO", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("SPREADSHEET_ID is required")
	}
	switch c.StorageBackend {
	case BackendDrive:
		// DRIVE_PARENT_FOLDER_ID stays optional, the Invoices folder is
		// created at the Drive root without it.
	case BackendS3:
		if c.S3Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT is required for the s3 backend")
		}
		if c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required for the s3 backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendDrive, BackendS3, c.StorageBackend)
	}
	if c.InvoiceNumberBase <= 0 {
		return fmt.Errorf("INVOICE_NUMBER_BASE must be positive")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvLines(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "|")
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}
