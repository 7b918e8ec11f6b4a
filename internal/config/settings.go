package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/clawback/internal/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default values for configuration keys.
const (
	DefaultDatabasePath   = "$HOME/.local/share/clawback/clawback.db"
	DefaultFuzzyThreshold = 0.92
	DefaultQueueWorkers   = 2
	DefaultQueueCapacity  = 64
	DefaultSchedule       = "@every 5m"
	DefaultTimezone       = "Europe/Berlin"
	DefaultPDFSamplePages = 3
	DefaultPDFMinChars    = 50
)

// Settings is the resolved runtime configuration.
type Settings struct {
	Location       *time.Location
	DatabasePath   string
	LogLevel       string
	LogFormat      string
	Schedule       string
	FuzzyThreshold float64
	QueueWorkers   int
	QueueCapacity  int
	PDFSamplePages int
	PDFMinChars    int
}

// SetDefaults registers default values with viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("resolver.fuzzy_threshold", DefaultFuzzyThreshold)
	v.SetDefault("queue.workers", DefaultQueueWorkers)
	v.SetDefault("queue.capacity", DefaultQueueCapacity)
	v.SetDefault("scheduler.schedule", DefaultSchedule)
	v.SetDefault("scheduler.timezone", DefaultTimezone)
	v.SetDefault("ingest.pdf_sample_pages", DefaultPDFSamplePages)
	v.SetDefault("ingest.pdf_min_chars", DefaultPDFMinChars)
}

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already present in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		common.LogDebug("ignoring unreadable .env file", common.Fields{"error": err.Error()})
	}
}

// Load resolves settings from viper and validates them.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		DatabasePath:   ExpandPath(v.GetString("database.path")),
		LogLevel:       v.GetString("logging.level"),
		LogFormat:      v.GetString("logging.format"),
		FuzzyThreshold: v.GetFloat64("resolver.fuzzy_threshold"),
		QueueWorkers:   v.GetInt("queue.workers"),
		QueueCapacity:  v.GetInt("queue.capacity"),
		Schedule:       v.GetString("scheduler.schedule"),
		PDFSamplePages: v.GetInt("ingest.pdf_sample_pages"),
		PDFMinChars:    v.GetInt("ingest.pdf_min_chars"),
	}

	tz := v.GetString("scheduler.timezone")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: scheduler.timezone %q: %w", common.ErrInvalidConfig, tz, err)
	}
	s.Location = loc

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks value ranges.
func (s *Settings) Validate() error {
	if s.DatabasePath == "" {
		return fmt.Errorf("%w: database.path is empty", common.ErrInvalidConfig)
	}
	if s.FuzzyThreshold <= 0 || s.FuzzyThreshold > 1 {
		return fmt.Errorf("%w: resolver.fuzzy_threshold must be in (0,1], got %v", common.ErrInvalidConfig, s.FuzzyThreshold)
	}
	if s.QueueWorkers < 1 {
		return fmt.Errorf("%w: queue.workers must be positive", common.ErrInvalidConfig)
	}
	if s.QueueCapacity < 1 {
		return fmt.Errorf("%w: queue.capacity must be positive", common.ErrInvalidConfig)
	}
	if s.PDFSamplePages < 1 {
		return fmt.Errorf("%w: ingest.pdf_sample_pages must be positive", common.ErrInvalidConfig)
	}
	if s.PDFMinChars < 0 {
		return fmt.Errorf("%w: ingest.pdf_min_chars must not be negative", common.ErrInvalidConfig)
	}
	return nil
}

// EnsureDatabaseDir creates the parent directory of the database file.
func (s *Settings) EnsureDatabaseDir() error {
	return os.MkdirAll(filepath.Dir(s.DatabasePath), 0o750)
}
