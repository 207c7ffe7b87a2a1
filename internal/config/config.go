package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/couchcryptid/weather-backup-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DBDriver       string
	DBDSN          string
	DBMaxOpenConns int
	DBTimeout      time.Duration

	EntriesTable        string
	EntriesBackupTable  string
	EntriesCleanedTable string
	WeatherTable        string
	WeatherBackupTable  string
	WeatherCleanedTable string

	SnapshotDir    string
	SnapshotFormat string

	RunInterval     time.Duration
	RunOnStart      bool
	ConcurrentFlows bool

	HTTPAddr        string
	HTTPRunTimeout  time.Duration
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Run-report publishing is disabled when KafkaBrokers is empty.
	KafkaBrokers     []string
	KafkaReportTopic string

	Thresholds domain.Thresholds
}

var defaults = map[string]any{
	"DB_DRIVER":             "mysql",
	"DB_MAX_OPEN_CONNS":     10,
	"DB_TIMEOUT":            "30s",
	"ENTRIES_TABLE":         "entradas",
	"ENTRIES_BACKUP_TABLE":  "entradas_backup",
	"ENTRIES_CLEANED_TABLE": "entradas_cleaned",
	"WEATHER_TABLE":         "weather_data",
	"WEATHER_BACKUP_TABLE":  "weather_data_backup",
	"WEATHER_CLEANED_TABLE": "weather_data_cleaned",
	"SNAPSHOT_DIR":          "backups",
	"SNAPSHOT_FORMAT":       "csv",
	"RUN_INTERVAL":          "15m",
	"RUN_ON_START":          true,
	"CONCURRENT_FLOWS":      false,
	"HTTP_ADDR":             ":8080",
	"HTTP_RUN_TIMEOUT":      "5m",
	"LOG_LEVEL":             "info",
	"LOG_FORMAT":            "json",
	"SHUTDOWN_TIMEOUT":      "10s",
	"KAFKA_BROKERS":         "",
	"KAFKA_REPORT_TOPIC":    "etl-run-reports",
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	th := domain.DefaultThresholds()
	v.SetDefault("WIND_CALM_BELOW", th.WindCalmBelow)
	v.SetDefault("WIND_BREEZE_BELOW", th.WindBreezeBelow)
	v.SetDefault("WIND_MODERATE_BELOW", th.WindModerateBelow)
	v.SetDefault("TEMP_COLD_BELOW", th.TempColdBelow)
	v.SetDefault("TEMP_MILD_BELOW", th.TempMildBelow)
	v.SetDefault("VISIBILITY_HIGH_FROM", th.VisibilityHighFrom)
	v.SetDefault("VISIBILITY_MEDIUM_FROM", th.VisibilityMediumFrom)
	v.AutomaticEnv()

	dbTimeout, err := parsePositiveDuration(v, "DB_TIMEOUT")
	if err != nil {
		return nil, err
	}
	runInterval, err := parsePositiveDuration(v, "RUN_INTERVAL")
	if err != nil {
		return nil, err
	}
	runTimeout, err := parsePositiveDuration(v, "HTTP_RUN_TIMEOUT")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parsePositiveDuration(v, "SHUTDOWN_TIMEOUT")
	if err != nil {
		return nil, err
	}

	maxOpenConns, err := parseInt(v, "DB_MAX_OPEN_CONNS")
	if err != nil {
		return nil, err
	}
	thresholds, err := parseThresholds(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBDriver:       strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:          v.GetString("DB_DSN"),
		DBMaxOpenConns: int(maxOpenConns),
		DBTimeout:      dbTimeout,

		EntriesTable:        v.GetString("ENTRIES_TABLE"),
		EntriesBackupTable:  v.GetString("ENTRIES_BACKUP_TABLE"),
		EntriesCleanedTable: v.GetString("ENTRIES_CLEANED_TABLE"),
		WeatherTable:        v.GetString("WEATHER_TABLE"),
		WeatherBackupTable:  v.GetString("WEATHER_BACKUP_TABLE"),
		WeatherCleanedTable: v.GetString("WEATHER_CLEANED_TABLE"),

		SnapshotDir:    v.GetString("SNAPSHOT_DIR"),
		SnapshotFormat: strings.ToLower(v.GetString("SNAPSHOT_FORMAT")),

		RunInterval:     runInterval,
		RunOnStart:      v.GetBool("RUN_ON_START"),
		ConcurrentFlows: v.GetBool("CONCURRENT_FLOWS"),

		HTTPAddr:        v.GetString("HTTP_ADDR"),
		HTTPRunTimeout:  runTimeout,
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:     parseList(v.GetString("KAFKA_BROKERS")),
		KafkaReportTopic: v.GetString("KAFKA_REPORT_TOPIC"),

		Thresholds: thresholds,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: want mysql or sqlite", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.DBMaxOpenConns <= 0 {
		return errors.New("DB_MAX_OPEN_CONNS must be positive")
	}
	switch c.SnapshotFormat {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("invalid SNAPSHOT_FORMAT %q: want csv or xlsx", c.SnapshotFormat)
	}
	if c.SnapshotDir == "" {
		return errors.New("SNAPSHOT_DIR is required")
	}
	tables := map[string]string{
		"ENTRIES_TABLE":         c.EntriesTable,
		"ENTRIES_BACKUP_TABLE":  c.EntriesBackupTable,
		"ENTRIES_CLEANED_TABLE": c.EntriesCleanedTable,
		"WEATHER_TABLE":         c.WeatherTable,
		"WEATHER_BACKUP_TABLE":  c.WeatherBackupTable,
		"WEATHER_CLEANED_TABLE": c.WeatherCleanedTable,
	}
	for key, name := range tables {
		if name == "" {
			return fmt.Errorf("%s is required", key)
		}
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaReportTopic == "" {
		return errors.New("KAFKA_REPORT_TOPIC is required when KAFKA_BROKERS is set")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid classification thresholds: %w", err)
	}
	return nil
}

func parsePositiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(v *viper.Viper, key string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(key)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseInt(v *viper.Viper, key string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(v.GetString(key)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseThresholds(v *viper.Viper) (domain.Thresholds, error) {
	var th domain.Thresholds
	floats := []struct {
		key string
		dst *float64
	}{
		{"WIND_CALM_BELOW", &th.WindCalmBelow},
		{"WIND_BREEZE_BELOW", &th.WindBreezeBelow},
		{"WIND_MODERATE_BELOW", &th.WindModerateBelow},
		{"TEMP_COLD_BELOW", &th.TempColdBelow},
		{"TEMP_MILD_BELOW", &th.TempMildBelow},
	}
	for _, f := range floats {
		val, err := parseFloat(v, f.key)
		if err != nil {
			return domain.Thresholds{}, err
		}
		*f.dst = val
	}
	ints := []struct {
		key string
		dst *int64
	}{
		{"VISIBILITY_HIGH_FROM", &th.VisibilityHighFrom},
		{"VISIBILITY_MEDIUM_FROM", &th.VisibilityMediumFrom},
	}
	for _, n := range ints {
		val, err := parseInt(v, n.key)
		if err != nil {
			return domain.Thresholds{}, err
		}
		*n.dst = val
	}
	return th, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
