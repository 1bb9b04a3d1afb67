package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // ORG_TIMEZONE must resolve in minimal images

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	JWT       JWTConfig
	App       AppConfig
	Timesheet TimesheetConfig
	CORS      CORSConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Name     string
	Version  string
	Port     int
	Env      string
	LogLevel string
}

// TimesheetConfig drives the engine and the refresh loop
type TimesheetConfig struct {
	OrgTimezone   string
	PollInterval  time.Duration
	TickInterval  time.Duration
	WindowStart   string // HH:mm
	WindowEnd     string // HH:mm
	SegmentGap    float64
	StreamBuffer  int
	orgLocation   *time.Location
	windowMinutes [2]int
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only
func FromEnv() (*Config, error) {
	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := strconv.Atoi(getEnv("DB_MIN_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}
	connLifetime, err := time.ParseDuration(getEnv("DB_MAX_CONN_LIFETIME", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONN_LIFETIME: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", "timesheet"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxConns:        int32(maxConns),
		MinConns:        int32(minConns),
		MaxConnLifetime: connLifetime,
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Name:     getEnv("APP_NAME", "timesheet-cmlabs"),
		Version:  getEnv("APP_VERSION", "v1.0.0"),
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Timesheet configuration
	pollInterval, err := time.ParseDuration(getEnv("POLL_INTERVAL", "20s"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}
	tickInterval, err := time.ParseDuration(getEnv("TICK_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
	}
	segmentGap, err := strconv.ParseFloat(getEnv("TIMELINE_SEGMENT_GAP", "0.25"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMELINE_SEGMENT_GAP: %w", err)
	}
	streamBuffer, err := strconv.Atoi(getEnv("STREAM_BUFFER", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid STREAM_BUFFER: %w", err)
	}

	config.Timesheet = TimesheetConfig{
		OrgTimezone:  getEnv("ORG_TIMEZONE", "Asia/Jakarta"),
		PollInterval: pollInterval,
		TickInterval: tickInterval,
		WindowStart:  getEnv("TIMELINE_WINDOW_START", "05:00"),
		WindowEnd:    getEnv("TIMELINE_WINDOW_END", "23:00"),
		SegmentGap:   segmentGap,
		StreamBuffer: streamBuffer,
	}

	config.CORS = CORSConfig{
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}

	loc, err := time.LoadLocation(c.Timesheet.OrgTimezone)
	if err != nil {
		return fmt.Errorf("invalid ORG_TIMEZONE %q: %w", c.Timesheet.OrgTimezone, err)
	}
	c.Timesheet.orgLocation = loc

	if c.Timesheet.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.Timesheet.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive")
	}

	start, err := parseClock(c.Timesheet.WindowStart)
	if err != nil {
		return fmt.Errorf("invalid TIMELINE_WINDOW_START: %w", err)
	}
	end, err := parseClock(c.Timesheet.WindowEnd)
	if err != nil {
		return fmt.Errorf("invalid TIMELINE_WINDOW_END: %w", err)
	}
	if end <= start {
		return fmt.Errorf("TIMELINE_WINDOW_END must be after TIMELINE_WINDOW_START")
	}
	c.Timesheet.windowMinutes = [2]int{start, end}

	if c.Timesheet.SegmentGap < 0 || c.Timesheet.SegmentGap >= 100 {
		return fmt.Errorf("TIMELINE_SEGMENT_GAP must be within [0, 100)")
	}
	return nil
}

// Location returns the organization timezone parsed by Validate
func (t TimesheetConfig) Location() *time.Location {
	if t.orgLocation == nil {
		return time.UTC
	}
	return t.orgLocation
}

// WindowMinutes returns the timeline window as minutes of day
func (t TimesheetConfig) WindowMinutes() (start, end int) {
	return t.windowMinutes[0], t.windowMinutes[1]
}

// SlogLevel maps LOG_LEVEL onto slog; unknown values fall back to info.
func (a AppConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key, fallback string) []string {
	value := getEnv(key, fallback)
	if value == "" {
		return []string{}
	}
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}
