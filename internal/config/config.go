// Package config handles switcher configuration
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/GriffinCanCode/soundswitch/internal/errors"
)

type Config struct {
	CaptureX         int
	CaptureY         int
	CaptureWidth     int
	CaptureHeight    int
	CaptureRate      float64 // Hz
	ScaleFactor      float64
	Contrast         float64
	Threshold        int // 0 disables binarisation
	OCRLanguage      string
	HashSkipDistance int // <0 disables pHash skipping
	StableFrames     int
	SwitchCooldown   time.Duration
	RulesFile        string
	DebugDump        bool
	DebugDir         string
	HTTPAddr         string
	GRPCAddr         string
	LogLevel         string
}

func Load() *Config {
	return &Config{
		CaptureX:         getEnvInt("CAPTURE_X", 1380),
		CaptureY:         getEnvInt("CAPTURE_Y", 550),
		CaptureWidth:     getEnvInt("CAPTURE_WIDTH", 1080),
		CaptureHeight:    getEnvInt("CAPTURE_HEIGHT", 500),
		CaptureRate:      getEnvFloat("CAPTURE_RATE", 1.0),
		ScaleFactor:      getEnvFloat("SCALE_FACTOR", 0.5),
		Contrast:         getEnvFloat("CONTRAST", 1.8),
		Threshold:        getEnvInt("THRESHOLD", 0),
		OCRLanguage:      getEnv("OCR_LANGUAGE", "eng"),
		HashSkipDistance: getEnvInt("HASH_SKIP_DISTANCE", 4),
		StableFrames:     getEnvInt("STABLE_FRAMES", 2),
		SwitchCooldown:   getEnvDuration("SWITCH_COOLDOWN", 2*time.Second),
		RulesFile:        getEnv("RULES_FILE", ""),
		DebugDump:        getEnvBool("DEBUG_DUMP", false),
		DebugDir:         getEnv("DEBUG_DIR", "debug"),
		HTTPAddr:         getEnvOptional("HTTP_ADDR", "127.0.0.1:8765"),
		GRPCAddr:         getEnvOptional("GRPC_ADDR", "127.0.0.1:50061"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.CaptureWidth <= 0 || c.CaptureHeight <= 0:
		return invalid("capture region must have positive size", "CAPTURE_WIDTH", strconv.Itoa(c.CaptureWidth))
	case c.CaptureRate <= 0:
		return invalid("capture rate must be positive", "CAPTURE_RATE", strconv.FormatFloat(c.CaptureRate, 'g', -1, 64))
	case c.ScaleFactor <= 0 || c.ScaleFactor > 1:
		return invalid("scale factor must be in (0,1]", "SCALE_FACTOR", strconv.FormatFloat(c.ScaleFactor, 'g', -1, 64))
	case c.Contrast <= 0:
		return invalid("contrast must be positive", "CONTRAST", strconv.FormatFloat(c.Contrast, 'g', -1, 64))
	case c.Threshold < 0 || c.Threshold > 255:
		return invalid("threshold must be in 0..255", "THRESHOLD", strconv.Itoa(c.Threshold))
	case c.StableFrames < 1:
		return invalid("stable frames must be at least 1", "STABLE_FRAMES", strconv.Itoa(c.StableFrames))
	case c.SwitchCooldown < 0:
		return invalid("switch cooldown must not be negative", "SWITCH_COOLDOWN", c.SwitchCooldown.String())
	}
	return nil
}

// Interval is the time between two pipeline iterations.
func (c *Config) Interval() time.Duration {
	return time.Duration(float64(time.Second) / c.CaptureRate)
}

// SlogLevel parses LogLevel, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func invalid(msg, key, value string) error {
	return apperrors.New(apperrors.ConfigInvalid, msg).WithMetadata(key, value)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvOptional lets an explicitly empty variable disable a feature.
func getEnvOptional(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
