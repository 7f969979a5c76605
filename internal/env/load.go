// Package env reads settings from the process environment, optionally seeded
// from a .env file.
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// LoadEnv loads .env (or the given files) into the environment. Variables
// that are already set win over file values.
func LoadEnv(logger *zap.Logger, files ...string) {
	if err := godotenv.Load(files...); err != nil {
		if logger != nil {
			logger.Debug("no .env file found, assuming environment variables are set directly")
		}
	}
}

// Lookup returns the trimmed value of key and whether it is set and non-empty.
func Lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(key)
	val = strings.TrimSpace(val)
	return val, ok && val != ""
}

// String overwrites *dst with key's value when set.
func String(key string, dst *string) {
	if val, ok := Lookup(key); ok {
		*dst = val
	}
}

// Int overwrites *dst with key's integer value when set.
func Int(key string, dst *int) error {
	val, ok := Lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// Bool overwrites *dst with key's boolean value when set.
func Bool(key string, dst *bool) error {
	val, ok := Lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// Duration overwrites *dst with key's value when set. Bare integers are read
// as milliseconds, anything else with time.ParseDuration.
func Duration(key string, dst *time.Duration) error {
	val, ok := Lookup(key)
	if !ok {
		return nil
	}
	if ms, err := strconv.Atoi(val); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
