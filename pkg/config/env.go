package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envString returns the trimmed value of key, or fallback when unset
// or blank.
func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return fallback
}

// envBool parses common boolean spellings (true/false, 1/0, yes/no,
// on/off). Unparseable values keep the fallback.
func envBool(key string, fallback bool) bool {
	v := strings.ToLower(envString(key, ""))
	switch v {
	case "":
		return fallback
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return fallback
}

// envInt parses an integer value. Unparseable values keep the fallback.
func envInt(key string, fallback int) int {
	if v := envString(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envFloat parses a float value. Unparseable values keep the fallback.
func envFloat(key string, fallback float64) float64 {
	if v := envString(key, ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envSeconds reads an integer number of seconds as a duration.
func envSeconds(key string, fallback time.Duration) time.Duration {
	if v := envString(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

// envMinutes reads an integer number of minutes as a duration.
func envMinutes(key string, fallback time.Duration) time.Duration {
	if v := envString(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Minute
		}
	}
	return fallback
}

// envList splits a delimiter-separated value into trimmed, non-empty
// items. A missing variable yields nil.
func envList(key, sep string) []string {
	raw := envString(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, sep)
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}
