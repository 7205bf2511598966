package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Properties is a flat string key/value view over .env files and the process
// environment. Process environment entries take precedence over file entries;
// among files, the first definition of a key wins.
type Properties struct {
	values map[string]string
}

// Load reads the given .env files (default ".env"). A missing file is not an
// error: production deployments usually configure through the environment
// alone.
func Load(files ...string) *Properties {
	if len(files) == 0 {
		files = []string{".env"}
	}
	values := make(map[string]string)
	for _, f := range files {
		loaded, err := godotenv.Read(f)
		if err != nil {
			continue
		}
		for k, v := range loaded {
			if _, ok := values[k]; !ok {
				values[k] = v
			}
		}
	}
	return &Properties{values: values}
}

// New builds Properties from an explicit map, mainly for tests.
func New(values map[string]string) *Properties {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Properties{values: copied}
}

func (p *Properties) lookup(key string) (string, bool) {
	if v := os.Getenv(key); v != "" {
		return v, true
	}
	v, ok := p.values[key]
	return v, ok && v != ""
}

// Has reports whether key is set in the environment or a loaded file.
func (p *Properties) Has(key string) bool {
	_, ok := p.lookup(key)
	return ok
}

// Get returns the value for key, falling back to def.
func (p *Properties) Get(key, def string) string {
	if v, ok := p.lookup(key); ok {
		return v
	}
	return def
}

// Int returns the value for key parsed as an int; def on absence or a parse
// failure.
func (p *Properties) Int(key string, def int) int {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the value for key parsed with strconv.ParseBool.
func (p *Properties) Bool(key string, def bool) bool {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Duration returns the value for key parsed with time.ParseDuration.
func (p *Properties) Duration(key string, def time.Duration) time.Duration {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Strings returns the value for key split on commas, trimmed of surrounding
// whitespace; def on absence.
func (p *Properties) Strings(key string, def []string) []string {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
