// Package config builds the process-wide configuration once at startup.
//
// Values are resolved in order: defaults, .env file, environment, command-line flags.
// The resulting Config is passed explicitly to every component and never mutated afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Database names one transit database and how to open it.
type Database struct {
	Name   string
	Driver string
	DSN    string
}

// Config holds every setting and secret the components need.
type Config struct {
	LLM struct {
		APIKey  string
		BaseURL string
		Model   string
	}
	Embedding struct {
		APIKey string
		Model  string
	}
	Transit struct {
		Databases   []Database
		Dialect     string
		TopK        int
		MaxRows     int
		AllowWrites bool
	}
	Geocoding struct {
		APIKey  string
		BaseURL string
	}
	Routing struct {
		APIKey  string
		BaseURL string
	}
	Speech struct {
		STTKey     string
		STTBaseURL string
		STTModel   string
		TTSKey     string
		TTSBaseURL string
		Voice      string
		TTSModel   string
	}
	Timezone     string
	HTTPTimeout  time.Duration
	QueryTimeout time.Duration
	MaxSteps     int
	HintsEnabled bool
	Debug        bool
	LogLevel     string
	LogFormat    string
	HTTPAddr     string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	c := &Config{}
	c.LLM.BaseURL = "https://api.sambanova.ai/v1/"
	c.LLM.Model = "Meta-Llama-3.1-70B-Instruct"
	c.Embedding.Model = "text-embedding-3-small"
	c.Transit.Databases = []Database{{Name: "merged_gtfs", Driver: "sqlite", DSN: "merged_gtfs.db"}}
	c.Transit.TopK = 5
	c.Transit.MaxRows = 100
	c.Geocoding.BaseURL = "https://api.tomtom.com"
	c.Routing.BaseURL = "http://dev.virtualearth.net"
	c.Speech.STTBaseURL = "https://api.sambanova.ai/v1"
	c.Speech.STTModel = "Qwen2-Audio-7B-Instruct"
	c.Speech.TTSBaseURL = "https://api.elevenlabs.io/v1"
	c.Speech.Voice = "Hamid"
	c.Speech.TTSModel = "eleven_turbo_v2"
	c.Timezone = "Asia/Dubai"
	c.HTTPTimeout = 30 * time.Second
	c.QueryTimeout = 15 * time.Second
	c.MaxSteps = 10
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.HTTPAddr = ":8080"
	return c
}

// Load reads envFile (if present) and the environment into a Config.
// A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	c := Default()
	e := env{lookup: lookup}

	c.LLM.APIKey = e.str(c.LLM.APIKey, "LLM_API_KEY", "SAMBANOVA_API_KEY")
	c.LLM.BaseURL = e.str(c.LLM.BaseURL, "LLM_BASE_URL")
	c.LLM.Model = e.str(c.LLM.Model, "LLM_MODEL")
	c.Embedding.APIKey = e.str(c.Embedding.APIKey, "EMBEDDING_API_KEY", "OPENAI_API_KEY")
	c.Embedding.Model = e.str(c.Embedding.Model, "EMBEDDING_MODEL")

	if raw, ok := lookup("TRANSIT_DATABASES"); ok && strings.TrimSpace(raw) != "" {
		dbs, err := ParseDatabases(raw)
		if err != nil {
			return nil, err
		}
		c.Transit.Databases = dbs
	}
	c.Transit.Dialect = e.str(c.Transit.Dialect, "TRANSIT_DIALECT")
	c.Transit.AllowWrites = e.boolean(c.Transit.AllowWrites, "TRANSIT_ALLOW_WRITES")

	c.Geocoding.APIKey = e.str(c.Geocoding.APIKey, "TOMTOM_API_KEY")
	c.Geocoding.BaseURL = e.str(c.Geocoding.BaseURL, "TOMTOM_BASE_URL")
	c.Routing.APIKey = e.str(c.Routing.APIKey, "BINGMAPS_KEY")
	c.Routing.BaseURL = e.str(c.Routing.BaseURL, "BINGMAPS_BASE_URL")

	c.Speech.STTKey = e.str(c.Speech.STTKey, "STT_API_KEY", "SAMBANOVA_API_KEY")
	c.Speech.STTBaseURL = e.str(c.Speech.STTBaseURL, "STT_BASE_URL")
	c.Speech.STTModel = e.str(c.Speech.STTModel, "STT_MODEL")
	c.Speech.TTSKey = e.str(c.Speech.TTSKey, "ELEVENLABS_KEY")
	c.Speech.TTSBaseURL = e.str(c.Speech.TTSBaseURL, "ELEVENLABS_BASE_URL")
	c.Speech.Voice = e.str(c.Speech.Voice, "ELEVENLABS_VOICE")
	c.Speech.TTSModel = e.str(c.Speech.TTSModel, "ELEVENLABS_MODEL")

	c.Timezone = e.str(c.Timezone, "TIMEZONE")
	c.HintsEnabled = e.boolean(c.HintsEnabled, "HINTS_ENABLED")
	c.Debug = e.boolean(c.Debug, "DEBUG")
	c.LogLevel = e.str(c.LogLevel, "LOG_LEVEL")
	c.LogFormat = e.str(c.LogFormat, "LOG_FORMAT")
	c.HTTPAddr = e.str(c.HTTPAddr, "HTTP_ADDR")

	var err error
	if c.Transit.TopK, err = e.integer(c.Transit.TopK, "TRANSIT_TOP_K"); err != nil {
		return nil, err
	}
	if c.Transit.MaxRows, err = e.integer(c.Transit.MaxRows, "TRANSIT_MAX_ROWS"); err != nil {
		return nil, err
	}
	if c.MaxSteps, err = e.integer(c.MaxSteps, "MAX_STEPS"); err != nil {
		return nil, err
	}
	if c.HTTPTimeout, err = e.duration(c.HTTPTimeout, "HTTP_TIMEOUT"); err != nil {
		return nil, err
	}
	if c.QueryTimeout, err = e.duration(c.QueryTimeout, "QUERY_TIMEOUT"); err != nil {
		return nil, err
	}

	return c, c.Validate()
}

// BindFlags registers flag overrides for the most commonly tuned settings.
// Flags only take effect if set on the command line.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.LLM.Model, "model", c.LLM.Model, "LLM model name")
	fs.IntVar(&c.Transit.TopK, "top-k", c.Transit.TopK, "Default result-count limit for generated queries")
	fs.IntVar(&c.MaxSteps, "max-steps", c.MaxSteps, "Maximum dispatcher decisions per turn")
	fs.DurationVar(&c.HTTPTimeout, "timeout", c.HTTPTimeout, "Timeout for every outbound call")
	fs.StringVar(&c.Timezone, "timezone", c.Timezone, "Zone used by the current-time tool")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable verbose dispatcher logging")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format (text, json)")
}

// Validate checks settings that would make every turn fail.
// Missing provider keys are not checked here; each tool reports them when invoked.
func (c *Config) Validate() error {
	if len(c.Transit.Databases) == 0 {
		return fmt.Errorf("config: at least one transit database is required")
	}
	seen := make(map[string]bool)
	for _, db := range c.Transit.Databases {
		if seen[db.Name] {
			return fmt.Errorf("config: duplicate transit database %q", db.Name)
		}
		seen[db.Name] = true
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("config: MAX_STEPS must be positive, got %d", c.MaxSteps)
	}
	if c.Transit.TopK <= 0 {
		return fmt.Errorf("config: TRANSIT_TOP_K must be positive, got %d", c.Transit.TopK)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DatabaseNames returns the configured database names in order.
func (c *Config) DatabaseNames() []string {
	names := make([]string, len(c.Transit.Databases))
	for i, db := range c.Transit.Databases {
		names[i] = db.Name
	}
	return names
}

// ParseDatabases parses "name=driver:dsn;name2=driver:dsn2".
func ParseDatabases(raw string) ([]Database, error) {
	var dbs []Database
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, rest, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("config: transit database %q: expected name=driver:dsn", entry)
		}
		driver, dsn, ok := strings.Cut(rest, ":")
		if !ok || dsn == "" {
			return nil, fmt.Errorf("config: transit database %q: expected driver:dsn", entry)
		}
		name = strings.TrimSpace(name)
		if name == "" || strings.ContainsAny(name, " |") {
			return nil, fmt.Errorf("config: invalid transit database name %q", name)
		}
		dbs = append(dbs, Database{Name: name, Driver: strings.TrimSpace(driver), DSN: strings.TrimSpace(dsn)})
	}
	return dbs, nil
}

type env struct {
	lookup func(string) (string, bool)
}

func (e env) str(def string, keys ...string) string {
	for _, k := range keys {
		if v, ok := e.lookup(k); ok && v != "" {
			return v
		}
	}
	return def
}

func (e env) boolean(def bool, key string) bool {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (e env) integer(def int, key string) (int, error) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func (e env) duration(def time.Duration, key string) (time.Duration, error) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
