package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes one additional calendar source beyond the
// default one. Location is either a filesystem path or an http(s) URL.
type SourceConfig struct {
	// ID is an internal identifier used for logging and de-dup.
	ID string `yaml:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name"`
	// Location is a file path or ICS URL.
	Location string `yaml:"location"`
}

// Config is the top-level application configuration.
type Config struct {
	// Calendar is the default calendar source (path or URL) used when
	// --calendar is not given. Empty means the bundled sample calendar.
	Calendar string `yaml:"calendar"`

	// Sources are additional calendar sources listed alongside Calendar.
	Sources []SourceConfig `yaml:"sources"`

	// Timezone is the IANA display timezone for timed events
	// (e.g. "America/Los_Angeles"). Empty means the system local zone.
	Timezone string `yaml:"timezone"`

	// WatchCron is the cron schedule used by --watch to re-print the
	// listing (e.g. "*/15 * * * *").
	WatchCron string `yaml:"watch"`

	// Highlight is a list of keywords; events whose summary contains one
	// are rendered in red.
	Highlight []string `yaml:"highlight"`

	// CacheDir is where conditional-GET cache state for URL sources is
	// kept. Empty means the user cache dir.
	CacheDir string `yaml:"cache_dir"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Calendar:  "",
		Sources:   []SourceConfig{},
		Timezone:  "",
		WatchCron: "*/15 * * * *",
		Highlight: []string{},
		CacheDir:  "",
	}
}

// Normalize fills in missing values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.WatchCron == "" {
		c.WatchCron = "*/15 * * * *"
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	if c.Highlight == nil {
		c.Highlight = []string{}
	}
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (parent
// directory created as needed, file mode 0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration to path atomically (temp file + rename)
// with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".evlist-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
