// Package config loads server settings from defaults, an optional YAML file,
// a .env file and ZALOGA_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "ZALOGA_"

// Config holds all server settings.
type Config struct {
	Addr       string `yaml:"addr"`
	DBPath     string `yaml:"db_path"`
	StorageDir string `yaml:"storage_dir"`
	PublicURL  string `yaml:"public_url"`
	LogPath    string `yaml:"log_path"`
	AdminEmail string `yaml:"admin_email"`

	// ActivityBuffer is the queue length of the asynchronous activity logger.
	ActivityBuffer int `yaml:"activity_buffer"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:           ":8080",
		DBPath:         "zaloga.sqlite3",
		StorageDir:     "storage",
		AdminEmail:     "admin@zaloga.local",
		ActivityBuffer: 256,
	}
}

// Load builds a Config. A missing YAML file or .env file is not an error;
// an unknown key in the YAML file is.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading config file: %w", err)
		default:
			dec := yaml.NewDecoder(bytes.NewReader(data))
			dec.KnownFields(true)
			if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
				return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ADDR":        &c.Addr,
		"DB_PATH":     &c.DBPath,
		"STORAGE_DIR": &c.StorageDir,
		"PUBLIC_URL":  &c.PublicURL,
		"LOG_PATH":    &c.LogPath,
		"ADMIN_EMAIL": &c.AdminEmail,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"ACTIVITY_BUFFER": &c.ActivityBuffer,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}
	return nil
}

// Validate checks that the settings can be used to start the server.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is required")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db_path is required")
	}
	if strings.TrimSpace(c.StorageDir) == "" {
		return errors.New("storage_dir is required")
	}
	if c.ActivityBuffer < 1 {
		return fmt.Errorf("activity_buffer must be positive, got %d", c.ActivityBuffer)
	}
	if c.PublicURL != "" && !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
		return fmt.Errorf("public_url %q must start with http:// or https://", c.PublicURL)
	}
	return nil
}
