package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/services"
)

// EnvPrefix prefixes generic environment overrides.
const EnvPrefix = "SLEEPSYNC_"

// envAliases maps conventional variable names to config keys.
var envAliases = map[string]string{
	"FITBIT_CLIENT_ID":       "source.client_id",
	"FITBIT_CLIENT_SECRET":   "source.client_secret",
	"FITBIT_REDIRECT_URI":    "source.redirect_uri",
	"WAKATIME_CLIENT_ID":     "sink.client_id",
	"WAKATIME_CLIENT_SECRET": "sink.client_secret",
	"WAKATIME_REDIRECT_URI":  "sink.redirect_uri",
	"DATABASE_URL":           "database.url",
	"QUEUE_URL":              "queue.url",
}

// Load reads configuration from defaults, the TOML file at path and the
// environment, in increasing priority. An empty path searches
// DefaultPaths; a missing explicit path is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), tomlParser{}); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPaths returns the config files searched when none is given.
func DefaultPaths() []string {
	paths := []string{"sleepsync.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".sleepsync", "config.toml"))
	}
	return paths
}

func findConfigFile() string {
	for _, p := range DefaultPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envKey maps an environment variable to a config key, or "" to ignore it.
//
//	FITBIT_CLIENT_ID             -> source.client_id
//	SLEEPSYNC_SYNC_IMPORT_MONTHS -> sync.import_months
func envKey(name string) string {
	if key, ok := envAliases[name]; ok {
		return key
	}
	if !strings.HasPrefix(name, EnvPrefix) {
		return ""
	}
	section, key, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return section + "." + key
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, the cron expression and the time zone.
func (c *Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q check", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}
	if err := services.ValidateSchedule(c.Scheduler.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.schedule: %w", err))
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: invalid configuration: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// tomlParser adapts go-toml to koanf.Parser.
type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	out := map[string]any{}
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]any) ([]byte, error) {
	return toml.Marshal(m)
}
