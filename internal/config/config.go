// Package config loads and validates the daemon configuration file: a
// strict TOML document naming the script search path and the
// cron-scheduled jobs to run. Validated with
// github.com/go-playground/validator/v10 struct-tag validation and
// decoded with github.com/pelletier/go-toml/v2's strict mode, which
// rejects unknown keys outright.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/mkforsb/scrapeycat/internal/scripterr"
)

// SupportedConfigVersion is the only config_version this build accepts.
// A missing or unsupported version is fatal.
const SupportedConfigVersion = 1

// Job describes one scheduled script invocation.
type Job struct {
	Name     string            `toml:"name"`
	Script   string            `toml:"script" validate:"required"`
	Args     []string          `toml:"args"`
	Kwargs   map[string]string `toml:"kwargs"`
	Schedule string            `toml:"schedule" validate:"required"`
	Dedup    bool              `toml:"dedup"`
}

// Suite is a named grouping of jobs; it has no runtime semantics beyond
// organisation.
type Suite struct {
	Jobs []Job `toml:"jobs"`
}

// Config is the decoded, validated, environment-expanded daemon
// configuration.
type Config struct {
	ConfigVersion int               `toml:"config_version"`
	ScriptDirs    []string          `toml:"script_dirs"`
	ScriptNames   []string          `toml:"script_names"`
	Suites        map[string]Suite  `toml:"suites"`
}

// Load reads, strictly decodes, and validates the config file at path.
// Unknown top-level or per-job keys, a missing/unsupported
// config_version, or a missing script/schedule on any job are all fatal
// ConfigError failures.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w: %w", path, scripterr.ErrConfig, err)
	}

	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w: %w", path, scripterr.ErrConfig, err)
	}

	if cfg.ConfigVersion != SupportedConfigVersion {
		return nil, fmt.Errorf("config_version %d unsupported (only %d): %w",
			cfg.ConfigVersion, SupportedConfigVersion, scripterr.ErrConfig)
	}

	if err := validateJobs(&cfg); err != nil {
		return nil, err
	}

	cfg.ScriptDirs, err = expandAll(cfg.ScriptDirs)
	if err != nil {
		return nil, err
	}
	cfg.ScriptNames, err = expandAll(cfg.ScriptNames)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateJobs(cfg *Config) error {
	v := validator.New()
	for suiteName, suite := range cfg.Suites {
		for i, job := range suite.Jobs {
			if err := v.Struct(job); err != nil {
				return fmt.Errorf("suites.%s.jobs[%d]: %w: %w", suiteName, i, scripterr.ErrConfig, err)
			}
		}
	}
	return nil
}

// expandAll applies ${VAR} environment expansion to each string,
// failing fast if any referenced variable is unresolvable.
func expandAll(ss []string) ([]string, error) {
	out := make([]string, len(ss))
	for i, s := range ss {
		expanded, err := expandEnv(s)
		if err != nil {
			return nil, err
		}
		out[i] = expanded
	}
	return out, nil
}

// expandEnv replaces every "${VAR}" in s with its environment value,
// failing if any referenced variable is unset. "${NAME}" is the
// script-name placeholder of script_names templates and is left in
// place for the loader to fill in.
func expandEnv(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end >= 0 {
				name := s[i+2 : i+2+end]
				if name == "NAME" {
					b.WriteString(s[i : i+2+end+1])
					i += 2 + end + 1
					continue
				}
				val, ok := os.LookupEnv(name)
				if !ok {
					return "", fmt.Errorf("environment variable %q (referenced in %q) is not set: %w",
						name, s, scripterr.ErrConfig)
				}
				b.WriteString(val)
				i += 2 + end + 1
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String(), nil
}

// jobID returns a stable identifier for a job, used by the daemon to
// label its log lines: "<suite>/<name-or-index>".
func jobID(suite string, index int, name string) string {
	if name != "" {
		return suite + "/" + name
	}
	return suite + "/" + strconv.Itoa(index)
}

// JobID returns the stable identifier for job at index within suite.
func JobID(suite string, index int, job Job) string {
	return jobID(suite, index, job.Name)
}
