package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"
)

// Load reads a job file with ENV interpolation, applies defaults, resolves
// relative paths against the file's directory and validates the result.
func Load(path string, getenv func(string) string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.BaseDir = filepath.Dir(absPath)

	cfg.History = cfg.resolve(cfg.History)
	for i := range cfg.Jobs {
		j := &cfg.Jobs[i]
		j.ApplyDefaults()
		if j.Timeout == 0 {
			j.Timeout = DefaultTimeout
		}
		if j.Output != "-" {
			j.Output = cfg.resolve(j.Output)
		}
		if j.Trigger.Type == TriggerFileWatch {
			j.Trigger.Config = cfg.resolve(j.Trigger.Config)
		}
		if err := inlineJSON(j.Source.Config, "cond", "projection", "sort", "headers"); err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if fp, ok := j.Source.Config["filePath"].(string); ok {
			j.Source.Config["filePath"] = cfg.resolve(fp)
		}
		if j.Source.Type == "database" && j.Source.Config["driver"] == "sqlite" {
			if host, ok := j.Source.Config["host"].(string); ok {
				j.Source.Config["host"] = cfg.resolve(host)
			}
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// inlineJSON turns structured YAML values of the given keys into the JSON
// text sources expect, so filters can be written either way.
func inlineJSON(cfg map[string]any, keys ...string) error {
	for _, k := range keys {
		switch v := cfg[k].(type) {
		case map[string]any, []any:
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("source.config.%s: %w", k, err)
			}
			cfg[k] = string(data)
		}
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value := getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

// Validate checks every job and reports all problems at once.
func Validate(cfg *Config) error {
	var errs []string
	seen := map[string]bool{}
	for i := range cfg.Jobs {
		j := &cfg.Jobs[i]
		label := fmt.Sprintf("jobs[%d]", i)
		if j.Name == "" {
			errs = append(errs, label+": name is required")
		} else {
			label = fmt.Sprintf("jobs[%d] (%s)", i, j.Name)
			if seen[j.Name] {
				errs = append(errs, fmt.Sprintf("%s: duplicate job name", label))
			}
			seen[j.Name] = true
		}
		for _, msg := range ValidateJob(j) {
			errs = append(errs, label+": "+msg)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateJob returns the problems of a single job with defaults applied.
func ValidateJob(j *Job) []string {
	var errs []string

	if j.Fields == nil {
		errs = append(errs, "fields is required")
	}
	if j.Limit < 0 {
		errs = append(errs, fmt.Sprintf("invalid limit: %d", j.Limit))
	}
	if j.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("invalid timeout: %s", j.Timeout))
	}
	if utf8.RuneCountInString(j.Delimiter) != 1 {
		errs = append(errs, fmt.Sprintf("delimiter must be a single character, got %q", j.Delimiter))
	} else if r := j.DelimiterRune(); r == '"' || r == '\r' || r == '\n' {
		errs = append(errs, fmt.Sprintf("invalid delimiter %q", j.Delimiter))
	}
	if j.Encoding != "" {
		if _, err := htmlindex.Get(j.Encoding); err != nil {
			errs = append(errs, fmt.Sprintf("unknown encoding %q", j.Encoding))
		}
	}

	if j.Postgres != nil {
		if j.Postgres.DSN == "" {
			errs = append(errs, "postgres.dsn is required")
		}
		if j.Postgres.Table == "" {
			errs = append(errs, "postgres.table is required")
		}
		if j.PsqlDump != "" {
			errs = append(errs, "psql_dump and postgres are mutually exclusive")
		}
	}

	switch j.Trigger.Type {
	case TriggerManual:
	case TriggerSchedule:
		if _, err := cron.ParseStandard(j.Trigger.Config); err != nil {
			errs = append(errs, fmt.Sprintf("invalid schedule %q: %v", j.Trigger.Config, err))
		}
	case TriggerFileWatch:
		if j.Trigger.Config == "" {
			errs = append(errs, "file_watch trigger needs a file path")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown trigger type %q (supported: manual, schedule, file_watch)", j.Trigger.Type))
	}
	return errs
}
