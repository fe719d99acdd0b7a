package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"mongocsvexport/internal/etl"
)

// Config is the job file: a set of named exports and where to keep their
// run history.
type Config struct {
	History string `yaml:"history"` // SQLite file for run logs; empty disables history
	Jobs    []Job  `yaml:"jobs"`

	// BaseDir is the directory of the loaded file; relative paths resolve
	// against it.
	BaseDir string `yaml:"-"`
}

// Job describes one export: where records come from, which fields become
// columns and where rows go.
type Job struct {
	Name      string          `yaml:"name"`
	Source    Source          `yaml:"source"`
	Fields    FieldList       `yaml:"fields"`
	Output    string          `yaml:"output"` // file path, "-" for stdout
	Limit     int             `yaml:"limit"`
	NullValue string          `yaml:"null_value"`
	Delimiter string          `yaml:"delimiter"`
	Header    bool            `yaml:"header"`
	PsqlDump  string          `yaml:"psql_dump"` // table name for COPY framing
	Encoding  string          `yaml:"encoding"`
	Postgres  *PostgresTarget `yaml:"postgres"`
	Trigger   Trigger         `yaml:"trigger"`
	Timeout   time.Duration   `yaml:"timeout"`
}

// Source selects a registered record source and its configuration.
type Source struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

// PostgresTarget loads rows into a table instead of writing text.
type PostgresTarget struct {
	DSN     string   `yaml:"dsn"`
	Table   string   `yaml:"table"`
	Columns []string `yaml:"columns"`
}

// Trigger decides when a job runs in daemon mode.
type Trigger struct {
	Type   string `yaml:"type"`   // "manual" | "schedule" | "file_watch"
	Config string `yaml:"config"` // cron expression or watched file path
}

const (
	TriggerManual    = "manual"
	TriggerSchedule  = "schedule"
	TriggerFileWatch = "file_watch"
)

// DefaultTimeout bounds a jobs-file run that sets no timeout of its own.
// Jobs built from command-line flags run without a deadline unless
// --timeout is given.
const DefaultTimeout = 30 * time.Minute

// FieldList accepts either a YAML sequence or a comma separated string.
type FieldList []string

func (f *FieldList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil
		}
		*f = SplitFields(node.Value)
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		if names == nil {
			names = []string{}
		}
		*f = names
		return nil
	default:
		return fmt.Errorf("line %d: fields must be a list or a comma separated string", node.Line)
	}
}

// SplitFields splits a comma separated field list. Each name is trimmed;
// empty names are kept since they select the whole record.
func SplitFields(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// Defaults returns a Config with default values.
func Defaults() *Config {
	return &Config{}
}

// ApplyDefaults fills unset job settings.
func (j *Job) ApplyDefaults() {
	if j.Source.Type == "" {
		j.Source.Type = "mongodb"
	}
	if j.Source.Config == nil {
		j.Source.Config = map[string]any{}
	}
	if j.Delimiter == "" {
		j.Delimiter = ","
	}
	if j.Trigger.Type == "" {
		j.Trigger.Type = TriggerManual
	}
}

// DelimiterRune returns the single delimiter character.
func (j *Job) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(j.Delimiter)
	return r
}

// CSVOptions returns the text sink settings of the job.
func (j *Job) CSVOptions() etl.CSVOptions {
	return etl.CSVOptions{
		Delimiter: j.DelimiterRune(),
		Header:    j.Header,
		PsqlTable: j.PsqlDump,
		NullValue: j.NullValue,
		Encoding:  j.Encoding,
	}
}

// Find returns the job named name.
func (c *Config) Find(name string) (*Job, bool) {
	for i := range c.Jobs {
		if c.Jobs[i].Name == name {
			return &c.Jobs[i], true
		}
	}
	return nil, false
}
