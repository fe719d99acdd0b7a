package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
history: runs.db
jobs:
  - name: hotels
    source:
      config:
        host: ${MONGO_HOST:-localhost}
        database: travel
        collection: hotels
        cond:
          stars: {$gte: 4}
    fields: hotel, rooms.name, rooms.price
    output: out/hotels.csv.gz
    null_value: \N
    header: true
    trigger:
      type: schedule
      config: "0 3 * * *"
    timeout: 10m
  - name: dump
    source:
      type: json_file
      config:
        filePath: data/docs.json
    fields:
      - a
      - b.c
    output: "-"
    psql_dump: docs
`)
	cfg, err := Load(path, envOf(map[string]string{"MONGO_HOST": "mongo.internal"}))
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "runs.db"), cfg.History)
	require.Len(t, cfg.Jobs, 2)

	hotels := cfg.Jobs[0]
	assert.Equal(t, "mongodb", hotels.Source.Type)
	assert.Equal(t, "mongo.internal", hotels.Source.Config["host"])
	assert.JSONEq(t, `{"stars": {"$gte": 4}}`, hotels.Source.Config["cond"].(string))
	assert.Equal(t, FieldList{"hotel", "rooms.name", "rooms.price"}, hotels.Fields)
	assert.Equal(t, filepath.Join(dir, "out", "hotels.csv.gz"), hotels.Output)
	assert.Equal(t, `\N`, hotels.NullValue)
	assert.Equal(t, ",", hotels.Delimiter)
	assert.Equal(t, TriggerSchedule, hotels.Trigger.Type)
	assert.Equal(t, 10*time.Minute, hotels.Timeout)

	dump, ok := cfg.Find("dump")
	require.True(t, ok)
	assert.Equal(t, "-", dump.Output)
	assert.Equal(t, filepath.Join(dir, "data", "docs.json"), dump.Source.Config["filePath"])
	assert.Equal(t, FieldList{"a", "b.c"}, dump.Fields)
	assert.Equal(t, TriggerManual, dump.Trigger.Type)
	assert.Equal(t, DefaultTimeout, dump.Timeout)

	opts := dump.CSVOptions()
	assert.Equal(t, ',', opts.Delimiter)
	assert.Equal(t, "docs", opts.PsqlTable)

	_, ok = cfg.Find("other")
	assert.False(t, ok)
}

func TestLoad_EnvDefault(t *testing.T) {
	path := writeConfig(t, `
jobs:
  - name: a
    source: {config: {database: "${DB:-fallback}", collection: c}}
    fields: x
`)
	cfg, err := Load(path, envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.Jobs[0].Source.Config["database"])
}

func TestLoad_AggregatesErrors(t *testing.T) {
	path := writeConfig(t, `
jobs:
  - name: a
    delimiter: ";;"
    limit: -1
    timeout: -5m
    trigger: {type: schedule, config: "not cron"}
  - name: a
    fields: x
    encoding: klingon
    psql_dump: t
    postgres: {dsn: ""}
  - fields: y
    trigger: {type: webhook}
`)
	_, err := Load(path, envOf(nil))
	require.Error(t, err)
	msg := err.Error()

	for _, want := range []string{
		"configuration errors:\n  - ",
		"jobs[0] (a): fields is required",
		"jobs[0] (a): invalid limit: -1",
		"jobs[0] (a): invalid timeout: -5m0s",
		`jobs[0] (a): delimiter must be a single character, got ";;"`,
		`jobs[0] (a): invalid schedule "not cron"`,
		"jobs[1] (a): duplicate job name",
		`jobs[1] (a): unknown encoding "klingon"`,
		"jobs[1] (a): postgres.dsn is required",
		"jobs[1] (a): postgres.table is required",
		"jobs[1] (a): psql_dump and postgres are mutually exclusive",
		"jobs[2]: name is required",
		`jobs[2]: unknown trigger type "webhook"`,
	} {
		assert.Contains(t, msg, want)
	}
}

func TestLoad_FileWatchPath(t *testing.T) {
	path := writeConfig(t, `
jobs:
  - name: w
    source: {type: json_file, config: {filePath: in.json}}
    fields: a
    trigger: {type: file_watch, config: in.json}
`)
	cfg, err := Load(path, envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "in.json"), cfg.Jobs[0].Trigger.Config)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), envOf(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestFieldList(t *testing.T) {
	var doc struct {
		A FieldList `yaml:"a"`
		B FieldList `yaml:"b"`
		C FieldList `yaml:"c"`
		D FieldList `yaml:"d"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: \"x, y.z ,\"\nb: [p, q]\nc: []\nd:\n"), &doc))

	assert.Equal(t, FieldList{"x", "y.z", ""}, doc.A)
	assert.Equal(t, FieldList{"p", "q"}, doc.B)
	assert.NotNil(t, doc.C)
	assert.Empty(t, doc.C)
	assert.Nil(t, doc.D)

	err := yaml.Unmarshal([]byte("a: {k: v}\n"), &doc)
	assert.Error(t, err)
}

func TestSplitFields(t *testing.T) {
	assert.Equal(t, []string{"a", "b.c"}, SplitFields(" a , b.c "))
	assert.Equal(t, []string{""}, SplitFields(""))
}

func TestValidateJob_Delimiters(t *testing.T) {
	for _, d := range []string{`"`, "\n"} {
		j := Job{Fields: FieldList{"a"}, Delimiter: d}
		j.ApplyDefaults()
		assert.Contains(t, ValidateJob(&j), fmt.Sprintf("invalid delimiter %q", d))
	}
	j := Job{Fields: FieldList{"a"}, Delimiter: "\t"}
	j.ApplyDefaults()
	assert.Empty(t, ValidateJob(&j))
}

func TestApplyDefaults_NoTimeout(t *testing.T) {
	j := Job{Fields: FieldList{"a"}}
	j.ApplyDefaults()
	assert.Zero(t, j.Timeout)
	assert.Empty(t, ValidateJob(&j))
}
