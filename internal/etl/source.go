package etl

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ── Source ──────────────────────────────────────────────────
// A Source opens a forward-only cursor over records in an external system.
// Implementations live in etl/sources/, one file per source type.

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// String returns the string value stored under key, or "".
func (c SourceConfig) String(key string) string {
	switch v := c[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the integer stored under key, or def when absent or invalid.
// YAML and JSON decoding produce different numeric types, all accepted here.
func (c SourceConfig) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Strings returns a list stored under key, either as a sequence or as a
// comma separated string.
func (c SourceConfig) Strings(key string) []string {
	var out []string
	switch v := c[key].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
	case string:
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// ConfigField describes a single configuration input for a source.
type ConfigField struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Type     string   `json:"type"` // "string" | "select" | "password" | "file" | "json"
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"` // for "select" type
	Default  string   `json:"default,omitempty"`
	Help     string   `json:"help,omitempty"`
}

// SourceSpec describes a source type: its label and config fields.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Validate checks that every required config field is present.
func (s SourceSpec) Validate(cfg SourceConfig) error {
	var missing []string
	for _, f := range s.ConfigFields {
		if f.Required && cfg.String(f.Key) == "" {
			missing = append(missing, f.Key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s source: missing %s", s.Type, strings.Join(missing, ", "))
	}
	return nil
}

// Source is the interface every record source must implement.
type Source interface {
	// Spec returns metadata about this source type.
	Spec() SourceSpec

	// Open starts reading. The caller must Close the returned cursor.
	Open(ctx context.Context, cfg SourceConfig) (Cursor, error)
}

// Cursor iterates over records one at a time.
type Cursor interface {
	// Next advances to the next record. It returns false at the end of the
	// input or on error; check Err afterwards.
	Next(ctx context.Context) bool

	// Record returns the current record. Only valid after Next returned true.
	Record() *Map

	Err() error
	Close(ctx context.Context) error
}

// Counter is implemented by cursors that can report how many records they
// will produce, used for progress display.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// ── Source Registry ────────────────────────────────────────
// Compile-time registration via init() in each source file.

var (
	registryMu sync.RWMutex
	registry   = map[string]Source{}
)

// RegisterSource registers a source by its spec type.
// Called from init() in each source implementation file.
func RegisterSource(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Spec().Type] = s
}

// GetSource returns a registered source by type, or an error if not found.
func GetSource(typ string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	return s, nil
}

// ListSources returns the specs of all registered sources, sorted by type.
func ListSources() []SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]SourceSpec, 0, len(registry))
	for _, s := range registry {
		specs = append(specs, s.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}

// OpenSource resolves a registered source, validates cfg and opens a cursor.
func OpenSource(ctx context.Context, typ string, cfg SourceConfig) (Cursor, error) {
	src, err := GetSource(typ)
	if err != nil {
		return nil, err
	}
	if err := src.Spec().Validate(cfg); err != nil {
		return nil, err
	}
	return src.Open(ctx, cfg)
}

// ── Slice Cursor ───────────────────────────────────────────

// SliceCursor serves records from memory. Used for previews and tests.
type SliceCursor struct {
	records []*Map
	pos     int
}

// NewSliceCursor returns a cursor over records, in order.
func NewSliceCursor(records ...*Map) *SliceCursor {
	return &SliceCursor{records: records, pos: -1}
}

func (c *SliceCursor) Next(ctx context.Context) bool {
	if ctx.Err() != nil || c.pos+1 >= len(c.records) {
		return false
	}
	c.pos++
	return true
}

func (c *SliceCursor) Record() *Map { return c.records[c.pos] }
func (c *SliceCursor) Err() error { return nil }
func (c *SliceCursor) Close(context.Context) error { return nil }

func (c *SliceCursor) Count(context.Context) (int64, error) {
	return int64(len(c.records)), nil
}
