package sources

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"mongocsvexport/internal/dbclient"
	"mongocsvexport/internal/domain"
	"mongocsvexport/internal/etl"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ── Database Source ────────────────────────────────────────
// Streams the rows of a SQL query as flat records. Columns listed in
// jsonColumns hold Extended JSON text and are decoded into nested records,
// so they can be expanded like any document.

type databaseSource struct{}

func init() { etl.RegisterSource(&databaseSource{}) }

func (s *databaseSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "database",
		Label: "Database Query",
		ConfigFields: []etl.ConfigField{
			{Key: "driver", Label: "Driver", Type: "select", Required: true, Options: []string{"postgres", "mysql", "sqlite"}},
			{Key: "host", Label: "Host", Type: "string", Required: true, Help: "Hostname, or file path for sqlite"},
			{Key: "port", Label: "Port", Type: "string"},
			{Key: "database", Label: "Database", Type: "string"},
			{Key: "username", Label: "Username", Type: "string"},
			{Key: "password", Label: "Password", Type: "password"},
			{Key: "sslMode", Label: "SSL Mode", Type: "string"},
			{Key: "query", Label: "Query", Type: "string", Required: true},
			{Key: "jsonColumns", Label: "JSON Columns", Type: "string", Help: "Comma separated columns decoded as Extended JSON"},
		},
	}
}

func (s *databaseSource) Open(ctx context.Context, cfg etl.SourceConfig) (etl.Cursor, error) {
	conn := &domain.DatabaseConnection{
		Driver:   domain.DatabaseDriver(cfg.String("driver")),
		Host:     cfg.String("host"),
		Port:     cfg.Int("port", 0),
		Database: cfg.String("database"),
		Username: cfg.String("username"),
		Password: cfg.String("password"),
		SSLMode:  cfg.String("sslMode"),
	}
	db, err := dbclient.OpenSQL(ctx, conn)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, cfg.String("query"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("query: %w", err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		db.Close()
		return nil, fmt.Errorf("columns: %w", err)
	}

	jsonCols := map[string]bool{}
	for _, c := range cfg.Strings("jsonColumns") {
		jsonCols[c] = true
	}
	return &rowCursor{db: db, rows: rows, columns: cols, jsonCols: jsonCols}, nil
}

type rowCursor struct {
	db       *sql.DB
	rows     *sql.Rows
	columns  []string
	jsonCols map[string]bool

	rec *etl.Map
	err error
}

func (c *rowCursor) Next(ctx context.Context) bool {
	if c.err != nil || ctx.Err() != nil || !c.rows.Next() {
		return false
	}
	values, err := dbclient.ScanValues(c.rows, len(c.columns))
	if err != nil {
		c.err = err
		return false
	}

	rec := etl.NewMap()
	for i, col := range c.columns {
		v := values[i]
		if text, ok := v.(string); ok && c.jsonCols[col] {
			decoded, err := decodeJSONColumn(text)
			if err != nil {
				c.err = fmt.Errorf("column %s: %w", col, err)
				return false
			}
			rec.Set(col, decoded)
			continue
		}
		rec.Set(col, etl.ValueOf(v))
	}
	c.rec = rec
	return true
}

// decodeJSONColumn parses a document or array held in a text column.
func decodeJSONColumn(text string) (etl.Value, error) {
	if strings.TrimSpace(text) == "" {
		return etl.Scalar(nil), nil
	}
	// Wrapping lets arrays and documents share one parse path.
	var wrapper bson.D
	if err := bson.UnmarshalExtJSON([]byte(`{"v":`+text+`}`), false, &wrapper); err != nil {
		return etl.Value{}, fmt.Errorf("parse json: %w", err)
	}
	return etl.ValueOf(wrapper[0].Value), nil
}

func (c *rowCursor) Record() *etl.Map { return c.rec }

func (c *rowCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	if err := c.rows.Err(); err != nil {
		return fmt.Errorf("iterate: %w", err)
	}
	return nil
}

func (c *rowCursor) Close(context.Context) error {
	c.rows.Close()
	return c.db.Close()
}
