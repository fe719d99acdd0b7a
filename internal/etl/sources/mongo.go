package sources

import (
	"context"
	"fmt"
	"log"

	"mongocsvexport/internal/dbclient"
	"mongocsvexport/internal/domain"
	"mongocsvexport/internal/etl"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ── MongoDB Source ─────────────────────────────────────────
// Streams documents of one collection in natural order, decoded as ordered
// documents so field order survives into the export.

type mongoSource struct{}

func init() { etl.RegisterSource(&mongoSource{}) }

func (s *mongoSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "mongodb",
		Label: "MongoDB Collection",
		ConfigFields: []etl.ConfigField{
			{Key: "host", Label: "Host", Type: "string", Default: "localhost", Help: "host[:port] or a mongodb:// / mongodb+srv:// URI"},
			{Key: "username", Label: "Username", Type: "string"},
			{Key: "password", Label: "Password", Type: "password"},
			{Key: "database", Label: "Database", Type: "string", Required: true},
			{Key: "collection", Label: "Collection", Type: "string", Required: true},
			{Key: "cond", Label: "Condition", Type: "json", Help: "Extended JSON filter, e.g. {\"_id\": {\"$oid\": \"...\"}}"},
			{Key: "projection", Label: "Projection", Type: "json"},
			{Key: "sort", Label: "Sort", Type: "json"},
			{Key: "limit", Label: "Limit", Type: "string", Help: "Maximum number of documents"},
			{Key: "batchSize", Label: "Batch Size", Type: "string", Default: "500"},
		},
	}
}

func (s *mongoSource) Open(ctx context.Context, cfg etl.SourceConfig) (etl.Cursor, error) {
	filter, err := dbclient.ParseFilter(cfg.String("cond"))
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetBatchSize(int32(cfg.Int("batchSize", 500)))
	limit := int64(cfg.Int("limit", 0))
	if limit > 0 {
		opts.SetLimit(limit)
	}
	if p := cfg.String("projection"); p != "" {
		proj, err := dbclient.ParseFilter(p)
		if err != nil {
			return nil, fmt.Errorf("projection: %w", err)
		}
		opts.SetProjection(proj)
	}
	if srt := cfg.String("sort"); srt != "" {
		sortDoc, err := dbclient.ParseFilter(srt)
		if err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
		opts.SetSort(sortDoc)
	}

	conn := &domain.DatabaseConnection{
		Driver:   domain.DatabaseDriverMongoDB,
		Host:     cfg.String("host"),
		Port:     cfg.Int("port", 0),
		Database: cfg.String("database"),
		Username: cfg.String("username"),
		Password: cfg.String("password"),
	}
	client, dbName, err := dbclient.ConnectMongo(ctx, conn)
	if err != nil {
		return nil, err
	}

	coll := client.Database(dbName).Collection(cfg.String("collection"))
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		dbclient.DisconnectMongo(client)
		return nil, fmt.Errorf("find: %w", err)
	}
	log.Printf("[MONGO] Find on %s.%s filter=%v", dbName, coll.Name(), filter)

	return &mongoCursor{client: client, coll: coll, cursor: cursor, filter: filter, limit: limit}, nil
}

type mongoCursor struct {
	client *mongo.Client
	coll   *mongo.Collection
	cursor *mongo.Cursor
	filter bson.D
	limit  int64

	rec *etl.Map
	err error
}

func (c *mongoCursor) Next(ctx context.Context) bool {
	if c.err != nil || !c.cursor.Next(ctx) {
		return false
	}
	var doc bson.D
	if err := c.cursor.Decode(&doc); err != nil {
		c.err = fmt.Errorf("decode: %w", err)
		return false
	}
	c.rec = etl.MapFromBSON(doc)
	return true
}

func (c *mongoCursor) Record() *etl.Map { return c.rec }

func (c *mongoCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	if err := c.cursor.Err(); err != nil {
		return fmt.Errorf("cursor error: %w", err)
	}
	return nil
}

func (c *mongoCursor) Close(ctx context.Context) error {
	err := c.cursor.Close(ctx)
	dbclient.DisconnectMongo(c.client)
	return err
}

// Count reports the number of matching documents, capped by the limit.
func (c *mongoCursor) Count(ctx context.Context) (int64, error) {
	opts := options.Count()
	if c.limit > 0 {
		opts.SetLimit(c.limit)
	}
	n, err := c.coll.CountDocuments(ctx, c.filter, opts)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
