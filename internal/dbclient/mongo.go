package dbclient

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"mongocsvexport/internal/domain"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoURI builds the connection URI and resolves the database name.
// Host may be a bare hostname, host:port, or a full mongodb:// or
// mongodb+srv:// connection string.
func MongoURI(conn *domain.DatabaseConnection) (uri, dbName string) {
	host := strings.TrimSpace(conn.Host)
	if host == "" {
		host = "localhost"
	}

	if strings.HasPrefix(host, "mongodb+srv://") || strings.HasPrefix(host, "mongodb://") {
		uri = host
		// Atlas connection strings ship with a password placeholder.
		if conn.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", url.QueryEscape(conn.Password))
			uri = strings.ReplaceAll(uri, "<db_password>", url.QueryEscape(conn.Password))
		}
	} else {
		if !strings.Contains(host, ":") {
			port := conn.Port
			if port == 0 {
				port = 27017
			}
			host = fmt.Sprintf("%s:%d", host, port)
		}
		if conn.Username != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s",
				url.QueryEscape(conn.Username), url.QueryEscape(conn.Password), host)
		} else {
			uri = "mongodb://" + host
		}
		if len(conn.Options) > 0 {
			keys := make([]string, 0, len(conn.Options))
			for k := range conn.Options {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			params := make([]string, 0, len(keys))
			for _, k := range keys {
				params = append(params, url.QueryEscape(k)+"="+url.QueryEscape(conn.Options[k]))
			}
			uri += "/?" + strings.Join(params, "&")
		}
	}

	dbName = conn.Database
	if dbName == "" {
		dbName = databaseFromURI(uri)
	}
	if dbName == "" {
		dbName = "test"
	}
	return uri, dbName
}

// databaseFromURI extracts the path part of user:pass@host/DB?params.
func databaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.LastIndex(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	_, path, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	path, _, _ = strings.Cut(path, "?")
	return path
}

// ConnectMongo connects to MongoDB and verifies the server is reachable.
// The caller must Disconnect the returned client.
func ConnectMongo(ctx context.Context, conn *domain.DatabaseConnection) (*mongo.Client, string, error) {
	uri, dbName := MongoURI(conn)

	logURI := uri
	if conn.Password != "" {
		logURI = strings.ReplaceAll(logURI, url.QueryEscape(conn.Password), "***")
	}
	log.Printf("[MONGO] Connecting with URI: %s (database %s)", logURI, dbName)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, "", fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		DisconnectMongo(client)
		return nil, "", fmt.Errorf("ping mongo: %w", err)
	}
	return client, dbName, nil
}

// DisconnectMongo closes the client with a bounded timeout.
func DisconnectMongo(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Printf("[MONGO] Disconnect: %v", err)
	}
}

// legacyDate matches {"$date": 1399583520000} and {"$date": "1399583520000"},
// the millisecond forms accepted by older shells and tools.
var legacyDate = regexp.MustCompile(`"\$date"\s*:\s*(?:(-?\d+)|"(-?\d+)")`)

// ParseFilter parses a query condition written in MongoDB Extended JSON
// ($oid, $date, $numberLong, ...) into an ordered filter document.
// An empty condition matches everything.
func ParseFilter(cond string) (bson.D, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return bson.D{}, nil
	}
	cond = legacyDate.ReplaceAllString(cond, `"$$date":{"$$numberLong":"${1}${2}"}`)

	var filter bson.D
	if err := bson.UnmarshalExtJSON([]byte(cond), false, &filter); err != nil {
		return nil, fmt.Errorf("parse condition: %w", err)
	}
	return filter, nil
}
