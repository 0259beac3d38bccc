// Package mongodb implements the MongoDB source query executor. The query
// string is an extended-JSON filter document run as a Find against a
// configured collection. This is a best-effort adapter: nested documents and
// arrays are flattened to their JSON text form.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/vaultforge/vaultforge/internal/engine"
)

// Executor runs filter queries against a MongoDB source collection.
type Executor struct {
	database   string
	collection string
}

// NewExecutor creates a new MongoDB source executor. The database name may be
// empty, in which case the database from the connection URI is used.
func NewExecutor(database, collection string) *Executor {
	return &Executor{database: database, collection: collection}
}

// Execute connects to the MongoDB deployment, runs the filter against the
// configured collection and returns all matching documents as records.
func (e *Executor) Execute(ctx context.Context, connString, query string) ([]engine.Record, error) {
	if e.collection == "" {
		return nil, engine.NewValidationError("", "mongodb source requires a collection name")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(connString))
	if err != nil {
		return nil, engine.NewConnectionError(engine.SourceMongoDB, err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, engine.NewConnectionError(engine.SourceMongoDB, err)
	}

	filter := bson.M{}
	if query != "" && query != "{}" {
		if err := bson.UnmarshalExtJSON([]byte(query), false, &filter); err != nil {
			return nil, engine.NewQueryError(engine.SourceMongoDB, query, fmt.Errorf("error parsing filter document: %v", err))
		}
	}

	dbName := e.database
	if dbName == "" {
		dbName = "admin"
	}

	cursor, err := client.Database(dbName).Collection(e.collection).Find(ctx, filter)
	if err != nil {
		return nil, engine.NewQueryError(engine.SourceMongoDB, query, err)
	}
	defer cursor.Close(ctx)

	var result []engine.Record
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, engine.NewQueryError(engine.SourceMongoDB, query, err)
		}

		record := make(engine.Record, len(doc))
		for key, raw := range doc {
			record[key] = convertValue(raw)
		}
		result = append(result, record)
	}

	if err := cursor.Err(); err != nil {
		return nil, engine.NewQueryError(engine.SourceMongoDB, query, err)
	}

	return result, nil
}

// convertValue maps BSON-native values onto the scalar value union.
func convertValue(raw interface{}) engine.Value {
	switch val := raw.(type) {
	case bson.ObjectID:
		return engine.String(val.Hex())
	case bson.DateTime:
		return engine.String(val.Time().UTC().Format("2006-01-02 15:04:05"))
	case bson.Decimal128:
		return engine.String(val.String())
	case bson.M, bson.D, bson.A:
		if data, err := bson.MarshalExtJSON(val, false, false); err == nil {
			return engine.String(string(data))
		}
		return engine.String(fmt.Sprintf("%v", val))
	default:
		return engine.FromNative(raw)
	}
}
