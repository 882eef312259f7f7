package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Options configures the document source connection.
type Options struct {
	// URI is the Mongo connection string. CosmosDB compatibility options
	// (tls, retryWrites=false) are expected to be part of the URI.
	URI string
	// Database is the database name.
	Database string
	// Collection is the collection name.
	Collection string
	// Timeout bounds connection establishment and every fetch operation.
	Timeout time.Duration
}

// Source fetches gateway documents from one collection.
type Source struct {
	// client is the underlying driver client.
	client *mongo.Client
	// collection is the monitored collection handle.
	collection *mongo.Collection
	// timeout bounds individual operations.
	timeout time.Duration
}

// batchLimit caps how many documents one FetchSince call returns.
const batchLimit = 100

// errURIRequired is returned when no connection string is provided.
var errURIRequired = errors.New("mongo URI must be provided")

// Connect establishes the connection and verifies it with a ping.
func Connect(ctx context.Context, opts *Options) (*Source, error) {
	if opts == nil || opts.URI == "" {
		return nil, errURIRequired
	}

	clientOptions := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(opts.Timeout).
		SetServerSelectionTimeout(opts.Timeout)

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect document source: %w", err)
	}

	if err = client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())

		return nil, fmt.Errorf("ping document source: %w", err)
	}

	return &Source{
		client:     client,
		collection: client.Database(opts.Database).Collection(opts.Collection),
		timeout:    opts.Timeout,
	}, nil
}

// Close releases the underlying connection.
func (s *Source) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}

	return s.client.Disconnect(ctx)
}

// FetchLatest returns the most recent document by _id, or nil when the
// collection is empty.
func (s *Source) FetchLatest(ctx context.Context) (Document, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	findOptions := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})

	var raw bson.M

	err := s.collection.FindOne(opCtx, bson.D{}, findOptions).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}

		return nil, fmt.Errorf("fetch latest document: %w", err)
	}

	return Document(raw), nil
}

// LatestCursor returns the _id of the newest document, to start a change-feed
// run from "now" rather than replaying history. Returns the zero ObjectID for
// an empty collection.
func (s *Source) LatestCursor(ctx context.Context) (primitive.ObjectID, error) {
	doc, err := s.FetchLatest(ctx)
	if err != nil || doc == nil {
		return primitive.NilObjectID, err
	}

	if id, ok := doc["_id"].(primitive.ObjectID); ok {
		return id, nil
	}

	return primitive.NilObjectID, nil
}

// FetchSince returns documents inserted after the cursor in insertion order,
// together with the cursor to use for the next call. The CosmosDB Mongo API
// tier used by the gateway does not reliably support change streams, so the
// change feed is emulated with ascending _id batches.
func (s *Source) FetchSince(ctx context.Context, cursor primitive.ObjectID) ([]Document, primitive.ObjectID, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	filter := bson.D{}
	if !cursor.IsZero() {
		filter = bson.D{{Key: "_id", Value: bson.D{{Key: "$gt", Value: cursor}}}}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(batchLimit)

	rows, err := s.collection.Find(opCtx, filter, findOptions)
	if err != nil {
		return nil, cursor, fmt.Errorf("fetch documents since cursor: %w", err)
	}

	defer func() {
		_ = rows.Close(opCtx)
	}()

	var documents []Document

	next := cursor

	for rows.Next(opCtx) {
		var raw bson.M
		if err = rows.Decode(&raw); err != nil {
			return documents, next, fmt.Errorf("decode document: %w", err)
		}

		doc := Document(raw)
		if id, ok := raw["_id"].(primitive.ObjectID); ok {
			next = id
		}

		documents = append(documents, doc)
	}

	if err = rows.Err(); err != nil {
		return documents, next, fmt.Errorf("iterate documents: %w", err)
	}

	return documents, next, nil
}

// Insert writes one document and returns its id. Used by the alarm-sender
// test tool, never by the monitor itself.
func (s *Source) Insert(ctx context.Context, doc bson.M) (string, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	result, err := s.collection.InsertOne(opCtx, doc)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		return id.Hex(), nil
	}

	return fmt.Sprint(result.InsertedID), nil
}

// opContext bounds one operation with the configured timeout.
func (s *Source) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, s.timeout)
}
