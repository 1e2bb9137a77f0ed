package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/davin/policyrag/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultConnectTimeout = 10 * time.Second

// MongoConnectionConfig holds configuration for the document store connection.
type MongoConnectionConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// MongoStore is a document-oriented persistence layer over MongoDB. It owns
// its connection explicitly: construct, Connect, use, Disconnect. There is no
// ambient shared client. Connect and Disconnect are idempotent; every other
// method requires a prior Connect and returns ErrNotConnected otherwise.
//
// The store performs no retries. Connectivity failures surface as
// *domain.ConnectionError and the caller decides whether to retry.
type MongoStore struct {
	uri            string
	database       string
	connectTimeout time.Duration

	mu     sync.Mutex
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore creates an unconnected store bound to a URI and database name.
// Parameters:
//   - cfg: connection configuration.
// Returns:
//   - *MongoStore: store instance; call Connect before use.
func NewMongoStore(cfg *MongoConnectionConfig) *MongoStore {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	return &MongoStore{
		uri:            cfg.URI,
		database:       cfg.Database,
		connectTimeout: timeout,
	}
}

// Connect establishes the connection. A no-op if already connected.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - error: *domain.ConnectionError if the server is unreachable.
func (s *MongoStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return &domain.ConnectionError{Err: err}
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return &domain.ConnectionError{Err: err}
	}

	s.client = client
	s.db = client.Database(s.database)
	return nil
}

// Disconnect releases the underlying connection and clears cached handles.
// A no-op if not connected. Callers must ensure this runs on every exit path.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - error: non-nil if closing the connection fails.
func (s *MongoStore) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}

	err := s.client.Disconnect(ctx)
	s.client = nil
	s.db = nil
	if err != nil {
		return &domain.ConnectionError{Err: err}
	}
	return nil
}

// collection returns a handle for the named collection, or ErrNotConnected.
func (s *MongoStore) collection(name string) (*mongo.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, domain.ErrNotConnected
	}
	return s.db.Collection(name), nil
}

// ListCollections returns the names of all collections in the database.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []string: collection names.
//   - error: non-nil if the listing fails.
func (s *MongoStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, domain.ErrNotConnected
	}

	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

// CollectionExists reports whether the named collection exists.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - name: collection name.
// Returns:
//   - bool: true if the collection exists.
//   - error: non-nil if the lookup fails.
func (s *MongoStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	names, err := s.ListCollections(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// CreateCollection creates a new collection. Creating a collection that
// already exists fails with *domain.CollectionError; existence is not
// pre-checked here, the backing store's error is surfaced.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - name: collection name.
// Returns:
//   - error: *domain.CollectionError if creation fails.
func (s *MongoStore) CreateCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return domain.ErrNotConnected
	}

	if err := db.CreateCollection(ctx, name); err != nil {
		return &domain.CollectionError{Collection: name, Err: err}
	}
	return nil
}

// InsertDocument inserts a single document and returns its id in string form.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - collection: target collection name.
//   - doc: document to insert (struct with bson tags or a map).
// Returns:
//   - string: inserted document id.
//   - error: non-nil if the insert fails.
func (s *MongoStore) InsertDocument(ctx context.Context, collection string, doc interface{}) (string, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return "", err
	}

	result, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to insert document into %q: %w", collection, err)
	}
	return idToString(result.InsertedID), nil
}

// InsertDocuments inserts documents in input order (ordered insert) and
// returns their ids, position-matched to the input.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - collection: target collection name.
//   - docs: documents to insert.
// Returns:
//   - []string: inserted ids, one per input document.
//   - error: non-nil if the insert fails.
func (s *MongoStore) InsertDocuments(ctx context.Context, collection string, docs []interface{}) ([]string, error) {
	if len(docs) == 0 {
		return []string{}, nil
	}

	coll, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	result, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return nil, fmt.Errorf("failed to insert %d documents into %q: %w", len(docs), collection, err)
	}

	ids := make([]string, len(result.InsertedIDs))
	for i, id := range result.InsertedIDs {
		ids[i] = idToString(id)
	}
	return ids, nil
}

// FindDocuments returns documents matching a structured filter, up to limit.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - collection: collection to query.
//   - filter: bson filter; empty matches everything.
//   - limit: maximum number of documents to return.
// Returns:
//   - []bson.M: matching documents.
//   - error: non-nil if the query fails.
func (s *MongoStore) FindDocuments(ctx context.Context, collection string, filter bson.M, limit int64) ([]bson.M, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = bson.M{}
	}

	cursor, err := coll.Find(ctx, filter, options.Find().SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode documents from %q: %w", collection, err)
	}
	return results, nil
}

// DeleteDocuments deletes all documents matching the filter. Unconditional:
// no soft-delete, no recovery.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - collection: collection to delete from.
//   - filter: bson filter; empty deletes everything.
// Returns:
//   - int64: number of documents deleted.
//   - error: non-nil if the delete fails.
func (s *MongoStore) DeleteDocuments(ctx context.Context, collection string, filter bson.M) (int64, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	if filter == nil {
		filter = bson.M{}
	}

	result, err := coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents from %q: %w", collection, err)
	}
	return result.DeletedCount, nil
}

// idToString normalizes an inserted id to string form. ObjectIDs become their
// hex representation; anything else falls back to its string formatting.
func idToString(id interface{}) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
