// Package mongo provides a folder storage on MongoDB.
//
// Each operation that opens a transaction owns a client session; the session
// context travels in the operation's StorageParameters. Transactions need a
// replica set or a sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/metrics"
	"github.com/marmos91/dittofolders/pkg/store/engine"
)

// Config contains the MongoDB-specific storage options.
type Config struct {
	// URI is the connection string (mongodb://host:27017/?replicaSet=rs0).
	URI string `mapstructure:"uri" validate:"required"`

	// Database holds the folder collections.
	Database string `mapstructure:"database" validate:"required"`

	// CollectionPrefix namespaces the collections (e.g. "dev_").
	CollectionPrefix string `mapstructure:"collection_prefix"`

	// NodeID is the snowflake node used to generate folder ids (0-1023).
	NodeID int64 `mapstructure:"node_id" validate:"gte=0,lte=1023"`
}

// folderDoc is the stored form of a record. The record itself is kept as
// JSON so timestamps keep nanosecond precision.
type folderDoc struct {
	ID       string `bson:"_id"`
	TreeID   string `bson:"tree_id"`
	FolderID string `bson:"folder_id"`
	Data     []byte `bson:"data"`
}

type tombstoneDoc struct {
	ID        string `bson:"_id"`
	TreeID    string `bson:"tree_id"`
	FolderID  string `bson:"folder_id"`
	DeletedAt int64  `bson:"deleted_at"`
}

func docID(treeID, folderID string) string {
	return treeID + "/" + folderID
}

// NewClient connects to MongoDB and verifies the connection.
func NewClient(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// Backend implements engine.Backend on a MongoDB database.
type Backend struct {
	client     *mongo.Client
	folders    *mongo.Collection
	tombstones *mongo.Collection
	owned      bool
}

// NewBackend prepares the collections and their indexes.
func NewBackend(ctx context.Context, client *mongo.Client, database, prefix string) (*Backend, error) {
	if client == nil {
		return nil, fmt.Errorf("mongo storage: client is required")
	}
	db := client.Database(database)
	b := &Backend{
		client:     client,
		folders:    db.Collection(prefix + "folders"),
		tombstones: db.Collection(prefix + "folder_tombstones"),
	}

	byTree := mongo.IndexModel{Keys: bson.D{{Key: "tree_id", Value: 1}}}
	if _, err := b.folders.Indexes().CreateOne(ctx, byTree); err != nil {
		return nil, fmt.Errorf("create folder index: %w", err)
	}
	byDeletion := mongo.IndexModel{Keys: bson.D{{Key: "tree_id", Value: 1}, {Key: "deleted_at", Value: 1}}}
	if _, err := b.tombstones.Indexes().CreateOne(ctx, byDeletion); err != nil {
		return nil, fmt.Errorf("create tombstone index: %w", err)
	}
	return b, nil
}

// New connects to MongoDB and returns a storage on top of it. Folder ids
// are snowflake ids unless opts.NewID is set.
func New(ctx context.Context, opts engine.Options, cfg Config) (*engine.Store, error) {
	if opts.NewID == nil {
		node, err := snowflake.NewNode(cfg.NodeID)
		if err != nil {
			return nil, fmt.Errorf("mongo: snowflake node: %w", err)
		}
		opts.NewID = func() (string, error) {
			return node.Generate().String(), nil
		}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewStorageMetrics("mongo")
	}

	client, err := NewClient(ctx, cfg.URI)
	if err != nil {
		return nil, err
	}
	backend, err := NewBackend(ctx, client, cfg.Database, cfg.CollectionPrefix)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	backend.owned = true

	store, err := engine.New(opts, backend)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

// Begin implements engine.Backend. Read-only operations also run in a
// transaction so that they observe a single snapshot.
func (b *Backend) Begin(ctx context.Context, _ bool) (engine.Tx, error) {
	sess, err := b.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if err := sess.StartTransaction(); err != nil {
		sess.EndSession(ctx)
		return nil, fmt.Errorf("start transaction: %w", err)
	}
	return &tx{b: b, sess: sess}, nil
}

// Close implements engine.Backend. The client is only disconnected when the
// backend created it.
func (b *Backend) Close() error {
	if !b.owned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return b.client.Disconnect(ctx)
}

type tx struct {
	b    *Backend
	sess *mongo.Session
}

// sc binds ctx to the transaction's session.
func (t *tx) sc(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, t.sess)
}

func (t *tx) Get(ctx context.Context, treeID, id string) (*engine.Record, error) {
	var doc folderDoc
	err := t.b.folders.FindOne(t.sc(ctx), bson.M{"_id": docID(treeID, id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, engine.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return engine.DecodeRecord(doc.Data)
}

func (t *tx) Put(ctx context.Context, treeID string, rec *engine.Record) error {
	data, err := engine.EncodeRecord(rec)
	if err != nil {
		return err
	}
	key := docID(treeID, rec.Folder.ID)
	doc := folderDoc{ID: key, TreeID: treeID, FolderID: rec.Folder.ID, Data: data}
	if _, err := t.b.folders.ReplaceOne(t.sc(ctx), bson.M{"_id": key}, doc, options.Replace().SetUpsert(true)); err != nil {
		return err
	}
	_, err = t.b.tombstones.DeleteOne(t.sc(ctx), bson.M{"_id": key})
	return err
}

func (t *tx) Delete(ctx context.Context, treeID, id string, deletedAt time.Time) error {
	key := docID(treeID, id)
	if _, err := t.b.folders.DeleteOne(t.sc(ctx), bson.M{"_id": key}); err != nil {
		return err
	}
	doc := tombstoneDoc{ID: key, TreeID: treeID, FolderID: id, DeletedAt: deletedAt.UnixNano()}
	_, err := t.b.tombstones.ReplaceOne(t.sc(ctx), bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (t *tx) Scan(ctx context.Context, treeID string) ([]*engine.Record, error) {
	cursor, err := t.b.folders.Find(t.sc(ctx), bson.M{"tree_id": treeID})
	if err != nil {
		return nil, err
	}
	var docs []folderDoc
	if err := cursor.All(t.sc(ctx), &docs); err != nil {
		return nil, err
	}

	out := make([]*engine.Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := engine.DecodeRecord(doc.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (t *tx) Tombstones(ctx context.Context, treeID string, since time.Time) ([]string, error) {
	filter := bson.M{"tree_id": treeID, "deleted_at": bson.M{"$gt": since.UnixNano()}}
	cursor, err := t.b.tombstones.Find(t.sc(ctx), filter)
	if err != nil {
		return nil, err
	}
	var docs []tombstoneDoc
	if err := cursor.All(t.sc(ctx), &docs); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.FolderID)
	}
	return ids, nil
}

func (t *tx) HasTombstone(ctx context.Context, treeID, id string) (bool, error) {
	n, err := t.b.tombstones.CountDocuments(t.sc(ctx), bson.M{"_id": docID(treeID, id)})
	return n > 0, err
}

func (t *tx) Commit(ctx context.Context) error {
	defer t.sess.EndSession(ctx)
	if err := t.sess.CommitTransaction(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	defer t.sess.EndSession(ctx)
	if err := t.sess.AbortTransaction(ctx); err != nil {
		logger.Warn("mongo: abort transaction failed: %v", err)
		return err
	}
	return nil
}
