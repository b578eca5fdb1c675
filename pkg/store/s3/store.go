// Package s3 provides an object-store folder storage, typically serving the
// infostore (drive) folders.
//
// Each folder is a JSON document in the bucket:
//
//	<prefix><treeID>/folders/<folderID>.json   engine.Record
//	<prefix><treeID>/tombstones/<folderID>     deletion time (RFC 3339)
//
// Transactions stage their writes in memory and upload them on commit.
// Object stores offer no multi-object atomicity, so a commit interrupted by a
// failure can leave part of its writes applied.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/marmos91/dittofolders/pkg/metrics"
	"github.com/marmos91/dittofolders/pkg/store/engine"
)

// ObjectAPI is the subset of the S3 client used by the storage.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config contains the object-store specific options.
type Config struct {
	// Client talks to the object store.
	Client ObjectAPI

	// Bucket holding the folder documents.
	Bucket string

	// KeyPrefix namespaces the keys (e.g. "folders/").
	KeyPrefix string
}

// IDPrefix prefixes the ids generated by the storage so registry scopes
// can route them by prefix.
const IDPrefix = "s3:"

// Backend implements engine.Backend on an S3 bucket.
type Backend struct {
	client ObjectAPI
	bucket string
	prefix string
}

// NewBackend creates a Backend.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("s3 storage: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}
	return &Backend{client: cfg.Client, bucket: cfg.Bucket, prefix: cfg.KeyPrefix}, nil
}

// New creates an object-store storage. Folder ids are "s3:<uuid>" unless
// opts.NewID is set.
func New(opts engine.Options, cfg Config) (*engine.Store, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	if opts.NewID == nil {
		opts.NewID = func() (string, error) {
			return IDPrefix + uuid.NewString(), nil
		}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewStorageMetrics("s3")
	}
	return engine.New(opts, backend)
}

func (b *Backend) folderKey(treeID, id string) string {
	return b.folderPrefix(treeID) + id + ".json"
}

func (b *Backend) folderPrefix(treeID string) string {
	return b.prefix + treeID + "/folders/"
}

func (b *Backend) tombstoneKey(treeID, id string) string {
	return b.tombstonePrefix(treeID) + id
}

func (b *Backend) tombstonePrefix(treeID string) string {
	return b.prefix + treeID + "/tombstones/"
}

// Begin implements engine.Backend.
func (b *Backend) Begin(_ context.Context, modify bool) (engine.Tx, error) {
	return &tx{
		b:      b,
		modify: modify,
		puts:   make(map[string]*staged),
		dels:   make(map[string]*staged),
	}, nil
}

// Close implements engine.Backend.
func (b *Backend) Close() error {
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func (b *Backend) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}

func (b *Backend) putObject(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (b *Backend) deleteObject(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// listKeys returns every key below prefix.
func (b *Backend) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// staged is a pending write of a transaction.
type staged struct {
	treeID    string
	id        string
	rec       *engine.Record
	deletedAt time.Time
}

type tx struct {
	b      *Backend
	modify bool
	done   bool
	puts   map[string]*staged
	dels   map[string]*staged
}

func (t *tx) check(write bool) error {
	if t.done {
		return fmt.Errorf("transaction already terminated")
	}
	if write && !t.modify {
		return fmt.Errorf("write in read-only transaction")
	}
	return nil
}

func (t *tx) Get(ctx context.Context, treeID, id string) (*engine.Record, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	key := t.b.folderKey(treeID, id)
	if _, ok := t.dels[key]; ok {
		return nil, engine.ErrNoRecord
	}
	if s, ok := t.puts[key]; ok {
		return s.rec.Clone(), nil
	}

	data, err := t.b.getObject(ctx, key)
	if isNotFound(err) {
		return nil, engine.ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return engine.DecodeRecord(data)
}

func (t *tx) Put(_ context.Context, treeID string, rec *engine.Record) error {
	if err := t.check(true); err != nil {
		return err
	}
	key := t.b.folderKey(treeID, rec.Folder.ID)
	delete(t.dels, key)
	t.puts[key] = &staged{treeID: treeID, id: rec.Folder.ID, rec: rec.Clone()}
	return nil
}

func (t *tx) Delete(_ context.Context, treeID, id string, deletedAt time.Time) error {
	if err := t.check(true); err != nil {
		return err
	}
	key := t.b.folderKey(treeID, id)
	delete(t.puts, key)
	t.dels[key] = &staged{treeID: treeID, id: id, deletedAt: deletedAt}
	return nil
}

func (t *tx) Scan(ctx context.Context, treeID string) ([]*engine.Record, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	keys, err := t.b.listKeys(ctx, t.b.folderPrefix(treeID))
	if err != nil {
		return nil, err
	}

	var out []*engine.Record
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		if _, ok := t.dels[key]; ok {
			continue
		}
		if _, ok := t.puts[key]; ok {
			continue
		}
		data, err := t.b.getObject(ctx, key)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		rec, err := engine.DecodeRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	for _, s := range t.puts {
		if s.treeID == treeID {
			out = append(out, s.rec.Clone())
		}
	}
	return out, nil
}

func (t *tx) Tombstones(ctx context.Context, treeID string, since time.Time) ([]string, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	prefix := t.b.tombstonePrefix(treeID)
	keys, err := t.b.listKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, key := range keys {
		id := strings.TrimPrefix(key, prefix)
		if _, revived := t.puts[t.b.folderKey(treeID, id)]; revived {
			continue
		}
		data, err := t.b.getObject(ctx, key)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		at, err := time.Parse(time.RFC3339Nano, string(data))
		if err != nil {
			return nil, fmt.Errorf("tombstone %s: %w", key, err)
		}
		if at.After(since) {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, s := range t.dels {
		if s.treeID == treeID && s.deletedAt.After(since) && !seen[s.id] {
			out = append(out, s.id)
		}
	}
	return out, nil
}

func (t *tx) HasTombstone(ctx context.Context, treeID, id string) (bool, error) {
	if err := t.check(false); err != nil {
		return false, err
	}
	key := t.b.folderKey(treeID, id)
	if _, ok := t.dels[key]; ok {
		return true, nil
	}
	if _, ok := t.puts[key]; ok {
		return false, nil
	}

	_, err := t.b.getObject(ctx, t.b.tombstoneKey(treeID, id))
	if isNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// Commit uploads the staged writes. Puts go first so a failed commit never
// loses a folder that was only moved.
func (t *tx) Commit(ctx context.Context) error {
	if err := t.check(false); err != nil {
		return err
	}
	t.done = true

	for _, s := range t.puts {
		data, err := engine.EncodeRecord(s.rec)
		if err != nil {
			return err
		}
		if err := t.b.putObject(ctx, t.b.folderKey(s.treeID, s.id), data, "application/json"); err != nil {
			return err
		}
		if err := t.b.deleteObject(ctx, t.b.tombstoneKey(s.treeID, s.id)); err != nil {
			return err
		}
	}
	for _, s := range t.dels {
		stamp := []byte(s.deletedAt.UTC().Format(time.RFC3339Nano))
		if err := t.b.putObject(ctx, t.b.tombstoneKey(s.treeID, s.id), stamp, "text/plain"); err != nil {
			return err
		}
		if err := t.b.deleteObject(ctx, t.b.folderKey(s.treeID, s.id)); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already terminated")
	}
	t.done = true
	t.puts = nil
	t.dels = nil
	return nil
}
