//go:build integration

package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/marmos91/dittofolders/pkg/store/engine"
	"github.com/marmos91/dittofolders/pkg/store/storetest"
	"github.com/stretchr/testify/require"
)

// TestMongoStore_Integration runs the conformance suite against MongoDB.
//
// Prerequisites:
//   - DITTOFOLDERS_TEST_MONGO_URI pointing to a replica set
//   - Run with: go test -tags=integration ./pkg/store/mongo/...
//
// To start a single-node replica set:
//
//	docker run --rm -p 27017:27017 mongo:7 --replSet rs0
//	docker exec <id> mongosh --eval 'rs.initiate()'
func TestMongoStore_Integration(t *testing.T) {
	uri := os.Getenv("DITTOFOLDERS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("DITTOFOLDERS_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	database := fmt.Sprintf("dittofolders_test_%d", time.Now().UnixNano())

	client, err := NewClient(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Database(database).Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	testCounter := 0
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T, opts engine.Options) *engine.Store {
			testCounter++
			s, err := New(ctx, opts, Config{
				URI:              uri,
				Database:         database,
				CollectionPrefix: fmt.Sprintf("test_%d_", testCounter),
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
	suite.Run(t)
}
