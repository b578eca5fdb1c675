package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUsesYAMLNames(t *testing.T) {
	data, err := generate()
	require.NoError(t, err)

	var schema struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, "dittofolders configuration", schema.Title)
	for _, key := range []string{"logging", "server", "performer", "trees", "storages", "metrics"} {
		assert.Contains(t, schema.Properties, key)
	}
	assert.Contains(t, string(data), "worker_pool_size")
	assert.Contains(t, string(data), "catch_all")
}
