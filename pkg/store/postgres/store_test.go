package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBackend_RejectsUnsafePrefix(t *testing.T) {
	for _, prefix := range []string{"dev;", "a b", "x\"y", "drop table--"} {
		_, err := NewBackend(context.Background(), nil, prefix)
		assert.Error(t, err, prefix)
	}
}
