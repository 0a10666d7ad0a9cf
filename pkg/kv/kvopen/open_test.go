package kvopen_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd/transferd/pkg/kv/filekv"
	"github.com/transferd/transferd/pkg/kv/kvopen"
	"github.com/transferd/transferd/pkg/kv/memkv"
)

func TestOpenMemory(t *testing.T) {
	b, err := kvopen.Open("memory://")
	require.NoError(t, err)
	defer b.Close(context.Background())
	assert.IsType(t, &memkv.Backend{}, b)
}

func TestOpenDefaultsToMemory(t *testing.T) {
	b, err := kvopen.Open("")
	require.NoError(t, err)
	defer b.Close(context.Background())
	assert.IsType(t, &memkv.Backend{}, b)
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	b, err := kvopen.Open("file://" + dir)
	require.NoError(t, err)
	defer b.Close(context.Background())
	assert.IsType(t, &filekv.Backend{}, b)
}

func TestOpenUnsupportedScheme(t *testing.T) {
	_, err := kvopen.Open("s3://bucket")
	assert.Error(t, err)
}
