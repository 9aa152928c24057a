package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	s := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	n, err := s.Upload(ctx, "org/a.txt", strings.NewReader("meter photo"))
	require.NoError(t, err)
	assert.EqualValues(t, 11, n)

	rc, err := s.Download(ctx, "org/a.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "meter photo", string(body))

	require.NoError(t, s.Delete(ctx, "org/a.txt"))
	require.NoError(t, s.Delete(ctx, "org/a.txt"))
	_, err = s.Download(ctx, "org/a.txt")
	assert.Error(t, err)
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	s := NewLocalStorage(t.TempDir())
	_, err := s.Upload(context.Background(), "../outside.txt", strings.NewReader("x"))
	assert.Error(t, err)
	assert.Error(t, s.Delete(context.Background(), "/etc/passwd"))
}
