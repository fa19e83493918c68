package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchToFile_Downloads(t *testing.T) {
	content := []byte("Hello, World!")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "test.txt")
	client := NewHTTPClient(nil)

	outcome, err := FetchToFile(context.Background(), client, server.URL, dest, "", 0)
	require.NoError(t, err)
	require.Equal(t, Downloaded, outcome)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, content, data)
}

func TestFetchToFile_SkipsWhenHashMatches(t *testing.T) {
	content := []byte("Test content for hashing")
	sum := sha1.Sum(content)
	hash := hex.EncodeToString(sum[:])

	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write(content)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "hashed.txt")
	client := NewHTTPClient(nil)

	_, err := FetchToFile(context.Background(), client, server.URL, dest, hash, int64(len(content)))
	require.NoError(t, err)
	require.Equal(t, 1, hits)

	outcome, err := FetchToFile(context.Background(), client, server.URL, dest, hash, int64(len(content)))
	require.NoError(t, err)
	require.Equal(t, Skipped, outcome)
	require.Equal(t, 1, hits, "second fetch should not re-request the server")
}

func TestFetchToFile_HashMismatchFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("unexpected content"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "mismatch.txt")
	client := NewHTTPClient(nil)

	outcome, err := FetchToFile(context.Background(), client, server.URL, dest, "deadbeef", 0)
	require.Error(t, err)
	require.Equal(t, Failed, outcome)

	_, statErr := os.Stat(dest)
	require.True(t, os.IsNotExist(statErr))
}
