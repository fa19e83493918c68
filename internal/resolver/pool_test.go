package resolver

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

	"github.com/quasar/mc-launch/internal/fetch"
)

func TestPool_ParallelDownloadsAreIndependentOfWorkerCount(t *testing.T) {
	content := []byte("artifact bytes")
	sum := sha1.Sum(content)
	hash := hex.EncodeToString(sum[:])

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	for _, workers := range []int{1, 4, 8} {
		dir := t.TempDir()
		var tasks []Task
		for i := 0; i < 6; i++ {
			tasks = append(tasks, Task{
				Kind:         KindDownload,
				Source:       server.URL,
				Target:       filepath.Join(dir, "f"+string(rune('a'+i))),
				ExpectedSHA1: hash,
				ExpectedSize: int64(len(content)),
				Label:        "f",
			})
		}

		client := fetch.NewHTTPClient(nil)
		pool := New(workers, client, nil)
		result, err := pool.Run(context.Background(), tasks, nil)
		require.NoError(t, err)
		require.Equal(t, 0, result.Failed)
		require.Equal(t, len(tasks), result.Completed)

		for _, task := range tasks {
			got, err := fetch.HashFile(task.Target)
			require.NoError(t, err)
			require.Equal(t, hash, got)
		}
	}
}

func TestPool_AggregatesFailuresWithoutCancelingSiblings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	dir := t.TempDir()
	tasks := []Task{
		{Kind: KindDownload, Source: server.URL + "/missing", Target: filepath.Join(dir, "bad"), Label: "bad"},
		{Kind: KindDownload, Source: server.URL + "/ok", Target: filepath.Join(dir, "good"), Label: "good"},
	}

	client := fetch.NewHTTPClient(nil)
	pool := New(2, client, nil)
	result, err := pool.Run(context.Background(), tasks, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, 1, result.Completed)

	_, statErr := os.Stat(filepath.Join(dir, "good"))
	require.NoError(t, statErr, "sibling task must still complete")
}
