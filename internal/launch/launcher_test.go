package launch

import (
	"archive/zip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/quasar/mc-launch/internal/errs"
	"github.com/quasar/mc-launch/internal/store"
	"github.com/quasar/mc-launch/internal/version"
)

// writeFakeJava installs a trivial "java" script that records its
// working directory in <path>.cwd and its arguments, one per line, in
// <path>.args, then exits with exitCode, standing in for a real JVM so
// Launch can be exercised end to end without a Java installation.
func writeFakeJava(t *testing.T, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake java harness is a POSIX shell script")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "java")
	script := fmt.Sprintf("#!/bin/sh\npwd -P > \"$0.cwd\"\nprintf '%%s\\n' \"$@\" > \"$0.args\"\nexit %d\n", exitCode)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeTestClientJar(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := zip.NewWriter(f)
	ew, err := w.Create("META-INF/MANIFEST.MF")
	require.NoError(t, err)
	_, err = ew.Write([]byte("Manifest-Version: 1.0\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

// newTestServer serves a version descriptor, a tiny client jar, and an
// empty (non-virtual) asset index, all content-addressed by sha1 so
// fetch.FetchToFile's hash verification passes.
func newTestServer(t *testing.T, versionID string) *httptest.Server {
	t.Helper()

	jarDir := t.TempDir()
	jarPath := filepath.Join(jarDir, "client.jar")
	writeTestClientJar(t, jarPath)
	jarBytes, err := os.ReadFile(jarPath)
	require.NoError(t, err)
	jarSHA1 := sha1Hex(jarBytes)

	indexBytes, err := json.Marshal(map[string]any{"objects": map[string]any{}})
	require.NoError(t, err)
	indexSHA1 := sha1Hex(indexBytes)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)

	descriptor := version.Descriptor{
		ID:        versionID,
		Type:      version.TypeRelease,
		MainClass: "net.minecraft.client.main.Main",
		Assets:    "test-assets",
		AssetIndex: &version.AssetIndexRef{
			ID:   "test-assets",
			SHA1: indexSHA1,
			Size: int64(len(indexBytes)),
			URL:  srv.URL + "/assets/index.json",
		},
		Downloads: version.Downloads{
			Client: &version.Artifact{SHA1: jarSHA1, Size: int64(len(jarBytes)), URL: srv.URL + "/client.jar"},
		},
		MinecraftArguments: "--username ${auth_player_name} --version ${version_name} --gameDir ${game_directory}",
		JavaVersion:        version.JavaVersionReq{Component: "jre-legacy", MajorVersion: 8},
	}
	descriptorBytes, err := json.Marshal(descriptor)
	require.NoError(t, err)

	mux.HandleFunc("/version.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(descriptorBytes)
	})
	mux.HandleFunc("/client.jar", func(w http.ResponseWriter, r *http.Request) {
		w.Write(jarBytes)
	})
	mux.HandleFunc("/assets/index.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(indexBytes)
	})

	manifest := version.Manifest{
		Versions: []version.ManifestEntry{{ID: versionID, Type: version.TypeRelease, URL: srv.URL + "/version.json"}},
	}
	manifestBytes, err := json.Marshal(manifest)
	require.NoError(t, err)
	mux.HandleFunc("/mc/game/version_manifest_v2.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(manifestBytes)
	})

	return srv
}

func sha1Hex(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

func newOrchestrator(t *testing.T, gameRoot string, srv *httptest.Server) *Orchestrator {
	t.Helper()
	s := store.New(gameRoot)
	client := srv.Client()
	client.Transport = redirectToServer{srv: srv}
	log := logrus.NewEntry(logrus.New())
	return NewOrchestrator(s, client, log, nil)
}

type redirectToServer struct{ srv *httptest.Server }

func (r redirectToServer) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	u := *clone.URL
	target, _ := http.NewRequest(req.Method, r.srv.URL, nil)
	u.Scheme = target.URL.Scheme
	u.Host = target.URL.Host
	clone.URL = &u
	clone.Host = target.URL.Host
	return http.DefaultTransport.RoundTrip(clone)
}

func TestLaunch_VanillaColdLaunchSpawnsWithLegacyArgs(t *testing.T) {
	srv := newTestServer(t, "1.8.9")
	defer srv.Close()

	javaPath := writeFakeJava(t, 0)
	gameRoot := t.TempDir()
	orch := newOrchestrator(t, gameRoot, srv)

	err := orch.Launch(context.Background(), Options{
		VersionID:         "1.8.9",
		GameRoot:          gameRoot,
		User:              "Steve",
		JavaPath:          javaPath,
		ResolverProcesses: 2,
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(gameRoot, "versions", "1.8.9", "1.8.9.jar"))
	require.NoError(t, err, "client jar should have been fetched")

	args, err := os.ReadFile(javaPath + ".args")
	require.NoError(t, err)
	require.Contains(t, string(args), "net.minecraft.client.main.Main\n--username\nSteve\n--version\n1.8.9\n")
}

func TestLaunch_IsolatedLaunchUsesVersionDirAsCwd(t *testing.T) {
	srv := newTestServer(t, "1.8.9")
	defer srv.Close()

	javaPath := writeFakeJava(t, 0)
	gameRoot := t.TempDir()
	orch := newOrchestrator(t, gameRoot, srv)

	err := orch.Launch(context.Background(), Options{
		VersionID: "1.8.9",
		GameRoot:  gameRoot,
		Isolate:   true,
		User:      "Steve",
		JavaPath:  javaPath,
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(gameRoot, "versions", "1.8.9"))
	require.NoError(t, err)

	cwd, err := os.ReadFile(javaPath + ".cwd")
	require.NoError(t, err)
	wantDir, err := filepath.EvalSymlinks(filepath.Join(gameRoot, "versions", "1.8.9"))
	require.NoError(t, err)
	require.Equal(t, wantDir, strings.TrimSpace(string(cwd)))
}

func TestLaunch_NonZeroExitReturnsChildExit(t *testing.T) {
	srv := newTestServer(t, "1.8.9")
	defer srv.Close()

	javaPath := writeFakeJava(t, 7)
	gameRoot := t.TempDir()
	orch := newOrchestrator(t, gameRoot, srv)

	err := orch.Launch(context.Background(), Options{
		VersionID: "1.8.9",
		GameRoot:  gameRoot,
		User:      "Steve",
		JavaPath:  javaPath,
	})
	require.Error(t, err)

	var exit *errs.ChildExit
	require.ErrorAs(t, err, &exit)
	require.Equal(t, 7, exit.Code)
}

func TestLaunch_RunBeforeFailureDoesNotAbortLaunch(t *testing.T) {
	srv := newTestServer(t, "1.8.9")
	defer srv.Close()

	javaPath := writeFakeJava(t, 0)
	gameRoot := t.TempDir()
	orch := newOrchestrator(t, gameRoot, srv)

	err := orch.Launch(context.Background(), Options{
		VersionID: "1.8.9",
		GameRoot:  gameRoot,
		User:      "Steve",
		JavaPath:  javaPath,
		RunBefore: "exit 1",
	})
	require.NoError(t, err, "a failing run_before must not abort the launch")
}

func TestLaunch_DeleteFilesRemovesMatchingGlobsBeforeSpawn(t *testing.T) {
	srv := newTestServer(t, "1.8.9")
	defer srv.Close()

	javaPath := writeFakeJava(t, 0)
	gameRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(gameRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gameRoot, "stale.log"), []byte("x"), 0o644))

	orch := newOrchestrator(t, gameRoot, srv)

	err := orch.Launch(context.Background(), Options{
		VersionID:   "1.8.9",
		GameRoot:    gameRoot,
		User:        "Steve",
		JavaPath:    javaPath,
		DeleteFiles: []string{"*.log"},
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(gameRoot, "stale.log"))
	require.True(t, os.IsNotExist(err), "matched glob should have been removed before spawn")
}
