// Package java selects or provisions a Java runtime of the major
// version a launch requires: an explicit user path, an already
// installed system JRE, or a download from Mojang's java-runtime
// manifest.
package java

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/quasar/mc-launch/internal/errs"
	"github.com/quasar/mc-launch/internal/fetch"
	"github.com/quasar/mc-launch/internal/store"
)

const javaRuntimeManifestURL = "https://launchermeta.mojang.com/v1/products/java-runtime/2ec0cc96c44e5a76b9c8b7c39df7210883d12871/all.json"

// componentForMajor names the default java-runtime component Mojang
// ships for a given required major version, mirroring the reference
// launcher's fallback when a descriptor's javaVersion.component is
// absent: jre-legacy up to Java 8 (pre-1.17 versions),
// java-runtime-alpha for Java 9-16, java-runtime-gamma for Java 17,
// and java-runtime-delta for anything newer.
func componentForMajor(major int) string {
	switch {
	case major <= 8:
		return "jre-legacy"
	case major <= 16:
		return "java-runtime-alpha"
	case major <= 17:
		return "java-runtime-gamma"
	default:
		return "java-runtime-delta"
	}
}

// runtimeManifestOS names the key java-runtime manifests are keyed by
// for the current host, distinct from the rules package's vocabulary.
func runtimeManifestOS() string {
	switch runtime.GOOS {
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "mac-os-arm64"
		}
		return "mac-os"
	case "windows":
		if runtime.GOARCH == "386" {
			return "windows-x86"
		}
		return "windows-x64"
	default:
		if runtime.GOARCH == "arm64" || runtime.GOARCH == "arm" {
			return "linux-arm64"
		}
		return "linux"
	}
}

// runtimeManifestRoot is the top-level shape of all.json: OS key ->
// component name -> candidate entries (Mojang lists alternates; the
// first is authoritative).
type runtimeManifestRoot map[string]map[string][]runtimeManifestEntry

type runtimeManifestEntry struct {
	Manifest struct {
		SHA1 string `json:"sha1"`
		Size int64  `json:"size"`
		URL  string `json:"url"`
	} `json:"manifest"`
	Version struct {
		Name string `json:"name"`
	} `json:"version"`
}

// fileManifest is the per-OS/arch manifest named by a runtime entry's
// Manifest.URL: a flat map of relative path -> file description.
type fileManifest struct {
	Files map[string]fileEntry `json:"files"`
}

type fileEntry struct {
	Type       string `json:"type"` // "file", "directory", or "link"
	Executable bool   `json:"executable,omitempty"`
	Downloads  *struct {
		Raw struct {
			SHA1 string `json:"sha1"`
			Size int64  `json:"size"`
			URL  string `json:"url"`
		} `json:"raw"`
	} `json:"downloads,omitempty"`
	Target string `json:"target,omitempty"` // symlink target, for type "link"
}

// Provisioner selects or downloads a Java runtime.
type Provisioner struct {
	store       *store.Store
	client      *http.Client
	log         *logrus.Entry
	manifestURL string
}

// NewProvisioner builds a Provisioner rooted at s.
func NewProvisioner(s *store.Store, client *http.Client, log *logrus.Entry) *Provisioner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Provisioner{
		store:       s,
		client:      client,
		log:         log.WithField("component", "java"),
		manifestURL: javaRuntimeManifestURL,
	}
}

// Resolve returns the java executable path for majorVersion. userPath,
// when non-empty, is accepted verbatim. Otherwise an already-installed
// system JRE of a compatible version is preferred; failing that, the
// matching component from Mojang's java-runtime manifest is
// downloaded into the content store.
func (p *Provisioner) Resolve(ctx context.Context, majorVersion int, userPath string) (string, error) {
	if userPath != "" {
		return userPath, nil
	}
	if majorVersion <= 0 {
		majorVersion = 8
	}

	if inst := NewDetector(p.log).FindBest(majorVersion); inst != nil && inst.MajorVersion >= majorVersion {
		p.log.WithField("installation", FormatInstallation(inst)).Debug("using detected system JRE")
		return inst.Path, nil
	}

	path, err := p.download(ctx, majorVersion)
	if err != nil {
		return "", &errs.JavaUnavailable{MajorVersion: majorVersion, Cause: err}
	}
	return path, nil
}

func (p *Provisioner) download(ctx context.Context, majorVersion int) (string, error) {
	component := componentForMajor(majorVersion)

	root, err := p.fetchManifestRoot(ctx)
	if err != nil {
		return "", err
	}

	byComponent, ok := root[runtimeManifestOS()]
	if !ok {
		return "", fmt.Errorf("no java-runtime manifest for host os %s", runtimeManifestOS())
	}
	entries, ok := byComponent[component]
	if !ok || len(entries) == 0 {
		return "", fmt.Errorf("no java-runtime entries for component %s on %s", component, runtimeManifestOS())
	}
	entry := entries[0]

	fm, err := p.fetchFileManifest(ctx, entry.Manifest.URL)
	if err != nil {
		return "", err
	}

	destDir := p.store.JavaRuntimeDir(component, runtimeManifestOS())
	if err := p.materialize(destDir, fm); err != nil {
		return "", err
	}

	p.log.WithFields(logrus.Fields{"component": component, "version": entry.Version.Name}).Info("provisioned java runtime")
	return FindJavaExecutable(destDir)
}

func (p *Provisioner) fetchManifestRoot(ctx context.Context) (runtimeManifestRoot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.manifestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &errs.NetworkError{URL: p.manifestURL, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &errs.NetworkError{URL: p.manifestURL, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var root runtimeManifestRoot
	if err := json.NewDecoder(resp.Body).Decode(&root); err != nil {
		return nil, fmt.Errorf("decoding java-runtime manifest: %w", err)
	}
	return root, nil
}

func (p *Provisioner) fetchFileManifest(ctx context.Context, url string) (*fileManifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &errs.NetworkError{URL: url, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &errs.NetworkError{URL: url, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var fm fileManifest
	if err := json.NewDecoder(resp.Body).Decode(&fm); err != nil {
		return nil, fmt.Errorf("decoding runtime file manifest: %w", err)
	}
	return &fm, nil
}

// FindJavaExecutable locates the java binary within a provisioned
// runtime directory, trying bin/java (Unix) or bin/javaw.exe and
// bin/java.exe (Windows, preferring the windowed launcher).
func FindJavaExecutable(root string) (string, error) {
	var candidates []string
	if runtime.GOOS == "windows" {
		candidates = []string{
			filepath.Join(root, "bin", "javaw.exe"),
			filepath.Join(root, "bin", "java.exe"),
		}
	} else {
		candidates = []string{filepath.Join(root, "bin", "java")}
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}

	var found string
	_ = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil || found != "" || info.IsDir() {
			return nil
		}
		name := filepath.Base(p)
		if name == "java" || name == "java.exe" || name == "javaw.exe" {
			found = p
		}
		return nil
	})
	if found != "" {
		return found, nil
	}

	return "", fmt.Errorf("no java executable found under %s", root)
}

// materialize writes every entry of fm under destDir: regular files
// are downloaded and hash-verified, directories are created, and
// links are recreated as symlinks (falling back to a copy of their
// target file where the host doesn't support symlinks).
func (p *Provisioner) materialize(destDir string, fm *fileManifest) error {
	for relPath, entry := range fm.Files {
		full := filepath.Join(destDir, filepath.FromSlash(relPath))

		switch entry.Type {
		case "directory":
			if err := os.MkdirAll(full, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", relPath, err)
			}
		case "file":
			if entry.Downloads == nil {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return fmt.Errorf("creating parent of %s: %w", relPath, err)
			}
			ctx := context.Background()
			if _, err := fetch.FetchToFile(ctx, p.client, entry.Downloads.Raw.URL, full, entry.Downloads.Raw.SHA1, entry.Downloads.Raw.Size); err != nil {
				return fmt.Errorf("fetching %s: %w", relPath, err)
			}
			if entry.Executable && runtime.GOOS != "windows" {
				if err := os.Chmod(full, 0o755); err != nil {
					return fmt.Errorf("chmod %s: %w", relPath, err)
				}
			}
		case "link":
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return fmt.Errorf("creating parent of %s: %w", relPath, err)
			}
			linkTarget := filepath.FromSlash(entry.Target)
			if err := os.Symlink(linkTarget, full); err != nil {
				// Fall back to copying the resolved target where
				// symlinks aren't supported (some Windows setups).
				src := filepath.Join(destDir, linkTarget)
				if data, readErr := os.ReadFile(src); readErr == nil {
					_ = os.WriteFile(full, data, 0o644)
				}
			}
		}
	}
	return nil
}
