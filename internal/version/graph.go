package version

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"

	"github.com/quasar/mc-launch/internal/errs"
	"github.com/quasar/mc-launch/internal/store"
)

const ManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest_v2.json"

// Graph loads version descriptors from the content store or the
// official manifest, and flattens inheritsFrom chains into a single
// launchable descriptor.
type Graph struct {
	store    *store.Store
	client   *http.Client
	log      *logrus.Entry
	manifest *Manifest
}

// NewGraph builds a Graph rooted at s, using client for manifest and
// version-JSON fetches.
func NewGraph(s *store.Store, client *http.Client, log *logrus.Entry) *Graph {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Graph{store: s, client: client, log: log.WithField("component", "version")}
}

// Manifest fetches the official version manifest once and caches it on
// the Graph for every later call.
func (g *Graph) Manifest(ctx context.Context) (*Manifest, error) {
	if g.manifest != nil {
		return g.manifest, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ManifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building manifest request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &errs.NetworkError{URL: ManifestURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &errs.NetworkError{URL: ManifestURL, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var m Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding version manifest: %w", err)
	}
	g.manifest = &m
	g.log.WithField("count", len(m.Versions)).Debug("fetched official version manifest")
	return &m, nil
}

// FindInManifest looks an id up in the official manifest.
func (g *Graph) FindInManifest(ctx context.Context, id string) (*ManifestEntry, error) {
	m, err := g.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	for i := range m.Versions {
		if m.Versions[i].ID == id {
			return &m.Versions[i], nil
		}
	}
	return nil, &errs.VersionNotFound{ID: id}
}

// Load returns the raw (unflattened) descriptor for id, reading it
// from the content store if present and otherwise fetching it from
// the official manifest and caching it to disk.
func (g *Graph) Load(ctx context.Context, id string) (*Descriptor, error) {
	path := g.store.VersionDescriptorPath(id)
	if data, err := os.ReadFile(path); err == nil {
		var d Descriptor
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, &errs.MalformedDescriptor{ID: id, Err: err}
		}
		return &d, nil
	}

	entry, err := g.FindInManifest(ctx, id)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building version request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &errs.NetworkError{URL: entry.URL, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &errs.NetworkError{URL: entry.URL, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading version json: %w", err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, &errs.MalformedDescriptor{ID: id, Err: err}
	}

	if err := os.MkdirAll(g.store.VersionDir(id), 0o755); err == nil {
		_ = os.WriteFile(path, data, 0o644)
	}

	return &d, nil
}

// Flattened is the merged result of walking an inheritsFrom chain.
type Flattened struct {
	ID          string
	Type        Type
	MainClass   string
	Assets      string
	AssetIndex  *AssetIndexRef
	Downloads   Downloads
	Libraries   []Library
	Arguments   *Arguments
	LegacyArgs  string
	JavaVersion JavaVersionReq
	Chain       []string // root-first list of ids that contributed
}

// Flatten walks id's inheritsFrom chain to the root and merges
// children over parents per the content-store invariants: lists
// concatenate parent-then-child, scalars are overridden by the
// child-most descriptor that sets them, and duplicate libraries
// (same group:artifact[:classifier]) keep only their child-most
// value, at the position of their first occurrence in the merged
// list.
func (g *Graph) Flatten(ctx context.Context, id string) (*Flattened, error) {
	chain, err := g.loadChain(ctx, id)
	if err != nil {
		return nil, err
	}

	f := &Flattened{ID: id}
	var libOrder []string
	libIndex := map[string]int{}
	var mergedLibs []Library

	for _, d := range chain {
		f.Chain = append(f.Chain, d.ID)

		if d.MainClass != "" {
			f.MainClass = d.MainClass
		}
		if d.Assets != "" {
			f.Assets = d.Assets
		}
		if d.AssetIndex != nil {
			f.AssetIndex = d.AssetIndex
		}
		if d.Downloads.Client != nil {
			f.Downloads.Client = d.Downloads.Client
		}
		if d.Downloads.Server != nil {
			f.Downloads.Server = d.Downloads.Server
		}
		if d.JavaVersion.MajorVersion != 0 {
			f.JavaVersion = d.JavaVersion
		}
		if d.Type != "" {
			f.Type = d.Type
		}
		if d.MinecraftArguments != "" {
			f.LegacyArgs = d.MinecraftArguments
		}
		if d.Arguments != nil {
			if f.Arguments == nil {
				f.Arguments = &Arguments{}
			}
			f.Arguments.JVM = append(f.Arguments.JVM, d.Arguments.JVM...)
			f.Arguments.Game = append(f.Arguments.Game, d.Arguments.Game...)
		}

		for _, lib := range d.Libraries {
			key := libraryKey(lib.Name)
			if i, ok := libIndex[key]; ok {
				mergedLibs[i] = lib
				continue
			}
			libIndex[key] = len(mergedLibs)
			libOrder = append(libOrder, key)
			mergedLibs = append(mergedLibs, lib)
		}
	}

	f.Libraries = mergedLibs

	if f.MainClass == "" {
		return nil, &errs.MalformedDescriptor{ID: id, Err: fmt.Errorf("no mainClass in chain %v", f.Chain)}
	}

	return f, nil
}

// loadChain returns the descriptors from root to id (inclusive),
// detecting cycles along the way.
func (g *Graph) loadChain(ctx context.Context, id string) ([]*Descriptor, error) {
	visited := map[string]bool{}
	var leafFirst []*Descriptor

	cur := id
	for cur != "" {
		if visited[cur] {
			chain := make([]string, 0, len(leafFirst)+1)
			for _, d := range leafFirst {
				chain = append(chain, d.ID)
			}
			chain = append(chain, cur)
			return nil, &errs.CyclicInheritance{Chain: chain}
		}
		visited[cur] = true

		d, err := g.Load(ctx, cur)
		if err != nil {
			return nil, err
		}
		leafFirst = append(leafFirst, d)
		cur = d.InheritsFrom
	}

	rootFirst := make([]*Descriptor, len(leafFirst))
	for i, d := range leafFirst {
		rootFirst[len(leafFirst)-1-i] = d
	}
	return rootFirst, nil
}

// libraryKey is the dedup key "group:artifact[:classifier]" (the
// version component is deliberately excluded so a child's library
// always supersedes its parent's, even on a version bump).
func libraryKey(name string) string {
	parts := splitN(name, ':', 4)
	if len(parts) < 2 {
		return name
	}
	key := parts[0] + ":" + parts[1]
	if len(parts) > 3 {
		key += ":" + parts[3]
	}
	return key
}

func splitN(s string, sep byte, n int) []string {
	var out []string
	start := 0
	for i := 0; i < len(s) && len(out) < n-1; i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// IsAtLeast reports whether a release id's semantic version is at
// least atLeast. Ids that don't parse as semver (old alpha/beta
// versions, snapshots) report false.
func IsAtLeast(id string, atLeast *semver.Version) bool {
	v, err := semver.NewVersion(id)
	if err != nil {
		return false
	}
	return !v.LessThan(atLeast)
}
