// Package store maps logical game-data coordinates (a library's Maven
// name, an asset hash, a version id) onto deterministic paths under
// the game root, the way the reference launcher lays its content-store
// out on disk.
package store

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Store resolves coordinates against a single game root.
type Store struct {
	Root string
}

// New returns a Store rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

// LibraryPath converts a Maven coordinate (group:artifact:version[:classifier][@ext])
// into its path under libraries/. When artifactPath is non-empty (the
// descriptor's downloads.artifact.path field) it is used verbatim,
// since Mojang's own paths occasionally diverge from the mechanical
// conversion (classifiers with platform suffixes, for instance).
func (s *Store) LibraryPath(name, artifactPath string) string {
	if artifactPath != "" {
		return filepath.Join(s.Root, "libraries", filepath.FromSlash(artifactPath))
	}
	return filepath.Join(s.Root, "libraries", filepath.FromSlash(MavenPath(name)))
}

// MavenPath converts "group:artifact:version[:classifier][@ext]" into
// "group/path/artifact/version/artifact-version[-classifier].ext".
func MavenPath(coord string) string {
	ext := "jar"
	if i := strings.LastIndex(coord, "@"); i >= 0 {
		ext = coord[i+1:]
		coord = coord[:i]
	}

	parts := strings.Split(coord, ":")
	if len(parts) < 3 {
		return coord
	}
	group, artifact, version := parts[0], parts[1], parts[2]
	classifier := ""
	if len(parts) > 3 {
		classifier = parts[3]
	}

	groupPath := strings.ReplaceAll(group, ".", "/")
	filename := fmt.Sprintf("%s-%s", artifact, version)
	if classifier != "" {
		filename += "-" + classifier
	}
	filename += "." + ext

	return strings.Join([]string{groupPath, artifact, version, filename}, "/")
}

// AssetObjectPath returns assets/objects/<xx>/<hash>.
func (s *Store) AssetObjectPath(hash string) string {
	prefix := hash
	if len(prefix) > 2 {
		prefix = hash[:2]
	}
	return filepath.Join(s.Root, "assets", "objects", prefix, hash)
}

// AssetIndexPath returns assets/indexes/<id>.json.
func (s *Store) AssetIndexPath(id string) string {
	return filepath.Join(s.Root, "assets", "indexes", id+".json")
}

// AssetVirtualPath returns assets/virtual/<indexID>/<logicalPath>, used
// for legacy "virtual" asset indexes.
func (s *Store) AssetVirtualPath(indexID, logicalPath string) string {
	return filepath.Join(s.Root, "assets", "virtual", indexID, filepath.FromSlash(logicalPath))
}

// ResourcesPath returns <gameRoot>/resources/<logicalPath>, used for
// map_to_resources indexes.
func (s *Store) ResourcesPath(logicalPath string) string {
	return filepath.Join(s.Root, "resources", filepath.FromSlash(logicalPath))
}

// VersionDir returns versions/<id>/.
func (s *Store) VersionDir(id string) string {
	return filepath.Join(s.Root, "versions", id)
}

// VersionDescriptorPath returns versions/<id>/<id>.json.
func (s *Store) VersionDescriptorPath(id string) string {
	return filepath.Join(s.VersionDir(id), id+".json")
}

// VersionJarPath returns versions/<id>/<id>.jar.
func (s *Store) VersionJarPath(id string) string {
	return filepath.Join(s.VersionDir(id), id+".jar")
}

// JavaRuntimeDir returns runtime/<component>/<os>/<component>/.
func (s *Store) JavaRuntimeDir(component, os string) string {
	return filepath.Join(s.Root, "runtime", component, os, component)
}

// LauncherProfilesPath returns the path of launcher_profiles.json.
func (s *Store) LauncherProfilesPath() string {
	return filepath.Join(s.Root, "launcher_profiles.json")
}
