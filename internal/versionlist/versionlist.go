// Package versionlist merges the locally installed versions with the
// official manifest for display, without fetching any assets.
package versionlist

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/quasar/mc-launch/internal/store"
	"github.com/quasar/mc-launch/internal/version"
)

// Provenance marks whether an entry was found on disk, in the official
// manifest, or both.
type Provenance string

const (
	Local       Provenance = "LOCAL"
	Official    Provenance = "official"
	LocalOffice Provenance = "LOCAL, official"
)

// Entry is one row of the merged listing.
type Entry struct {
	ID          string
	Type        version.Type
	Provenance  Provenance
	ReleaseTime time.Time
}

// List merges the ids found under versions/*/ (each validated by the
// presence of versions/<id>/<id>.json) with the official manifest,
// newest release time first. Manifest fetch failures degrade to a
// local-only listing rather than failing outright, since a user
// offline or air-gapped from Mojang still has locally installed
// profiles worth showing.
func List(ctx context.Context, g *version.Graph, s *store.Store) ([]Entry, error) {
	local, err := localVersions(s)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Entry, len(local))
	for _, id := range local {
		byID[id] = &Entry{ID: id, Provenance: Local}
	}

	if m, err := g.Manifest(ctx); err == nil {
		for _, v := range m.Versions {
			if e, ok := byID[v.ID]; ok {
				e.Provenance = LocalOffice
				e.Type = v.Type
				e.ReleaseTime = v.ReleaseTime
			} else {
				byID[v.ID] = &Entry{ID: v.ID, Type: v.Type, Provenance: Official, ReleaseTime: v.ReleaseTime}
			}
		}
	}

	entries := make([]Entry, 0, len(byID))
	for _, e := range byID {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ReleaseTime.Equal(entries[j].ReleaseTime) {
			return lessBySemver(entries[i].ID, entries[j].ID)
		}
		return entries[i].ReleaseTime.After(entries[j].ReleaseTime)
	})
	return entries, nil
}

// lessBySemver breaks release-time ties (typically both zero, for
// locally-authored modded profiles) using semantic-version order when
// both ids parse, falling back to a lexical comparison otherwise.
func lessBySemver(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.GreaterThan(vb)
	}
	return a < b
}

func localVersions(s *store.Store) ([]string, error) {
	versionsDir := filepath.Join(s.Root, "versions")
	entries, err := os.ReadDir(versionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading versions directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(s.VersionDescriptorPath(e.Name())); err != nil {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}

// Format writes one line per entry to w: "<id>  <provenance> <type>  <releaseTime>",
// padded into columns, with "-" in place of a missing release time.
func Format(w io.Writer, entries []Entry) {
	for _, e := range entries {
		label := string(e.Provenance)
		if e.Type != "" {
			label += " " + string(e.Type)
		}
		rt := "-"
		if !e.ReleaseTime.IsZero() {
			rt = e.ReleaseTime.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%-25s  %-24s  %s\n", e.ID, label, rt)
	}
}
