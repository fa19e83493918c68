// Package profiles writes launcher_profiles.json in the format
// Forge/Fabric installers expect to find an existing install under, so
// a core-managed game root can also host a modloader installer run.
package profiles

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/quasar/mc-launch/internal/errs"
	"github.com/quasar/mc-launch/internal/store"
)

const fileVersion = 3

// Document is the root of launcher_profiles.json.
type Document struct {
	Profiles    map[string]Profile `json:"profiles"`
	Settings    Settings           `json:"settings"`
	Version     int                `json:"version"`
	ClientToken string             `json:"clientToken"`
}

// Profile describes a single named launch profile.
type Profile struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	LastVersionID string `json:"lastVersionId"`
	Created       string `json:"created"`
	LastUsed      string `json:"lastUsed"`
}

// Settings carries the handful of fields official installers read
// defensively; the core never customizes them.
type Settings struct {
	EnableSnapshots  bool `json:"enableSnapshots"`
	KeepLauncherOpen bool `json:"keepLauncherOpen"`
	ShowMenu         bool `json:"showGameLog"`
}

// RecordLaunch upserts a profile entry for versionID, setting its
// lastUsed to now and creating the file with a fresh clientToken if it
// doesn't already exist.
func RecordLaunch(s *store.Store, versionID string, now time.Time) error {
	path := s.LauncherProfilesPath()

	doc, err := load(path)
	if err != nil {
		return err
	}

	ts := now.UTC().Format(time.RFC3339)
	p, existed := doc.Profiles[versionID]
	if !existed {
		p = Profile{
			Name:    versionID,
			Type:    "custom",
			Created: ts,
		}
	}
	p.LastVersionID = versionID
	p.LastUsed = ts
	doc.Profiles[versionID] = p

	return save(path, doc)
}

func load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Document{
			Profiles:    map[string]Profile{},
			Version:     fileVersion,
			ClientToken: randomToken(),
		}, nil
	}
	if err != nil {
		return nil, &errs.ConfigError{Path: path, Err: err}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &errs.ConfigError{Path: path, Err: err}
	}
	if doc.Profiles == nil {
		doc.Profiles = map[string]Profile{}
	}
	if doc.ClientToken == "" {
		doc.ClientToken = randomToken()
	}
	if doc.Version == 0 {
		doc.Version = fileVersion
	}
	return &doc, nil
}

func save(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling launcher profiles: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &errs.ConfigError{Path: path, Err: err}
	}
	return nil
}

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
