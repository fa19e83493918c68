// Package version loads Mojang version descriptors, flattens
// inheritsFrom chains, and tracks the official version manifest.
package version

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quasar/mc-launch/internal/rules"
)

// Type mirrors Mojang's version "type" field, with "modded" added for
// locally-authored descriptors (Forge/Fabric installers) that don't
// carry one of the four official values.
type Type string

const (
	TypeRelease  Type = "release"
	TypeSnapshot Type = "snapshot"
	TypeOldBeta  Type = "old_beta"
	TypeOldAlpha Type = "old_alpha"
	TypeModded   Type = "modded"
)

// ManifestEntry is one row of the official version_manifest_v2.json.
type ManifestEntry struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	URL         string    `json:"url"`
	ReleaseTime time.Time `json:"releaseTime"`
	SHA1        string    `json:"sha1"`
}

// Manifest is the root of version_manifest_v2.json.
type Manifest struct {
	Latest   LatestVersions  `json:"latest"`
	Versions []ManifestEntry `json:"versions"`
}

// LatestVersions names the newest release and snapshot ids.
type LatestVersions struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

// Descriptor is a single version JSON document, before flattening.
type Descriptor struct {
	ID                 string         `json:"id"`
	InheritsFrom       string         `json:"inheritsFrom,omitempty"`
	Type               Type           `json:"type"`
	MainClass          string         `json:"mainClass"`
	MinecraftArguments string         `json:"minecraftArguments,omitempty"`
	Arguments          *Arguments     `json:"arguments,omitempty"`
	Libraries          []Library      `json:"libraries"`
	AssetIndex         *AssetIndexRef `json:"assetIndex,omitempty"`
	Assets             string         `json:"assets,omitempty"`
	Downloads          Downloads      `json:"downloads,omitempty"`
	JavaVersion        JavaVersionReq `json:"javaVersion,omitempty"`
	Logging            *Logging       `json:"logging,omitempty"`
	ReleaseTime        time.Time      `json:"releaseTime"`
	Time               time.Time      `json:"time"`
}

// Arguments carries the structured, rule-gated jvm/game argument
// lists used by versions newer than 1.12.2.
type Arguments struct {
	Game []ArgumentEntry `json:"game"`
	JVM  []ArgumentEntry `json:"jvm"`
}

// ArgumentEntry is a tagged union: either a bare literal token, or an
// object carrying a rule list and a value that is itself either a
// single string or a list of strings. UnmarshalJSON resolves the
// union explicitly rather than leaning on interface{} duck typing.
type ArgumentEntry struct {
	Literal   string
	IsLiteral bool
	Rules     []rules.Rule
	Values    []string
}

func (a *ArgumentEntry) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		a.Literal = asString
		a.IsLiteral = true
		return nil
	}

	var obj struct {
		Rules []rules.Rule    `json:"rules"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("argument entry is neither a string nor a rule object: %w", err)
	}

	a.Rules = obj.Rules

	var single string
	if err := json.Unmarshal(obj.Value, &single); err == nil {
		a.Values = []string{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(obj.Value, &list); err != nil {
		return fmt.Errorf("argument value is neither a string nor a list: %w", err)
	}
	a.Values = list
	return nil
}

func (a ArgumentEntry) MarshalJSON() ([]byte, error) {
	if a.IsLiteral {
		return json.Marshal(a.Literal)
	}
	var value interface{}
	if len(a.Values) == 1 {
		value = a.Values[0]
	} else {
		value = a.Values
	}
	return json.Marshal(struct {
		Rules []rules.Rule `json:"rules"`
		Value interface{}  `json:"value"`
	}{a.Rules, value})
}

// Library is one dependency of a version descriptor.
type Library struct {
	Name      string            `json:"name"`
	Downloads *LibraryDownloads `json:"downloads,omitempty"`
	Rules     []rules.Rule      `json:"rules,omitempty"`
	Natives   map[string]string `json:"natives,omitempty"`
	Extract   *ExtractRules     `json:"extract,omitempty"`
}

// ExtractRules names the glob patterns excluded when staging a
// library's natives JAR.
type ExtractRules struct {
	Exclude []string `json:"exclude,omitempty"`
}

// LibraryDownloads holds the main artifact and any per-platform
// natives classifiers.
type LibraryDownloads struct {
	Artifact    *Artifact            `json:"artifact,omitempty"`
	Classifiers map[string]*Artifact `json:"classifiers,omitempty"`
}

// Artifact is a single downloadable file reference.
type Artifact struct {
	Path string `json:"path,omitempty"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// AssetIndexRef points at the asset index JSON for a version.
type AssetIndexRef struct {
	ID        string `json:"id"`
	SHA1      string `json:"sha1"`
	Size      int64  `json:"size"`
	TotalSize int64  `json:"totalSize"`
	URL       string `json:"url"`
}

// Downloads holds the client/server jar references.
type Downloads struct {
	Client         *Artifact `json:"client,omitempty"`
	ClientMappings *Artifact `json:"client_mappings,omitempty"`
	Server         *Artifact `json:"server,omitempty"`
	ServerMappings *Artifact `json:"server_mappings,omitempty"`
}

// JavaVersionReq names the runtime component and major version a
// descriptor requires.
type JavaVersionReq struct {
	Component    string `json:"component,omitempty"`
	MajorVersion int    `json:"majorVersion,omitempty"`
}

// Logging is carried through unexamined; the core never configures
// the game's log4j wrapper.
type Logging struct {
	Client *LoggingConfig `json:"client,omitempty"`
}

type LoggingConfig struct {
	Argument string        `json:"argument"`
	File     AssetIndexRef `json:"file"`
	Type     string        `json:"type"`
}
