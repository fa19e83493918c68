package launch

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/quasar/mc-launch/internal/rules"
	"github.com/quasar/mc-launch/internal/store"
	"github.com/quasar/mc-launch/internal/uuidgen"
	"github.com/quasar/mc-launch/internal/version"
)

const (
	launcherName    = "mc-launch"
	launcherVersion = "1.0"
)

// Substitutions holds every value the argument composer may need to
// plug into a ${name} placeholder.
type Substitutions struct {
	AuthPlayerName    string
	VersionName       string
	GameDirectory     string
	AssetsRoot        string
	AssetsIndexName   string
	AuthUUID          string
	AuthAccessToken   string
	ClientID          string
	AuthXUID          string
	UserType          string
	VersionType       string
	ResolutionWidth   string
	ResolutionHeight  string
	NativesDirectory  string
	Classpath         string
	LibraryDirectory  string
	GameAssets        string // legacy virtual/map_to_resources path
}

func (s Substitutions) table() map[string]string {
	return map[string]string{
		"auth_player_name":    s.AuthPlayerName,
		"version_name":        s.VersionName,
		"game_directory":      s.GameDirectory,
		"assets_root":         s.AssetsRoot,
		"assets_index_name":   s.AssetsIndexName,
		"auth_uuid":           s.AuthUUID,
		"auth_access_token":   s.AuthAccessToken,
		"clientid":            s.ClientID,
		"auth_xuid":           s.AuthXUID,
		"user_type":           s.UserType,
		"version_type":        s.VersionType,
		"resolution_width":    s.ResolutionWidth,
		"resolution_height":   s.ResolutionHeight,
		"natives_directory":   s.NativesDirectory,
		"launcher_name":       launcherName,
		"launcher_version":    launcherVersion,
		"classpath":           s.Classpath,
		"classpath_separator": classpathSeparator(),
		"library_directory":   s.LibraryDirectory,
		"user_properties":     "{}",
		"game_assets":         s.GameAssets,
	}
}

// ResolveAuthUUID returns authUUID verbatim when non-empty, otherwise
// derives an offline UUID from username.
func ResolveAuthUUID(authUUID, username string) string {
	if authUUID != "" {
		return authUUID
	}
	return uuidgen.Offline(username)
}

// Classpath joins an ordered library jar list and the client jar with
// the host's classpath separator, skipping natives-only entries (a
// library whose only artifact is a natives classifier, with no plain
// Downloads.Artifact).
func Classpath(s *store.Store, libs []version.Library, host rules.HostFacts, clientJarPath string) []string {
	var paths []string
	seen := map[string]bool{}

	for _, lib := range libs {
		if !rules.Eval(lib.Rules, host) {
			continue
		}
		if lib.Downloads == nil || lib.Downloads.Artifact == nil {
			continue
		}
		p := s.LibraryPath(lib.Name, lib.Downloads.Artifact.Path)
		if seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	paths = append(paths, clientJarPath)
	return paths
}

func classpathSeparator() string {
	if runtime.GOOS == "windows" {
		return ";"
	}
	return ":"
}

// ComposeArguments builds the final JVM and game argument vectors. If
// flattened carries structured arguments, those are walked with rule
// gating; otherwise a legacy default JVM list and a whitespace-split
// game list are synthesized from MinecraftArguments. User-supplied
// extra args (config then CLI, already concatenated by the caller)
// are appended after the descriptor's own lists.
func ComposeArguments(f *version.Flattened, host rules.HostFacts, subs Substitutions, extraJVM, extraGame []string) (jvm []string, game []string) {
	if f.Arguments != nil && (len(f.Arguments.JVM) > 0 || len(f.Arguments.Game) > 0) {
		jvm = expandEntries(f.Arguments.JVM, host, subs)
		game = expandEntries(f.Arguments.Game, host, subs)
	} else {
		jvm = []string{
			fmt.Sprintf("-Djava.library.path=%s", subs.NativesDirectory),
			"-cp",
			subs.Classpath,
		}
		for _, tok := range strings.Fields(f.LegacyArgs) {
			game = append(game, substitute(tok, subs.table()))
		}
	}

	jvm = append(jvm, extraJVM...)
	game = append(game, extraGame...)
	return jvm, game
}

func expandEntries(entries []version.ArgumentEntry, host rules.HostFacts, subs Substitutions) []string {
	table := subs.table()
	var out []string
	for _, e := range entries {
		if e.IsLiteral {
			out = append(out, substitute(e.Literal, table))
			continue
		}
		if !rules.Eval(e.Rules, host) {
			continue
		}
		for _, v := range e.Values {
			out = append(out, substitute(v, table))
		}
	}
	return out
}

// substitute replaces a token equal to "${name}" in its entirety with
// the corresponding substitution value; unknown placeholders and
// partial matches are left verbatim.
func substitute(token string, table map[string]string) string {
	if !strings.HasPrefix(token, "${") || !strings.HasSuffix(token, "}") {
		return token
	}
	name := token[2 : len(token)-1]
	if v, ok := table[name]; ok {
		return v
	}
	return token
}
