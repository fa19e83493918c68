// Package natives extracts platform-native libraries bundled inside
// library JARs into a run-scoped directory ahead of launch.
package natives

import (
	"archive/zip"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mholt/archiver/v3"
	"github.com/sirupsen/logrus"

	"github.com/quasar/mc-launch/internal/errs"
	"github.com/quasar/mc-launch/internal/rules"
	"github.com/quasar/mc-launch/internal/store"
	"github.com/quasar/mc-launch/internal/version"
)

// Stage extracts every library whose rules allow and whose natives
// map defines a classifier for host into one fresh directory under
// versions/<versionID>/, skipping entries matched by that library's
// extract.exclude globs and skipping directories, and returns the
// staged directory's path.
func Stage(ctx context.Context, s *store.Store, versionID string, libs []version.Library, host rules.HostFacts, log *logrus.Entry) (string, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "natives")

	dir, err := freshDir(s, versionID)
	if err != nil {
		return "", err
	}

	for _, lib := range libs {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		classifier, ok := ClassifierFor(lib, host)
		if !ok {
			continue
		}
		if !rules.Eval(lib.Rules, host) {
			continue
		}

		jarPath, err := classifierJarPath(s, lib, classifier)
		if err != nil {
			log.WithField("library", lib.Name).WithError(err).Warn("skipping natives library with no resolvable classifier artifact")
			continue
		}

		var excludes []string
		if lib.Extract != nil {
			excludes = lib.Extract.Exclude
		}

		if err := extractJar(jarPath, dir, excludes); err != nil {
			return "", &errs.NativesExtractionError{Library: lib.Name, Err: err}
		}
	}

	return dir, nil
}

func freshDir(s *store.Store, versionID string) (string, error) {
	suffix, err := randomSuffix(6)
	if err != nil {
		return "", fmt.Errorf("generating natives dir suffix: %w", err)
	}
	dir := filepath.Join(s.VersionDir(versionID), "natives-"+suffix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating natives dir: %w", err)
	}
	return dir, nil
}

func randomSuffix(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ClassifierFor resolves a library's natives[OS] template (possibly
// containing ${arch}) against host facts.
func ClassifierFor(lib version.Library, host rules.HostFacts) (string, bool) {
	tmpl, ok := lib.Natives[host.OS]
	if !ok {
		return "", false
	}
	return strings.ReplaceAll(tmpl, "${arch}", archBits(host.Arch)), true
}

// archBits maps Mojang's arch vocabulary onto the legacy "32"/"64"
// bitness strings used in natives classifier templates.
func archBits(arch string) string {
	switch arch {
	case "x86":
		return "32"
	default:
		return "64"
	}
}

func classifierJarPath(s *store.Store, lib version.Library, classifier string) (string, error) {
	if lib.Downloads != nil && lib.Downloads.Classifiers != nil {
		if a, ok := lib.Downloads.Classifiers[classifier]; ok && a != nil {
			return s.LibraryPath(lib.Name+":"+classifier, a.Path), nil
		}
	}
	coord := lib.Name + ":" + classifier
	p := s.LibraryPath(coord, "")
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("no classifier artifact for %s", coord)
	}
	return p, nil
}

// extractJar walks jarPath as a ZIP archive, writing every entry not
// matched by excludeGlobs and not a directory into destDir, setting
// the executable bit on .so/.dylib files on Unix hosts.
func extractJar(jarPath, destDir string, excludeGlobs []string) error {
	z := archiver.NewZip()
	return z.Walk(jarPath, func(f archiver.File) error {
		if f.IsDir() {
			return nil
		}

		name := f.Name()
		if header, ok := f.Header.(zip.FileHeader); ok {
			name = header.Name
		}
		name = filepath.ToSlash(name)

		for _, glob := range excludeGlobs {
			if matched, _ := path.Match(glob, name); matched {
				return nil
			}
			if strings.HasPrefix(name, strings.TrimSuffix(glob, "*")) && strings.HasSuffix(glob, "/") {
				return nil
			}
		}

		destPath := filepath.Join(destDir, filepath.Base(name))
		out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		defer out.Close()

		if _, err := io.Copy(out, f); err != nil {
			return err
		}

		if runtime.GOOS != "windows" && (strings.HasSuffix(name, ".so") || strings.HasSuffix(name, ".dylib")) {
			return os.Chmod(destPath, 0o755)
		}
		return nil
	})
}
