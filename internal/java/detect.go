package java

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var versionRegex = regexp.MustCompile(`(?:java|openjdk) version "([^"]+)"`)

// Installation is a Java executable found on the host, tagged with the
// java-runtime Component (per componentForMajor) it would satisfy.
type Installation struct {
	Path         string
	Version      string
	MajorVersion int
	Component    string
	Is64Bit      bool
	Vendor       string
}

// Detector finds Java installations on the host filesystem.
type Detector struct {
	searchPaths []string
	log         *logrus.Entry
}

// NewDetector builds a Detector. log may be nil.
func NewDetector(log *logrus.Entry) *Detector {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Detector{
		searchPaths: defaultSearchPaths(),
		log:         log.WithField("component", "java.detect"),
	}
}

// FindAll enumerates every Java installation reachable from JAVA_HOME,
// PATH, and the platform's conventional JVM directories.
func (d *Detector) FindAll() []Installation {
	var installations []Installation
	seen := make(map[string]bool)

	add := func(inst *Installation) {
		if inst == nil || seen[inst.Path] {
			return
		}
		inst.Component = componentForMajor(inst.MajorVersion)
		installations = append(installations, *inst)
		seen[inst.Path] = true
	}

	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		add(d.checkJavaHome(javaHome))
	}
	if javaPath, err := exec.LookPath("java"); err == nil {
		add(d.checkJava(javaPath))
	}
	for _, searchPath := range d.searchPaths {
		entries, err := os.ReadDir(searchPath)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			javaPath := d.findJavaInDir(filepath.Join(searchPath, entry.Name()))
			if javaPath == "" {
				continue
			}
			add(d.checkJava(javaPath))
		}
	}

	d.log.WithField("count", len(installations)).Debug("java installations found")
	return installations
}

// FindBest picks the installation to use for a launch requiring
// minVersion. It prefers a 64-bit installation whose java-runtime
// Component (per componentForMajor) matches what minVersion itself
// maps to — Mojang ships distinct runtime builds per component, and an
// installation from the matching family is the closest stand-in for
// one this launcher would otherwise have to download. Failing that, it
// falls back to the lowest 64-bit installation that still satisfies
// minVersion, then to the newest 64-bit installation available.
func (d *Detector) FindBest(minVersion int) *Installation {
	return selectBest(d.FindAll(), minVersion)
}

// selectBest implements FindBest's preference order over an already
// detected installation set. Split out from FindBest so the selection
// policy can be exercised without mocking FindAll's filesystem/exec
// dependencies.
func selectBest(installations []Installation, minVersion int) *Installation {
	if len(installations) == 0 {
		return nil
	}
	wantComponent := componentForMajor(minVersion)

	var matched, satisfying *Installation
	for i := range installations {
		inst := &installations[i]
		if !inst.Is64Bit || inst.MajorVersion < minVersion {
			continue
		}
		if inst.Component == wantComponent {
			if matched == nil || inst.MajorVersion < matched.MajorVersion {
				matched = inst
			}
			continue
		}
		if satisfying == nil || inst.MajorVersion < satisfying.MajorVersion {
			satisfying = inst
		}
	}
	if matched != nil {
		return matched
	}
	if satisfying != nil {
		return satisfying
	}

	var newest *Installation
	for i := range installations {
		inst := &installations[i]
		if inst.Is64Bit && (newest == nil || inst.MajorVersion > newest.MajorVersion) {
			newest = inst
		}
	}
	return newest
}

func defaultSearchPaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Library/Java/JavaVirtualMachines",
			"/System/Library/Java/JavaVirtualMachines",
			filepath.Join(os.Getenv("HOME"), ".sdkman/candidates/java"),
			filepath.Join(os.Getenv("HOME"), ".jenv/versions"),
		}
	case "linux":
		return []string{
			"/usr/lib/jvm",
			"/usr/lib64/jvm",
			"/usr/java",
			filepath.Join(os.Getenv("HOME"), ".sdkman/candidates/java"),
			filepath.Join(os.Getenv("HOME"), ".jenv/versions"),
		}
	case "windows":
		return []string{
			`C:\Program Files\Java`,
			`C:\Program Files\Eclipse Adoptium`,
			`C:\Program Files\Zulu`,
			`C:\Program Files\Microsoft\jdk`,
		}
	default:
		return nil
	}
}

func (d *Detector) findJavaInDir(dir string) string {
	javaName := "java"
	if runtime.GOOS == "windows" {
		javaName = "java.exe"
	}

	candidates := []string{
		filepath.Join(dir, "bin", javaName),
		filepath.Join(dir, "Contents", "Home", "bin", javaName), // macOS .jdk layout
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func (d *Detector) checkJavaHome(javaHome string) *Installation {
	javaPath := d.findJavaInDir(javaHome)
	if javaPath == "" {
		return nil
	}
	return d.checkJava(javaPath)
}

func (d *Detector) checkJava(javaPath string) *Installation {
	realPath, err := filepath.EvalSymlinks(javaPath)
	if err != nil {
		realPath = javaPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, realPath, "-version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		d.log.WithError(err).WithField("path", realPath).Debug("java -version failed, skipping")
		return nil
	}
	return parseVersionOutput(realPath, string(output))
}

func parseVersionOutput(path, output string) *Installation {
	inst := &Installation{Path: path}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if matches := versionRegex.FindStringSubmatch(line); len(matches) > 1 {
			inst.Version = matches[1]
			inst.MajorVersion = parseMajorVersion(matches[1])
		}

		if strings.Contains(line, "64-Bit") || strings.Contains(line, "amd64") || strings.Contains(line, "x86_64") {
			inst.Is64Bit = true
		}

		lineLower := strings.ToLower(line)
		switch {
		case strings.Contains(lineLower, "graalvm"):
			inst.Vendor = "GraalVM"
		case strings.Contains(lineLower, "azul"):
			inst.Vendor = "Azul Zulu"
		case strings.Contains(lineLower, "adoptium") || strings.Contains(lineLower, "temurin"):
			inst.Vendor = "Eclipse Adoptium"
		case strings.Contains(lineLower, "oracle"):
			inst.Vendor = "Oracle"
		case strings.Contains(lineLower, "microsoft"):
			inst.Vendor = "Microsoft"
		case strings.Contains(lineLower, "openjdk") && inst.Vendor == "":
			inst.Vendor = "OpenJDK"
		}
	}

	// Modern macOS/Linux builds are 64-bit even when the banner doesn't say so.
	if runtime.GOOS != "windows" && !inst.Is64Bit {
		inst.Is64Bit = true
	}

	if inst.Version == "" {
		return nil
	}
	return inst
}

func parseMajorVersion(version string) int {
	if strings.HasPrefix(version, "1.") {
		parts := strings.Split(version, ".")
		if len(parts) >= 2 {
			v, _ := strconv.Atoi(parts[1])
			return v
		}
	}
	parts := strings.Split(version, ".")
	if len(parts) >= 1 {
		v, _ := strconv.Atoi(parts[0])
		return v
	}
	return 0
}

// FormatInstallation renders a one-line description of inst, as logged
// when the provisioner selects a detected installation.
func FormatInstallation(inst *Installation) string {
	arch := "32-bit"
	if inst.Is64Bit {
		arch = "64-bit"
	}
	vendor := inst.Vendor
	if vendor == "" {
		vendor = "Unknown"
	}
	return fmt.Sprintf("Java %d [%s] (%s, %s)", inst.MajorVersion, inst.Component, vendor, arch)
}
