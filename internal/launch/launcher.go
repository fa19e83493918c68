// Package launch composes final argument vectors (C9) and ties the
// rest of the core together into a single launch pipeline (C10).
package launch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quasar/mc-launch/internal/assets"
	"github.com/quasar/mc-launch/internal/errs"
	"github.com/quasar/mc-launch/internal/java"
	"github.com/quasar/mc-launch/internal/natives"
	"github.com/quasar/mc-launch/internal/profiles"
	"github.com/quasar/mc-launch/internal/resolver"
	"github.com/quasar/mc-launch/internal/rules"
	"github.com/quasar/mc-launch/internal/store"
	"github.com/quasar/mc-launch/internal/version"
)

// Status reports one phase transition of the launch pipeline.
type Status struct {
	Step       string
	Message    string
	IsComplete bool
	Error      error
}

// Options configures a single launch.
type Options struct {
	VersionID         string
	GameRoot          string
	Isolate           bool
	User              string
	AuthUUID          string
	AuthAccessToken   string
	UserType          string
	JavaPath          string
	EnvVariables      map[string]string
	ExtraJVMArgs      []string
	ExtraGameArgs     []string
	ResolverProcesses int
	RunBefore         string
	RunBeforeJava     int
	DeleteFiles       []string
	Features          map[string]bool
	WriteProfiles     bool
}

// Orchestrator ties C4 (version graph), C5 (java provisioner), C6
// (asset indexer), C7 (resolver pool), C8 (natives stager), and C9
// (argument composer) into the C10 launch pipeline.
type Orchestrator struct {
	store      *store.Store
	client     *http.Client
	graph      *version.Graph
	java       *java.Provisioner
	log        *logrus.Entry
	statusChan chan<- Status
}

// NewOrchestrator builds an Orchestrator rooted at s. statusChan may
// be nil; when present it receives a Status for each phase transition
// plus periodic download-progress updates. Sends never block: a Status
// is dropped when the channel is full.
func NewOrchestrator(s *store.Store, client *http.Client, log *logrus.Entry, statusChan chan<- Status) *Orchestrator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "launch")
	return &Orchestrator{
		store:      s,
		client:     client,
		graph:      version.NewGraph(s, client, log),
		java:       java.NewProvisioner(s, client, log),
		log:        log,
		statusChan: statusChan,
	}
}

func (o *Orchestrator) send(step, message string) {
	if o.statusChan == nil {
		return
	}
	select {
	case o.statusChan <- Status{Step: step, Message: message}:
	default:
	}
}

// Launch runs the full pipeline, spawns the game, and returns only
// after the spawned process has exited (the reference implementation's
// wait policy). It returns an *errs.ChildExit wrapping a non-zero exit
// code as a non-nil error even though the process itself spawned
// successfully.
func (o *Orchestrator) Launch(ctx context.Context, opts Options) error {
	if err := os.MkdirAll(opts.GameRoot, 0o755); err != nil {
		return fmt.Errorf("creating game root: %w", err)
	}

	o.send("Resolving", "flattening "+opts.VersionID)
	flat, err := o.graph.Flatten(ctx, opts.VersionID)
	if err != nil {
		o.fail("Resolving", err)
		return err
	}

	majorVersion := flat.JavaVersion.MajorVersion
	if opts.RunBeforeJava > 0 {
		majorVersion = opts.RunBeforeJava
	}
	o.send("Checking Java", "selecting runtime")
	javaPath, err := o.java.Resolve(ctx, majorVersion, opts.JavaPath)
	if err != nil {
		o.fail("Checking Java", err)
		return err
	}

	host := rules.CurrentHost(opts.Features)

	o.send("Resolving", "planning fetch tasks")
	tasks := Plan(o.store, flat, host)

	var idx *assets.Index
	if flat.AssetIndex != nil {
		idx, err = assets.Load(ctx, o.client, o.store, flat.AssetIndex)
		if err != nil {
			o.fail("Resolving", err)
			return err
		}
	}

	pool := resolver.New(opts.ResolverProcesses, o.client, o.log)

	o.send("Downloading", fmt.Sprintf("%d files", len(tasks)))
	if err := o.drain(ctx, pool, tasks, "Downloading"); err != nil {
		o.fail("Downloading", err)
		return err
	}

	if idx != nil {
		downloads, copies := assets.Plan(o.store, flat.Assets, idx)
		o.send("Downloading assets", fmt.Sprintf("%d objects", len(downloads)))
		if err := o.drain(ctx, pool, downloads, "Downloading assets"); err != nil {
			o.fail("Downloading assets", err)
			return err
		}
		if len(copies) > 0 {
			o.send("Staging assets", fmt.Sprintf("%d legacy copies", len(copies)))
			if err := o.drain(ctx, pool, copies, "Staging assets"); err != nil {
				o.fail("Staging assets", err)
				return err
			}
		}
	}

	o.send("Staging natives", "extracting platform libraries")
	nativesDir, err := natives.Stage(ctx, o.store, flat.ID, flat.Libraries, host, o.log)
	if err != nil {
		o.fail("Staging natives", err)
		return err
	}

	gameDir := opts.GameRoot
	gameAssets := o.store.AssetVirtualPath(flat.Assets, "")
	if opts.Isolate {
		gameDir = o.store.VersionDir(flat.ID)
		if err := os.MkdirAll(gameDir, 0o755); err != nil {
			return fmt.Errorf("creating isolated game dir: %w", err)
		}
	}

	subs := Substitutions{
		AuthPlayerName:   o.playerName(opts.User),
		VersionName:      flat.ID,
		GameDirectory:    gameDir,
		AssetsRoot:       filepath.Join(o.store.Root, "assets"),
		AssetsIndexName:  flat.Assets,
		AuthUUID:         ResolveAuthUUID(opts.AuthUUID, o.playerName(opts.User)),
		AuthAccessToken:  coalesce(opts.AuthAccessToken, "0"),
		ClientID:         "",
		AuthXUID:         "",
		UserType:         coalesce(opts.UserType, "legacy"),
		VersionType:      string(flat.Type),
		ResolutionWidth:  "925",
		ResolutionHeight: "530",
		NativesDirectory: nativesDir,
		LibraryDirectory: filepath.Join(o.store.Root, "libraries"),
		GameAssets:       gameAssets,
	}
	subs.Classpath = joinClasspath(Classpath(o.store, flat.Libraries, host, o.store.VersionJarPath(flat.ID)))

	jvmArgs, gameArgs := ComposeArguments(flat, host, subs, opts.ExtraJVMArgs, opts.ExtraGameArgs)

	if opts.WriteProfiles {
		if err := profiles.RecordLaunch(o.store, flat.ID, time.Now()); err != nil {
			o.log.WithError(err).Warn("failed to update launcher_profiles.json, continuing launch")
		}
	}

	o.runBefore(ctx, opts.RunBefore)
	o.deleteFiles(gameDir, opts.DeleteFiles)

	argv := append(append([]string{}, jvmArgs...), flat.MainClass)
	argv = append(argv, gameArgs...)

	o.send("Launching", flat.MainClass)
	cmd := exec.CommandContext(ctx, javaPath, argv...)
	cmd.Dir = gameDir
	cmd.Env = buildEnv(opts.EnvVariables)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		spawnErr := &errs.LaunchSpawnError{Err: err}
		o.fail("Launching", spawnErr)
		return spawnErr
	}

	err = cmd.Wait()
	if err != nil {
		code := 1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		childErr := &errs.ChildExit{Code: code}
		o.fail("Launching", childErr)
		return childErr
	}

	o.send("Complete", "game closed")
	return nil
}

func (o *Orchestrator) drain(ctx context.Context, pool *resolver.Pool, tasks []resolver.Task, step string) error {
	if len(tasks) == 0 {
		return nil
	}
	result, err := pool.Run(ctx, tasks, func(p resolver.Progress) {
		o.send(step, fmt.Sprintf("%d/%d (%s)", p.Done, p.Total, resolver.FormatSpeed(p.Speed)))
	})
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d tasks failed: %v", result.Failed, result.Errors)
	}
	return nil
}

func (o *Orchestrator) fail(step string, err error) {
	o.log.WithError(err).WithField("step", step).Error("launch failed")
	if o.statusChan != nil {
		select {
		case o.statusChan <- Status{Step: step, Error: err}:
		default:
		}
	}
}

// runBefore executes a pre-launch shell command best-effort; its
// failure is logged but never aborts the launch.
func (o *Orchestrator) runBefore(ctx context.Context, command string) {
	if command == "" {
		return
	}
	o.send("Running pre-launch command", command)
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if err := cmd.Run(); err != nil {
		o.log.WithError(err).WithField("command", command).Warn("run_before failed, continuing launch")
	}
}

// deleteFiles removes every file under gameDir matching one of globs,
// best-effort.
func (o *Orchestrator) deleteFiles(gameDir string, globs []string) {
	for _, g := range globs {
		matches, err := filepath.Glob(filepath.Join(gameDir, g))
		if err != nil {
			o.log.WithError(err).WithField("glob", g).Warn("delete_files: bad pattern")
			continue
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				o.log.WithError(err).WithField("path", m).Warn("delete_files: failed to remove")
			}
		}
	}
}

func (o *Orchestrator) playerName(user string) string {
	if user != "" {
		return user
	}
	return "Player"
}

func joinClasspath(paths []string) string {
	return strings.Join(paths, classpathSeparator())
}

func buildEnv(overlay map[string]string) []string {
	env := os.Environ()
	for k, v := range overlay {
		env = append(env, k+"="+v)
	}
	return env
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

