// Command mc-launch resolves a Minecraft version, fetches whatever is
// missing from the content store, and execs the Java virtual machine.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-shellwords"
	"github.com/sirupsen/logrus"

	"github.com/quasar/mc-launch/internal/config"
	"github.com/quasar/mc-launch/internal/fetch"
	"github.com/quasar/mc-launch/internal/launch"
	"github.com/quasar/mc-launch/internal/store"
	"github.com/quasar/mc-launch/internal/version"
	"github.com/quasar/mc-launch/internal/versionlist"
)

const appVersion = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("mc-launch", flag.ContinueOnError)

	var (
		configPath        = fs.String("config", "", "path to a configuration file")
		gameDir           = fs.String("game-dir", "", "game root directory")
		listVersions      = fs.Bool("list-versions", false, "print installed and official versions, then exit")
		user              = fs.String("user", "", "player username")
		authUUID          = fs.String("auth-uuid", "", "player UUID (derived offline from -user when omitted)")
		authAccessToken   = fs.String("auth-access-token", "", "session access token")
		userType          = fs.String("user-type", "", "msa, legacy, or mojang")
		isolate           = fs.Bool("isolate", false, "run with cwd and saves scoped to versions/<id>/")
		javaPath          = fs.String("java-path", "", "explicit java executable, bypassing detection/download")
		envVars           = fs.String("env-variables", "", "comma-separated K=V pairs added to the child environment")
		jvmArgsRaw        = fs.String("jvm-args", "", "extra JVM arguments, shell-split")
		gameArgsRaw       = fs.String("game-args", "", "extra game arguments, shell-split")
		resolverProcesses = fs.Int("resolver-processes", 0, "concurrent download workers")
		writeProfiles     = fs.Bool("write-profiles", false, "record this launch in launcher_profiles.json")
		runBefore         = fs.String("run-before", "", "shell command to run before spawning the game")
		runBeforeJava     = fs.Int("run-before-java", 0, "override the major Java version selected for this launch")
		deleteFilesRaw    = fs.String("delete-files", "", "comma-separated glob patterns removed from the game dir before launch")
		verbose           = fs.Bool("verbose", false, "enable debug logging")
		showVersion       = fs.Bool("version", false, "print mc-launch's own version and exit")
	)
	fs.StringVar(configPath, "c", "", "shorthand for -config")
	fs.StringVar(gameDir, "d", "", "shorthand for -game-dir")
	fs.BoolVar(listVersions, "l", false, "shorthand for -list-versions")
	fs.StringVar(user, "u", "", "shorthand for -user")
	fs.BoolVar(isolate, "i", false, "shorthand for -isolate")
	fs.StringVar(envVars, "e", "", "shorthand for -env-variables")
	fs.StringVar(jvmArgsRaw, "j", "", "shorthand for -jvm-args")
	fs.StringVar(gameArgsRaw, "g", "", "shorthand for -game-args")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Println("mc-launch " + appVersion)
		return 0
	}

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := logrus.NewEntry(log)

	cliCfg := &config.Config{
		GameDir:           *gameDir,
		ID:                fs.Arg(0),
		IsolateProfile:    *isolate,
		User:              *user,
		AuthUUID:          *authUUID,
		AuthAccessToken:   *authAccessToken,
		UserType:          *userType,
		JavaPath:          *javaPath,
		EnvVariables:      parseKVList(*envVars),
		JVMArgs:           mustSplit(*jvmArgsRaw),
		GameArgs:          mustSplit(*gameArgsRaw),
		ResolverProcesses: *resolverProcesses,
		WriteProfiles:     *writeProfiles,
		RunBefore:         *runBefore,
		RunBeforeJava:     *runBeforeJava,
		DeleteFiles:       splitCSV(*deleteFilesRaw),
	}

	fileCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg := fileCfg.Merge(cliCfg)

	if err := cfg.EnsureDirs(); err != nil {
		fmt.Fprintln(os.Stderr, "creating game directory:", err)
		return 1
	}

	client := fetch.NewHTTPClient(entry)
	s := store.New(cfg.GameDir)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *listVersions {
		return printVersionList(ctx, client, entry, s)
	}

	if cfg.ID == "" {
		fmt.Fprintln(os.Stderr, "usage: mc-launch [flags] <version-id>")
		return 2
	}

	statusChan := make(chan launch.Status, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for st := range statusChan {
			if st.Error != nil {
				fmt.Fprintf(os.Stderr, "[%s] error: %v\n", st.Step, st.Error)
				continue
			}
			fmt.Printf("[%s] %s\n", st.Step, st.Message)
		}
	}()

	orch := launch.NewOrchestrator(s, client, entry, statusChan)
	err = orch.Launch(ctx, launch.Options{
		VersionID:         cfg.ID,
		GameRoot:          cfg.GameDir,
		Isolate:           cfg.IsolateProfile,
		User:              cfg.User,
		AuthUUID:          cfg.AuthUUID,
		AuthAccessToken:   cfg.AuthAccessToken,
		UserType:          cfg.UserType,
		JavaPath:          cfg.JavaPath,
		EnvVariables:      cfg.EnvVariables,
		ExtraJVMArgs:      cfg.JVMArgs,
		ExtraGameArgs:     cfg.GameArgs,
		ResolverProcesses: cfg.ResolverProcesses,
		RunBefore:         cfg.RunBefore,
		RunBeforeJava:     cfg.RunBeforeJava,
		DeleteFiles:       cfg.DeleteFiles,
		WriteProfiles:     cfg.WriteProfiles,
	})
	close(statusChan)
	<-done

	if err != nil {
		return 1
	}
	return 0
}

func printVersionList(ctx context.Context, client *http.Client, log *logrus.Entry, s *store.Store) int {
	g := version.NewGraph(s, client, log)
	entries, err := versionlist.List(ctx, g, s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	versionlist.Format(os.Stdout, entries)
	return 0
}

func parseKVList(csv string) map[string]string {
	out := map[string]string{}
	for _, pair := range splitCSV(csv) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// mustSplit shell-splits s, falling back to whitespace splitting on a
// malformed quote so a single bad flag value can't crash the CLI.
func mustSplit(s string) []string {
	if s == "" {
		return nil
	}
	parser := shellwords.NewParser()
	fields, err := parser.Parse(s)
	if err != nil {
		return strings.Fields(s)
	}
	return fields
}
