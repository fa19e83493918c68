package launch

import (
	"github.com/quasar/mc-launch/internal/natives"
	"github.com/quasar/mc-launch/internal/resolver"
	"github.com/quasar/mc-launch/internal/rules"
	"github.com/quasar/mc-launch/internal/store"
	"github.com/quasar/mc-launch/internal/version"
)

// Plan builds the resolver tasks for a flattened descriptor's client
// jar and rule-gated libraries (main artifact and, when present, this
// host's natives classifier).
func Plan(s *store.Store, f *version.Flattened, host rules.HostFacts) []resolver.Task {
	var tasks []resolver.Task

	if f.Downloads.Client != nil {
		c := f.Downloads.Client
		tasks = append(tasks, resolver.Task{
			Kind:         resolver.KindDownload,
			Source:       c.URL,
			Target:       s.VersionJarPath(f.ID),
			ExpectedSHA1: c.SHA1,
			ExpectedSize: c.Size,
			Label:        f.ID + ".jar",
		})
	}

	for _, lib := range f.Libraries {
		if !rules.Eval(lib.Rules, host) {
			continue
		}
		if lib.Downloads == nil {
			continue
		}
		if a := lib.Downloads.Artifact; a != nil {
			tasks = append(tasks, resolver.Task{
				Kind:         resolver.KindDownload,
				Source:       a.URL,
				Target:       s.LibraryPath(lib.Name, a.Path),
				ExpectedSHA1: a.SHA1,
				ExpectedSize: a.Size,
				Label:        lib.Name,
			})
		}

		if classifier, ok := natives.ClassifierFor(lib, host); ok {
			if a, ok := lib.Downloads.Classifiers[classifier]; ok && a != nil {
				tasks = append(tasks, resolver.Task{
					Kind:         resolver.KindDownload,
					Source:       a.URL,
					Target:       s.LibraryPath(lib.Name+":"+classifier, a.Path),
					ExpectedSHA1: a.SHA1,
					ExpectedSize: a.Size,
					Label:        lib.Name + ":" + classifier,
				})
			}
		}
	}

	return tasks
}
