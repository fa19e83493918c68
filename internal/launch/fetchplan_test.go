package launch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quasar/mc-launch/internal/rules"
	"github.com/quasar/mc-launch/internal/store"
	"github.com/quasar/mc-launch/internal/version"
)

func TestPlan_IncludesClientJarAndGatedLibraries(t *testing.T) {
	s := store.New("/root/.minecraft")
	f := &version.Flattened{
		ID: "1.21",
		Downloads: version.Downloads{
			Client: &version.Artifact{URL: "https://example/client.jar", SHA1: "abc", Size: 10},
		},
		Libraries: []version.Library{
			{
				Name:      "org.lwjgl:lwjgl:3.3.1",
				Downloads: &version.LibraryDownloads{Artifact: &version.Artifact{Path: "org/lwjgl/lwjgl-3.3.1.jar", URL: "https://example/lwjgl.jar"}},
			},
			{
				Name:      "com.some:windows-only:1.0",
				Downloads: &version.LibraryDownloads{Artifact: &version.Artifact{Path: "com/some/windows-only-1.0.jar", URL: "https://example/w.jar"}},
				Rules:     []rules.Rule{{Action: rules.Allow, OS: &rules.OSMatch{Name: "windows"}}},
			},
		},
	}

	tasks := Plan(s, f, rules.HostFacts{OS: "linux"})

	require.Len(t, tasks, 2, "client jar plus the one non-windows-gated library")
	assert.Equal(t, "1.21.jar", tasks[0].Label)
	assert.Equal(t, "org.lwjgl:lwjgl:3.3.1", tasks[1].Label)
}

func TestPlan_IncludesNativesClassifierWhenHostMatches(t *testing.T) {
	s := store.New("/root/.minecraft")
	f := &version.Flattened{
		ID: "1.8.9",
		Libraries: []version.Library{
			{
				Name:    "org.lwjgl.lwjgl:lwjgl-platform:2.9.4",
				Natives: map[string]string{"linux": "natives-linux"},
				Downloads: &version.LibraryDownloads{
					Classifiers: map[string]*version.Artifact{
						"natives-linux": {Path: "org/lwjgl/lwjgl-platform-natives-linux.jar", URL: "https://example/natives.jar"},
					},
				},
			},
		},
	}

	tasks := Plan(s, f, rules.HostFacts{OS: "linux", Arch: "x64"})

	require.Len(t, tasks, 1)
	assert.Equal(t, "org.lwjgl.lwjgl:lwjgl-platform:2.9.4:natives-linux", tasks[0].Label)
}

func TestPlan_SkipsLibraryWithNoDownloadsBlock(t *testing.T) {
	s := store.New("/root/.minecraft")
	f := &version.Flattened{
		ID:        "1.21",
		Libraries: []version.Library{{Name: "some.lib:no-downloads:1.0"}},
	}

	tasks := Plan(s, f, rules.HostFacts{})
	assert.Empty(t, tasks)
}
