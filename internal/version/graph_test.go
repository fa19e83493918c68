package version

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quasar/mc-launch/internal/errs"
	"github.com/quasar/mc-launch/internal/fetch"
	"github.com/quasar/mc-launch/internal/store"
)

func writeDescriptor(t *testing.T, root string, d Descriptor) {
	t.Helper()
	dir := filepath.Join(root, "versions", d.ID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(d)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, d.ID+".json"), data, 0o644))
}

func TestFlatten_MergesChildOverParent(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, Descriptor{
		ID:        "1.18.2",
		MainClass: "net.minecraft.client.main.Main",
		Libraries: []Library{{Name: "org.lwjgl:lwjgl:3.3.1"}},
		Downloads: Downloads{Client: &Artifact{URL: "https://example.test/client.jar"}},
	})
	writeDescriptor(t, root, Descriptor{
		ID:           "1.18.2-forge-40.2.4",
		InheritsFrom: "1.18.2",
		MainClass:    "cpw.mods.modlauncher.Launcher",
		Libraries: []Library{
			{Name: "org.lwjgl:lwjgl:3.3.1"}, // duplicate coordinate, child-most wins
			{Name: "net.minecraftforge:forge:40.2.4"},
		},
	})

	g := NewGraph(store.New(root), fetch.NewHTTPClient(nil), nil)
	flat, err := g.Flatten(context.Background(), "1.18.2-forge-40.2.4")
	require.NoError(t, err)

	require.Equal(t, "cpw.mods.modlauncher.Launcher", flat.MainClass)
	require.Equal(t, []string{"1.18.2", "1.18.2-forge-40.2.4"}, flat.Chain)
	require.Len(t, flat.Libraries, 2, "duplicate library coordinate must not double up")
	require.NotNil(t, flat.Downloads.Client, "scalar inherited from parent when child omits it")
}

func TestFlatten_DetectsCycle(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, Descriptor{ID: "a", InheritsFrom: "b", MainClass: "A"})
	writeDescriptor(t, root, Descriptor{ID: "b", InheritsFrom: "a", MainClass: "B"})

	g := NewGraph(store.New(root), fetch.NewHTTPClient(nil), nil)
	_, err := g.Flatten(context.Background(), "a")

	var cyc *errs.CyclicInheritance
	require.ErrorAs(t, err, &cyc)
}

func TestFlatten_IsDeterministicAndIdempotent(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, Descriptor{
		ID:        "1.21",
		MainClass: "net.minecraft.client.main.Main",
		Libraries: []Library{{Name: "org.lwjgl:lwjgl:3.3.3"}},
	})

	g := NewGraph(store.New(root), fetch.NewHTTPClient(nil), nil)
	first, err := g.Flatten(context.Background(), "1.21")
	require.NoError(t, err)
	second, err := g.Flatten(context.Background(), "1.21")
	require.NoError(t, err)

	require.Equal(t, first, second)
}
