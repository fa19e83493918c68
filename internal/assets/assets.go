// Package assets resolves a version's asset index into a concrete
// fetch plan of resolver tasks.
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/quasar/mc-launch/internal/fetch"
	"github.com/quasar/mc-launch/internal/resolver"
	"github.com/quasar/mc-launch/internal/store"
	"github.com/quasar/mc-launch/internal/version"
)

// Object is one entry of an asset index's "objects" map.
type Object struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Index is a parsed assets/indexes/<id>.json document.
type Index struct {
	Objects        map[string]Object `json:"objects"`
	Virtual        bool              `json:"virtual,omitempty"`
	MapToResources bool              `json:"map_to_resources,omitempty"`
}

const objectsBaseURL = "https://resources.download.minecraft.net"

// Load fetches the asset index named by ref into the content store
// (skipping the download when already present and hash-valid) and
// parses it.
func Load(ctx context.Context, client *http.Client, s *store.Store, ref *version.AssetIndexRef) (*Index, error) {
	target := s.AssetIndexPath(ref.ID)
	if _, err := fetch.FetchToFile(ctx, client, ref.URL, target, ref.SHA1, ref.Size); err != nil {
		return nil, fmt.Errorf("fetching asset index %s: %w", ref.ID, err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("reading asset index %s: %w", ref.ID, err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing asset index %s: %w", ref.ID, err)
	}
	return &idx, nil
}

// Plan turns a parsed index into resolver tasks. Downloads are
// returned separately from the copy tasks that materialize the legacy
// virtual or map-to-resources layouts, because those copies read the
// object a download task writes — the caller must drain downloads
// through the resolver pool before running copies, since the pool
// gives no ordering guarantee within a single Run.
func Plan(s *store.Store, indexID string, idx *Index) (downloads, copies []resolver.Task) {
	downloads = make([]resolver.Task, 0, len(idx.Objects))

	for logicalPath, obj := range idx.Objects {
		objectPath := s.AssetObjectPath(obj.Hash)
		prefix := obj.Hash
		if len(prefix) > 2 {
			prefix = obj.Hash[:2]
		}

		downloads = append(downloads, resolver.Task{
			Kind:         resolver.KindDownload,
			Source:       fmt.Sprintf("%s/%s/%s", objectsBaseURL, prefix, obj.Hash),
			Target:       objectPath,
			ExpectedSHA1: obj.Hash,
			ExpectedSize: obj.Size,
			Label:        logicalPath,
		})

		if idx.Virtual {
			copies = append(copies, resolver.Task{
				Kind:         resolver.KindCopy,
				Source:       objectPath,
				Target:       s.AssetVirtualPath(indexID, logicalPath),
				ExpectedSHA1: obj.Hash,
				ExpectedSize: obj.Size,
				Label:        logicalPath,
			})
		}
		if idx.MapToResources {
			copies = append(copies, resolver.Task{
				Kind:         resolver.KindCopy,
				Source:       objectPath,
				Target:       s.ResourcesPath(logicalPath),
				ExpectedSHA1: obj.Hash,
				ExpectedSize: obj.Size,
				Label:        logicalPath,
			})
		}
	}

	return downloads, copies
}
