// Package resolver runs the bounded worker pool that executes the
// download/copy/unpack tasks produced by the asset indexer and launch
// orchestrator.
package resolver

import (
	"archive/zip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mholt/archiver/v3"
	"github.com/sirupsen/logrus"

	"github.com/quasar/mc-launch/internal/fetch"
)

// Kind names a task's execution strategy.
type Kind string

const (
	KindDownload      Kind = "download"
	KindCopy          Kind = "copy"
	KindUnpackExclude Kind = "unpack_exclude"
)

// Task is one unit of resolver work. Tasks must be idempotent,
// commutative, and write only under Target — the pool gives no
// ordering guarantees among them.
type Task struct {
	Kind         Kind
	Source       string // URL (download) or local path (copy/unpack_exclude)
	Target       string
	ExpectedSHA1 string
	ExpectedSize int64
	StripPrefix  string
	ExcludeGlobs []string
	Label        string
}

// Progress is sampled on a 100ms ticker while a Run is in progress, so
// a report does not coincide with a task transition and consecutive
// reports may repeat the same counts. CurrentLabel is not filled in.
type Progress struct {
	Done         int
	Total        int
	CurrentLabel string
	Speed        float64 // bytes/sec, download tasks only
}

// Result aggregates the outcome of a pool run.
type Result struct {
	Completed int
	Failed    int
	Errors    []error
}

// Pool executes tasks with a bounded number of concurrent workers.
type Pool struct {
	Workers int
	Client  *http.Client
	log     *logrus.Entry
}

// New builds a Pool. workers <= 0 falls back to the spec default of 4.
func New(workers int, client *http.Client, log *logrus.Entry) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pool{Workers: workers, Client: client, log: log.WithField("component", "resolver")}
}

// Run drains tasks across the worker pool, reporting progress on the
// optional callback, and returns the aggregated result. A single
// task's failure does not cancel its siblings; the caller decides
// whether the aggregated result is fatal.
func (p *Pool) Run(ctx context.Context, tasks []Task, progress func(Progress)) (*Result, error) {
	if len(tasks) == 0 {
		return &Result{}, nil
	}

	work := make(chan Task, len(tasks))
	for _, t := range tasks {
		work <- t
	}
	close(work)

	var (
		done, failed  int64
		downloaded    int64
		errMu         sync.Mutex
		errs          []error
		cancelRequest int32
	)

	reportDone := make(chan struct{})
	stopReport := make(chan struct{})
	if progress != nil {
		go func() {
			defer close(reportDone)
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			var lastBytes int64
			lastTime := time.Now()
			for {
				select {
				case <-ctx.Done():
					return
				case <-stopReport:
					return
				case <-ticker.C:
					cur := atomic.LoadInt64(&downloaded)
					now := time.Now()
					elapsed := now.Sub(lastTime).Seconds()
					var speed float64
					if elapsed > 0 {
						speed = float64(cur-lastBytes) / elapsed
						lastBytes = cur
						lastTime = now
					}
					progress(Progress{
						Done:  int(atomic.LoadInt64(&done)),
						Total: len(tasks),
						Speed: speed,
					})
				}
			}
		}()
	} else {
		close(reportDone)
	}

	var wg sync.WaitGroup
	for i := 0; i < p.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range work {
				if atomic.LoadInt32(&cancelRequest) != 0 {
					continue
				}
				select {
				case <-ctx.Done():
					atomic.StoreInt32(&cancelRequest, 1)
					continue
				default:
				}

				n, err := p.execute(ctx, t)
				atomic.AddInt64(&downloaded, n)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					errMu.Lock()
					errs = append(errs, fmt.Errorf("%s %s: %w", t.Kind, t.Label, err))
					errMu.Unlock()
					p.log.WithError(err).WithField("task", t.Label).Warn("task failed")
				} else {
					atomic.AddInt64(&done, 1)
				}
			}
		}()
	}
	wg.Wait()
	close(stopReport)
	if progress != nil {
		<-reportDone
	}

	return &Result{
		Completed: int(done),
		Failed:    int(failed),
		Errors:    errs,
	}, nil
}

func (p *Pool) execute(ctx context.Context, t Task) (int64, error) {
	switch t.Kind {
	case KindDownload:
		outcome, err := fetch.FetchToFile(ctx, p.Client, t.Source, t.Target, t.ExpectedSHA1, t.ExpectedSize)
		if err != nil {
			return 0, err
		}
		if outcome == fetch.Downloaded {
			return t.ExpectedSize, nil
		}
		return 0, nil
	case KindCopy:
		return 0, copyVerified(t)
	case KindUnpackExclude:
		return 0, unpackExclude(t)
	default:
		return 0, fmt.Errorf("unknown task kind %q", t.Kind)
	}
}

// copyVerified materializes Target from Source (used for legacy
// virtual-asset and map_to_resources layouts), skipping the copy when
// Target already matches the expected hash.
func copyVerified(t Task) error {
	if t.ExpectedSHA1 != "" {
		if h, err := fetch.HashFile(t.Target); err == nil && h == t.ExpectedSHA1 {
			return nil
		}
	} else if info, err := os.Stat(t.Target); err == nil && t.ExpectedSize > 0 && info.Size() == t.ExpectedSize {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(t.Target), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	src, err := os.Open(t.Source)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	tmp := t.Target + ".partial"
	dst, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating target: %w", err)
	}

	hasher := sha1.New()
	if _, err := io.Copy(io.MultiWriter(dst, hasher), src); err != nil {
		dst.Close()
		os.Remove(tmp)
		return fmt.Errorf("copying: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if t.ExpectedSHA1 != "" {
		if got := hex.EncodeToString(hasher.Sum(nil)); got != t.ExpectedSHA1 {
			os.Remove(tmp)
			return fmt.Errorf("hash mismatch for %s: expected %s, got %s", t.Target, t.ExpectedSHA1, got)
		}
	}

	return os.Rename(tmp, t.Target)
}

// unpackExclude extracts Source (a ZIP archive) into Target, dropping
// the leading StripPrefix path component from every entry and
// skipping entries matched by ExcludeGlobs.
func unpackExclude(t Task) error {
	if err := os.MkdirAll(t.Target, 0o755); err != nil {
		return fmt.Errorf("creating target dir: %w", err)
	}

	z := archiver.NewZip()
	return z.Walk(t.Source, func(f archiver.File) error {
		if f.IsDir() {
			return nil
		}
		name := f.Name()
		if header, ok := f.Header.(zip.FileHeader); ok {
			name = header.Name
		}
		name = strings.TrimPrefix(filepath.ToSlash(name), filepath.ToSlash(t.StripPrefix))
		name = strings.TrimPrefix(name, "/")
		if name == "" {
			return nil
		}

		for _, glob := range t.ExcludeGlobs {
			if matched, _ := path.Match(glob, name); matched {
				return nil
			}
			if strings.HasSuffix(glob, "/") && strings.HasPrefix(name, glob) {
				return nil
			}
		}

		destPath := filepath.Join(t.Target, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, f)
		return err
	})
}

// FormatSpeed renders a bytes/sec rate the way cmd/mc-launch prints
// resolver progress lines.
func FormatSpeed(bytesPerSec float64) string {
	return humanize.Bytes(uint64(bytesPerSec)) + "/s"
}
