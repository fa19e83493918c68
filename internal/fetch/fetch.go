// Package fetch implements the conditional-GET, hash-verified file
// download primitive every other resolver task is built on.
package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/quasar/mc-launch/internal/errs"
)

// Outcome describes how fetch_to_file resolved.
type Outcome int

const (
	Skipped Outcome = iota
	Downloaded
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "SKIPPED"
	case Downloaded:
		return "DOWNLOADED"
	default:
		return "FAILED"
	}
}

// NewHTTPClient builds the retrying HTTP client shared by every
// component that talks to Mojang/Adoptium endpoints: 3 retries with
// exponential backoff starting ~500ms on connection/5xx/timeout
// errors, terminal on 4xx.
func NewHTTPClient(log *logrus.Entry) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	if log != nil {
		rc.Logger = retryableLogAdapter{log}
	} else {
		rc.Logger = nil
	}
	rc.HTTPClient.Transport = &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	rc.HTTPClient.Timeout = 5 * time.Minute
	return rc.StandardClient()
}

type retryableLogAdapter struct{ log *logrus.Entry }

func (a retryableLogAdapter) Printf(format string, args ...interface{}) {
	a.log.Debugf(format, args...)
}

// FetchToFile implements the C1 contract: skip when target_path
// already matches the expected hash (or size, absent a hash);
// otherwise stream to target_path.partial, resuming via Range when a
// partial file already exists, verify, and atomically rename into
// place.
func FetchToFile(ctx context.Context, client *http.Client, url, targetPath, expectedSHA1 string, expectedSize int64) (Outcome, error) {
	if matches, err := verifyExisting(targetPath, expectedSHA1, expectedSize); err == nil && matches {
		return Skipped, nil
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return Failed, fmt.Errorf("creating directory: %w", err)
	}

	partial := targetPath + ".partial"
	var resumeFrom int64
	if fi, err := os.Stat(partial); err == nil {
		resumeFrom = fi.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Failed, fmt.Errorf("creating request: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if resumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	resp, err := client.Do(req)
	if err != nil {
		return Failed, &errs.NetworkError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		resumeFrom = 0
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	case http.StatusPartialContent:
		// server honored our Range request; keep resumeFrom as-is.
	default:
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return Failed, &errs.NetworkError{URL: url, Cause: fmt.Errorf("status %d", resp.StatusCode)}
		}
		return Failed, &errs.NetworkError{URL: url, Cause: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	f, err := os.OpenFile(partial, flags, 0o644)
	if err != nil {
		return Failed, fmt.Errorf("opening partial file: %w", err)
	}

	hasher := sha1.New()
	if resumeFrom > 0 {
		if err := hashExistingPrefix(partial, resumeFrom, hasher); err != nil {
			f.Close()
			os.Remove(partial)
			return Failed, fmt.Errorf("rehashing partial file: %w", err)
		}
	}

	if _, err := io.Copy(io.MultiWriter(f, hasher), resp.Body); err != nil {
		f.Close()
		return Failed, fmt.Errorf("writing file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Failed, fmt.Errorf("closing file: %w", err)
	}

	actual := hex.EncodeToString(hasher.Sum(nil))
	if expectedSHA1 != "" && actual != expectedSHA1 {
		os.Remove(partial)
		return Failed, &errs.HashMismatch{Path: targetPath, Expected: expectedSHA1, Actual: actual}
	}

	if err := os.Rename(partial, targetPath); err != nil {
		return Failed, fmt.Errorf("renaming into place: %w", err)
	}

	return Downloaded, nil
}

// hashExistingPrefix folds the bytes already on disk into hasher
// before the resumed tail is appended, so the final SHA-1 covers the
// whole file rather than just the resumed portion.
func hashExistingPrefix(path string, n int64, hasher io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.CopyN(hasher, f, n)
	return err
}

func verifyExisting(path, expectedSHA1 string, expectedSize int64) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	if expectedSHA1 != "" {
		actual, err := HashFile(path)
		if err != nil {
			return false, err
		}
		return actual == expectedSHA1, nil
	}

	if expectedSize > 0 {
		return info.Size() == expectedSize, nil
	}

	// No hash and no size to check against: presence is enough.
	return true, nil
}

// HashFile computes the SHA-1 of a file already on disk.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
