package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// ErrDownload wraps any network or storage failure during a model fetch.
var ErrDownload = errors.New("model download failed")

// Fetcher streams model artifacts from their remote repo into the local
// cache. One Fetch call is one DownloadJob run.
type Fetcher struct {
	client *http.Client
	dir    string
}

func NewFetcher(dir string) *Fetcher {
	return &Fetcher{client: http.DefaultClient, dir: dir}
}

// Fetch downloads d's artifact into the cache, emitting human-readable
// progress lines. Cancelling ctx aborts the transfer and removes the
// partial file; the final rename only happens on a complete body.
func (f *Fetcher) Fetch(ctx context.Context, d Descriptor, progress func(string)) error {
	if progress == nil {
		progress = func(string) {}
	}
	progress(fmt.Sprintf("Downloading %s...", d.DisplayName))

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating cache dir: %w", ErrDownload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %s for %s", ErrDownload, resp.Status, d.URL)
	}

	final := filepath.Join(f.dir, d.FileName)
	part := final + ".part"
	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}

	written, err := copyWithProgress(ctx, out, resp.Body, resp.ContentLength, d.DisplayName, progress)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(part)
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		os.Remove(part)
		return fmt.Errorf("%w: truncated body (%d of %d bytes)", ErrDownload, written, resp.ContentLength)
	}

	if err := os.Rename(part, final); err != nil {
		os.Remove(part)
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}

	progress(fmt.Sprintf("%s download complete", d.DisplayName))
	return nil
}

const progressStep = 8 << 20 // report every 8 MiB

func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, name string, progress func(string)) (int64, error) {
	buf := make([]byte, 256<<10)
	var written, lastReport int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if written-lastReport >= progressStep {
				lastReport = written
				if total > 0 {
					progress(fmt.Sprintf("Downloading %s... %d%%", name, written*100/total))
				} else {
					progress(fmt.Sprintf("Downloading %s... %d MB", name, written>>20))
				}
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
