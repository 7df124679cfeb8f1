package catalog

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sahel-analytics/epicast/internal/fetcher"
	"github.com/sahel-analytics/epicast/internal/resilience"
)

// RemoteSourceOptions configures a remote archive snapshot source.
type RemoteSourceOptions struct {
	// BaseURL is the archive directory, e.g. ftp://data.example.org/daily
	// or https://archive.example.org/daily. Remote files are expected at
	// BaseURL/<variable>_<YYYYMMDD>.asc.
	BaseURL string

	// CacheDir is where downloaded grids are kept. Files already present
	// are never re-fetched; archive grids are immutable once published.
	CacheDir string

	// CadenceDays is the publication interval of the archive (1 for a
	// daily product, 16 for a 16-day composite). Default 1.
	CadenceDays int

	// EPSG is the CRS of the archive grids.
	EPSG int

	// RequestsPerSecond throttles downloads against the archive host.
	// Default 2.
	RequestsPerSecond float64

	Retry resilience.RetryConfig
}

// RemoteSource mirrors dated grids from a remote FTP or HTTP archive into
// a local cache directory, then serves them like a DirSource.
type RemoteSource struct {
	opts    RemoteSourceOptions
	fetch   fetcher.Fetcher
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewRemoteSource creates a remote archive source. The fetcher is chosen
// by the BaseURL scheme: ftp uses anonymous FTP, http and https use the
// rate-limited HTTP client.
func NewRemoteSource(opts RemoteSourceOptions) (*RemoteSource, error) {
	if opts.CadenceDays <= 0 {
		opts.CadenceDays = 1
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}

	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: parse base url %s", opts.BaseURL)
	}
	var f fetcher.Fetcher
	switch u.Scheme {
	case "ftp":
		f = fetcher.NewFTPFetcher(fetcher.FTPOptions{})
	case "http", "https":
		f = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{RateLimiters: fetcher.DefaultRateLimiters()})
	default:
		return nil, eris.Errorf("catalog: unsupported archive scheme %q", u.Scheme)
	}

	return &RemoteSource{
		opts:    opts,
		fetch:   f,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		log:     zap.L().With(zap.String("component", "catalog")),
	}, nil
}

// Query downloads any missing grids for the variable in [start, end] and
// returns the cached snapshots. A date absent from the archive is skipped
// with a warning; gaps are expected near the present edge of a rolling
// archive and the temporal reducer tolerates them.
func (s *RemoteSource) Query(ctx context.Context, variable string, start, end time.Time) ([]Snapshot, error) {
	if err := os.MkdirAll(s.opts.CacheDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "catalog: create cache dir %s", s.opts.CacheDir)
	}

	var out []Snapshot
	for d := start; !d.After(end); d = d.AddDate(0, 0, s.opts.CadenceDays) {
		name := SnapshotFileName(variable, d)
		local := filepath.Join(s.opts.CacheDir, name)

		if _, err := os.Stat(local); err != nil {
			ok, err := s.download(ctx, name, local)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}

		out = append(out, Snapshot{Variable: variable, Date: d, Path: local, EPSG: s.opts.EPSG})
	}
	return out, nil
}

// download fetches one remote file into the cache. Returns false when the
// file does not exist on the archive.
func (s *RemoteSource) download(ctx context.Context, name, local string) (bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return false, eris.Wrap(err, "catalog: rate limit wait")
	}

	url := strings.TrimRight(s.opts.BaseURL, "/") + "/" + name
	tmp := local + ".part"

	retry := s.opts.Retry
	retry.OnRetry = resilience.RetryLogger("archive", "download")
	err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		_, err := s.fetch.DownloadToFile(ctx, url, tmp)
		return err
	})
	if err != nil {
		_ = os.Remove(tmp)
		if errors.Is(err, fetcher.ErrNotFound) {
			s.log.Warn("snapshot missing from archive", zap.String("url", url))
			return false, nil
		}
		return false, eris.Wrapf(err, "catalog: download %s", url)
	}

	if err := os.Rename(tmp, local); err != nil {
		return false, eris.Wrapf(err, "catalog: move %s into cache", name)
	}
	s.log.Debug("cached snapshot", zap.String("file", name))
	return true, nil
}
