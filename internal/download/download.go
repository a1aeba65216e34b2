// Package download mirrors archived image attachments to local disk.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pkg.mon.icu/wumpus/internal/config"
	"pkg.mon.icu/wumpus/internal/storage/entity"
)

const (
	batchSize   = 100
	maxAttempts = 3
	maxNameLen  = 100
)

// Store runs units of work in transactions.
type Store interface {
	Begin(ctx context.Context, fn func(entity.Querier) error) error
}

// Result counts download outcomes of one Run.
type Result struct {
	Downloaded int
	Skipped    int
	Failed     int
}

type Downloader struct {
	cfg     *config.Download
	logger  *zap.SugaredLogger
	storage Store
	client  *http.Client
	backoff time.Duration
}

func New(cfg *config.Download, log *zap.Logger, store Store) *Downloader {
	return &Downloader{
		cfg:     cfg,
		logger:  log.Sugar(),
		storage: store,
		client:  &http.Client{Timeout: cfg.Timeout},
		backoff: 250 * time.Millisecond,
	}
}

// errGone marks attachments the CDN no longer has.
var errGone = errors.New("attachment is gone")

// Run downloads pending image attachments of the guild, or of every guild when
// guildID is nil, until none are left. Attachments interrupted by ctx stay
// pending for the next run.
func (d *Downloader) Run(ctx context.Context, guildID *entity.Snowflake) (*Result, error) {
	res := &Result{}
	var mu sync.Mutex
	for ctx.Err() == nil {
		var batch []*entity.ChannelAttachment
		err := d.storage.Begin(ctx, func(q entity.Querier) (err error) {
			batch, err = entity.FindPendingImages(ctx, q, guildID, batchSize)
			return err
		})
		if err != nil {
			return res, fmt.Errorf("could not list pending attachments: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.cfg.Concurrency)
		for _, a := range batch {
			g.Go(func() error {
				status, err := d.download(gctx, a)
				if gctx.Err() != nil {
					return nil
				}
				mu.Lock()
				switch status {
				case entity.DownloadDownloaded:
					res.Downloaded++
				case entity.DownloadSkipped:
					res.Skipped++
				default:
					res.Failed++
				}
				mu.Unlock()
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return res, err
		}
	}
	d.logger.Infof("Downloaded %d attachments, skipped %d, failed %d.", res.Downloaded, res.Skipped, res.Failed)
	return res, ctx.Err()
}

// download fetches one attachment and records the outcome. The returned error
// is set only when the outcome could not be recorded.
func (d *Downloader) download(ctx context.Context, a *entity.ChannelAttachment) (string, error) {
	rel := path.Join(a.ChannelID.String(), a.ID.String()+"_"+sanitize(a.Filename))
	hash, err := d.fetch(ctx, a.URL, filepath.Join(d.cfg.Dir, filepath.FromSlash(rel)))
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	var localPath, contentHash *string
	status := entity.DownloadDownloaded
	switch {
	case errors.Is(err, errGone):
		status = entity.DownloadSkipped
		d.logger.Debugf("Skipping attachment %s: %s.", a.ID, err)
	case err != nil:
		status = entity.DownloadFailed
		d.logger.Warnf("Failed to download attachment %s: %s.", a.ID, err)
	default:
		localPath, contentHash = &rel, &hash
		d.logger.Debugf("Downloaded attachment %s to %s.", a.ID, rel)
	}

	txCtx := context.WithoutCancel(ctx)
	err = d.storage.Begin(txCtx, func(q entity.Querier) error {
		return entity.SetAttachmentDownload(txCtx, q, a.ID, status, localPath, contentHash)
	})
	if err != nil {
		return status, fmt.Errorf("could not record download of attachment %s: %w", a.ID, err)
	}
	return status, nil
}

// fetch downloads url to dst, retrying server errors, and returns the hex
// sha256 of the content.
func (d *Downloader) fetch(ctx context.Context, url, dst string) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.backoff
	var hash string
	err := backoff.Retry(func() (err error) {
		hash, err = d.fetchOnce(ctx, url, dst)
		if errors.Is(err, errGone) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx))
	return hash, err
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dst string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: %s", errGone, resp.Status)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", backoff.Permanent(fmt.Errorf("unexpected status %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", backoff.Permanent(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return "", backoff.Permanent(err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	_, err = io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", backoff.Permanent(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sanitize makes a file name safe to use as a single path element.
func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	name = strings.TrimLeft(name, ".")
	if len(name) > maxNameLen {
		name = name[len(name)-maxNameLen:]
	}
	if name == "" {
		return "file"
	}
	return name
}
