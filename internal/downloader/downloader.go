// Package downloader moves single image blobs from a source stream to disk,
// gated by the ledger so each image key is fetched exactly once across runs
// and across concurrent workers.
package downloader

import (
	"context"
	"io"
	"time"

	"tgrab/pkg/errors"
	"tgrab/pkg/ledger"
	"tgrab/pkg/logger"
	"tgrab/pkg/storage"
)

// Outcome classifies what happened to one download job
type Outcome int

const (
	// OutcomeDownloaded means the image was fetched and written to disk
	OutcomeDownloaded Outcome = iota
	// OutcomeSkipped means the key was already recorded or in flight
	OutcomeSkipped
	// OutcomeFailed means the fetch or write failed; the key stays unrecorded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ImageStore writes one image stream under a target directory
type ImageStore interface {
	SaveImage(dir string, ordinal int, ext string, r io.Reader) (string, error)
}

// Job is a single image to fetch. Open produces the byte stream plus a
// suggested name for extension detection; the closure carries whichever
// transport the image lives behind.
type Job struct {
	Key     string
	Dir     string
	Ordinal int
	Open    func(ctx context.Context) (io.ReadCloser, string, error)
}

// Downloader executes jobs with ledger-backed dedup
type Downloader struct {
	reservations *ledger.Reservations
	store        ImageStore
	logger       logger.Logger
}

// New creates a downloader
func New(reservations *ledger.Reservations, store ImageStore, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Downloader{
		reservations: reservations,
		store:        store,
		logger:       log,
	}
}

// Fetch runs one job: reserve the key, stream the bytes to disk, then record
// the key. Any failure releases the reservation so a later run retries the
// image. A ledger error is returned as-is so callers can abort the run.
func (d *Downloader) Fetch(ctx context.Context, job Job) (Outcome, error) {
	start := time.Now()

	acquired, err := d.reservations.Acquire(ctx, job.Key)
	if err != nil {
		return OutcomeFailed, err
	}
	if !acquired {
		d.logger.WithField("key", job.Key).Debug("image already fetched, skipping")
		return OutcomeSkipped, nil
	}

	body, name, err := job.Open(ctx)
	if err != nil {
		d.reservations.Release(job.Key)
		d.logger.WithFields(map[string]interface{}{
			"key":   job.Key,
			"error": err.Error(),
		}).Warn("image fetch failed")
		return OutcomeFailed, err
	}
	defer body.Close()

	filename, err := d.store.SaveImage(job.Dir, job.Ordinal, storage.ExtFromName(name), body)
	if err != nil {
		d.reservations.Release(job.Key)
		d.logger.WithFields(map[string]interface{}{
			"key":   job.Key,
			"error": err.Error(),
		}).Warn("image write failed")
		return OutcomeFailed, errors.New(errors.ErrorTypeTransport, "writing image: %v", err)
	}

	if err := d.reservations.Commit(ctx, job.Key, "image"); err != nil {
		return OutcomeFailed, err
	}

	d.logger.WithFields(map[string]interface{}{
		"key":      job.Key,
		"file":     filename,
		"duration": time.Since(start),
	}).Debug("image downloaded")

	return OutcomeDownloaded, nil
}
