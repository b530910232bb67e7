// Package scheduler drives a crawl run: it classifies target strings, expands
// channels into page and post targets, and dispatches fetches under two
// independent concurrency ceilings, one for links and one for images.
package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/remeh/sizedwaitgroup"

	"tgrab/internal/downloader"
	"tgrab/pkg/classify"
	"tgrab/pkg/errors"
	"tgrab/pkg/ledger"
	"tgrab/pkg/logger"
	"tgrab/pkg/telegram"
	"tgrab/pkg/telegraph"
)

// PageFetcher retrieves document pages and image bytes
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (*telegraph.Page, error)
	Download(ctx context.Context, imageURL string) (io.ReadCloser, error)
}

// MessageSource resolves channels and posts through an authenticated session
type MessageSource interface {
	ResolveChannel(ctx context.Context, handle string) (*telegram.Channel, error)
	AllChannels(ctx context.Context) ([]*telegram.Channel, error)
	FetchPost(ctx context.Context, channelID, postID int64) (*telegram.Message, error)
	DownloadMedia(ctx context.Context, channelID, postID int64) (io.ReadCloser, string, error)
	WalkChannel(ctx context.Context, channelID int64, full bool, fn func(telegram.Message) error) error
}

// TargetStore lays out per-target directories and page markup on disk
type TargetStore interface {
	TargetDir(name string) (string, error)
	SavePage(dir string, html []byte) error
}

// Summary holds the outcome counts for one run
type Summary struct {
	Succeeded int
	Skipped   int
	Failed    int
}

// Options bounds and shapes one run
type Options struct {
	// LinkConcurrency bounds concurrent page/post fetches across the run
	LinkConcurrency int
	// ImageConcurrency bounds concurrent image downloads within one page
	ImageConcurrency int
	// FullCrawl walks entire channel histories instead of the newest page
	FullCrawl bool
}

// Scheduler owns the work queue for a run. Not safe for concurrent Run calls.
type Scheduler struct {
	pages        PageFetcher
	messages     MessageSource
	reservations *ledger.Reservations
	storage      TargetStore
	images       *downloader.Downloader
	opts         Options
	logger       logger.Logger

	wg        sync.WaitGroup
	linkSlots chan struct{}

	mu           sync.Mutex
	summary      Summary
	seenChannels map[int64]bool
	fatalErr     error
	cancel       context.CancelFunc
}

// New creates a scheduler. messages may be nil when no authenticated session
// is configured; channel and post targets then fail soft.
func New(
	pages PageFetcher,
	messages MessageSource,
	reservations *ledger.Reservations,
	store TargetStore,
	images *downloader.Downloader,
	opts Options,
	log logger.Logger,
) *Scheduler {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.LinkConcurrency <= 0 {
		opts.LinkConcurrency = 1
	}
	if opts.ImageConcurrency <= 0 {
		opts.ImageConcurrency = 1
	}

	return &Scheduler{
		pages:        pages,
		messages:     messages,
		reservations: reservations,
		storage:      store,
		images:       images,
		opts:         opts,
		logger:       log,
	}
}

// Run processes every input to a terminal outcome and returns the counts.
// Per-target failures are counted, logged and never abort the run; only a
// ledger failure does, because dedup cannot be guaranteed without it.
func (s *Scheduler) Run(ctx context.Context, inputs []string) (Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.summary = Summary{}
	s.seenChannels = make(map[int64]bool)
	s.fatalErr = nil
	s.cancel = cancel
	s.linkSlots = make(chan struct{}, s.opts.LinkConcurrency)

	for _, input := range inputs {
		target, err := classify.Classify(input)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"input": input,
				"error": err.Error(),
			}).Warn("unrecognized target, skipping")
			s.count(func(sum *Summary) { sum.Failed++ })
			continue
		}

		switch target.Kind {
		case classify.KindMessageChannel:
			// Channel expansion paginates on the caller goroutine so it
			// never occupies a link slot.
			s.expandChannel(ctx, target)
		default:
			s.dispatchLink(ctx, target)
		}
	}

	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary, s.fatalErr
}

func (s *Scheduler) count(fn func(*Summary)) {
	s.mu.Lock()
	fn(&s.summary)
	s.mu.Unlock()
}

// fatal records the first ledger failure and aborts the run
func (s *Scheduler) fatal(err error) {
	s.mu.Lock()
	if s.fatalErr == nil {
		s.fatalErr = err
	}
	s.mu.Unlock()
	s.cancel()
}

// fail counts one failure, escalating ledger errors to a run abort
func (s *Scheduler) fail(target, reason string, err error) {
	s.logger.WithFields(map[string]interface{}{
		"target": target,
		"reason": reason,
		"error":  err.Error(),
	}).Error("target failed")
	s.count(func(sum *Summary) { sum.Failed++ })

	var terr *errors.Error
	if stderrors.As(err, &terr) && errors.IsFatal(terr.Type) {
		s.fatal(err)
	}
}

// dispatchLink runs one page or post target on a link slot
func (s *Scheduler) dispatchLink(ctx context.Context, target classify.Target) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case s.linkSlots <- struct{}{}:
			defer func() { <-s.linkSlots }()
		case <-ctx.Done():
			return
		}

		switch target.Kind {
		case classify.KindDocumentPage:
			s.processPage(ctx, target)
		case classify.KindMessagePost:
			s.processPost(ctx, target)
		}
	}()
}

// processPage fetches a document page, saves its markup and downloads every
// embedded image. The page key is recorded once processing finishes, so a
// later run skips the whole page on its key alone.
func (s *Scheduler) processPage(ctx context.Context, target classify.Target) {
	key := target.Key()

	acquired, err := s.reservations.Acquire(ctx, key)
	if err != nil {
		s.fail(key, "ledger check", err)
		return
	}
	if !acquired {
		s.logger.WithField("target", key).Debug("page already processed, skipping")
		s.count(func(sum *Summary) { sum.Skipped++ })
		return
	}

	page, err := s.pages.FetchPage(ctx, target.URL())
	if err != nil {
		s.reservations.Release(key)
		s.fail(key, "page fetch", err)
		return
	}

	dir, err := s.storage.TargetDir(target.Slug)
	if err != nil {
		s.reservations.Release(key)
		s.fail(key, "target directory", err)
		return
	}
	if err := s.storage.SavePage(dir, page.HTML); err != nil {
		s.reservations.Release(key)
		s.fail(key, "page write", err)
		return
	}

	swg := sizedwaitgroup.New(s.opts.ImageConcurrency)
	for i, src := range page.Images {
		swg.Add()
		go func(ordinal int, src string) {
			defer swg.Done()
			s.downloadImage(ctx, downloader.Job{
				Key:     src,
				Dir:     dir,
				Ordinal: ordinal,
				Open: func(ctx context.Context) (io.ReadCloser, string, error) {
					body, err := s.pages.Download(ctx, src)
					return body, src, err
				},
			})
		}(i+1, src)
	}
	swg.Wait()

	if err := s.reservations.Commit(ctx, key, "page"); err != nil {
		s.fail(key, "ledger record", err)
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"target": key,
		"images": len(page.Images),
	}).Info("page processed")
	s.count(func(sum *Summary) { sum.Succeeded++ })
}

// processPost fetches a single channel post and downloads its media blob.
// A post without media is skipped without a ledger record, so a later edit
// that attaches media is still picked up.
func (s *Scheduler) processPost(ctx context.Context, target classify.Target) {
	key := target.Key()

	if s.messages == nil {
		s.fail(key, "no session", errors.New(errors.ErrorTypeResolution, "post targets need an authenticated session"))
		return
	}

	acquired, err := s.reservations.Acquire(ctx, key)
	if err != nil {
		s.fail(key, "ledger check", err)
		return
	}
	if !acquired {
		s.logger.WithField("target", key).Debug("post already processed, skipping")
		s.count(func(sum *Summary) { sum.Skipped++ })
		return
	}

	msg, err := s.messages.FetchPost(ctx, target.ChannelID, target.PostID)
	if err != nil {
		s.reservations.Release(key)
		s.fail(key, "post fetch", err)
		return
	}

	if !msg.HasMedia {
		s.reservations.Release(key)
		s.logger.WithField("target", key).Debug("post carries no media, skipping")
		s.count(func(sum *Summary) { sum.Skipped++ })
		return
	}

	dir, err := s.storage.TargetDir(fmt.Sprintf("c_%d_%d", target.ChannelID, target.PostID))
	if err != nil {
		s.reservations.Release(key)
		s.fail(key, "target directory", err)
		return
	}

	outcome, err := s.images.Fetch(ctx, downloader.Job{
		Key:     telegram.MediaKey(target.ChannelID, target.PostID, 1),
		Dir:     dir,
		Ordinal: 1,
		Open: func(ctx context.Context) (io.ReadCloser, string, error) {
			return s.messages.DownloadMedia(ctx, target.ChannelID, target.PostID)
		},
	})
	s.countOutcome(outcome, err)
	if outcome == downloader.OutcomeFailed {
		s.reservations.Release(key)
		return
	}

	if err := s.reservations.Commit(ctx, key, "post"); err != nil {
		s.fail(key, "ledger record", err)
		return
	}
	s.count(func(sum *Summary) { sum.Succeeded++ })
}

// downloadImage runs one image job and folds its outcome into the summary
func (s *Scheduler) downloadImage(ctx context.Context, job downloader.Job) {
	outcome, err := s.images.Fetch(ctx, job)
	s.countOutcome(outcome, err)
}

func (s *Scheduler) countOutcome(outcome downloader.Outcome, err error) {
	switch outcome {
	case downloader.OutcomeDownloaded:
		s.count(func(sum *Summary) { sum.Succeeded++ })
	case downloader.OutcomeSkipped:
		s.count(func(sum *Summary) { sum.Skipped++ })
	case downloader.OutcomeFailed:
		s.count(func(sum *Summary) { sum.Failed++ })
		var terr *errors.Error
		if err != nil && stderrors.As(err, &terr) && errors.IsFatal(terr.Type) {
			s.fatal(err)
		}
	}
}

// expandChannel resolves a channel target and walks each channel's history,
// dispatching embedded links and media posts. One unresolvable channel is
// counted as a failure; the remaining channels still run.
func (s *Scheduler) expandChannel(ctx context.Context, target classify.Target) {
	if s.messages == nil {
		s.fail(target.Raw, "no session", errors.New(errors.ErrorTypeResolution, "channel targets need an authenticated session"))
		return
	}

	var channels []*telegram.Channel
	if target.All {
		all, err := s.messages.AllChannels(ctx)
		if err != nil {
			s.fail(target.Raw, "channel listing", err)
			return
		}
		channels = all
	} else {
		ch, err := s.messages.ResolveChannel(ctx, target.Handle)
		if err != nil {
			s.fail(target.Handle, "channel resolution", err)
			return
		}
		channels = []*telegram.Channel{ch}
	}

	for _, ch := range channels {
		if s.seenChannel(ch.ID) {
			continue
		}
		if err := s.walkChannel(ctx, ch); err != nil {
			s.fail(fmt.Sprintf("channel %d", ch.ID), "channel walk", err)
		}
	}
}

func (s *Scheduler) seenChannel(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenChannels[id] {
		return true
	}
	s.seenChannels[id] = true
	return false
}

// walkChannel dispatches every link found in a channel's message texts plus a
// post target for every message carrying media
func (s *Scheduler) walkChannel(ctx context.Context, ch *telegram.Channel) error {
	s.logger.WithFields(map[string]interface{}{
		"channel_id": ch.ID,
		"title":      ch.Title,
		"full":       s.opts.FullCrawl,
	}).Info("walking channel")

	return s.messages.WalkChannel(ctx, ch.ID, s.opts.FullCrawl, func(msg telegram.Message) error {
		for _, found := range classify.FindTargets(msg.Text) {
			if found.Kind == classify.KindMessageChannel {
				continue
			}
			s.dispatchLink(ctx, found)
		}

		if msg.HasMedia {
			s.dispatchLink(ctx, classify.Target{
				Kind:      classify.KindMessagePost,
				Raw:       fmt.Sprintf("t.me/c/%d/%d", ch.ID, msg.ID),
				ChannelID: ch.ID,
				PostID:    msg.ID,
			})
		}
		return ctx.Err()
	})
}
