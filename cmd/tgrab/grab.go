package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tgrab/internal/downloader"
	"tgrab/pkg/config"
	"tgrab/pkg/ledger"
	"tgrab/pkg/logger"
	"tgrab/pkg/ratelimit"
	"tgrab/pkg/scheduler"
	"tgrab/pkg/storage"
	"tgrab/pkg/telegraph"
)

var (
	// Grab command flags
	outputDir        string
	ledgerPath       string
	linkConcurrency  int
	imageConcurrency int
	fullCrawl        bool
	maxRetries       int
)

// grabCmd represents the grab command
var grabCmd = &cobra.Command{
	Use:   "grab [targets...]",
	Short: "Download all images referenced by the given targets",
	Long: `Download every image referenced by the given targets, skipping anything
fetched in a previous run.

A target is one of:
  - a telegra.ph or graph.org page URL
  - a t.me/c/<channel>/<post> message link
  - a @channel handle (walks the channel history for links and media)
  - the word "all" (walks every channel the session can see)

Targets are read from the arguments, or from stdin, one per line, when no
arguments are given. Channel and post targets need an authenticated
message-source session; page targets work without one.

The ledger database remembers every processed link and image. Deleting it
makes the next run refetch everything.`,
	Example: `  # Grab one page
  tgrab grab https://telegra.ph/Some-Article-05-17

  # Grab a post and a whole channel, walking the full history
  tgrab grab https://t.me/c/1234567/89 @somechannel

  # Feed targets from a file
  tgrab grab < links.txt

  # Only the newest slice of each channel history
  tgrab grab all --full=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runGrab(cmd, args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(grabCmd)

	grabCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads")
	grabCmd.Flags().StringVar(&ledgerPath, "ledger", "", "path to the dedup ledger database")
	grabCmd.Flags().IntVar(&linkConcurrency, "link-concurrency", 0, "concurrent page/post fetches")
	grabCmd.Flags().IntVar(&imageConcurrency, "image-concurrency", 0, "concurrent image downloads per page")
	grabCmd.Flags().BoolVar(&fullCrawl, "full", true, "walk entire channel histories")
	grabCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "retry attempts for failed requests")
}

func runGrab(cmd *cobra.Command, args []string) {
	targets := readTargets(args)
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, "no targets given")
		os.Exit(1)
	}

	flags := map[string]interface{}{
		"output":            outputDir,
		"ledger":            ledgerPath,
		"link-concurrency":  linkConcurrency,
		"image-concurrency": imageConcurrency,
		"log-level":         logLevel,
	}
	if cmd.Flags().Changed("full") {
		flags["full"] = fullCrawl
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}
	if maxRetries > 0 {
		cfg.Download.MaxRetries = maxRetries
	}

	logger.Initialize(&cfg.Logging)
	log := logger.GetLogger()
	log.WithField("version", version).Info("tgrab starting")

	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to open ledger")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Error("failed to close ledger")
		}
	}()

	manager, err := storage.NewManager(cfg.Output.BaseDirectory)
	if err != nil {
		log.WithError(err).Error("failed to prepare output directory")
		store.Close()
		os.Exit(1)
	}

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)
	pages := telegraph.NewClient(cfg.Download.DownloadTimeout, limiter, cfg.Download.MaxRetries, log)
	pages.SetHeader("User-Agent", cfg.Telegram.UserAgent)

	reservations := ledger.NewReservations(store)
	images := downloader.New(reservations, manager, log)

	sched := scheduler.New(pages, newMessageSource(cfg, limiter, log), reservations, manager, images, scheduler.Options{
		LinkConcurrency:  cfg.Download.LinkConcurrency,
		ImageConcurrency: cfg.Download.ImageConcurrency,
		FullCrawl:        cfg.Download.FullCrawl,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := sched.Run(ctx, targets)
	fmt.Printf("done: %d succeeded, %d skipped, %d failed\n",
		summary.Succeeded, summary.Skipped, summary.Failed)
	if err != nil {
		log.WithError(err).Error("run aborted")
		store.Close()
		os.Exit(1)
	}
}

// readTargets returns the positional arguments, or stdin lines when none are
// given, with blank lines and #-comments dropped
func readTargets(args []string) []string {
	if len(args) > 0 {
		return args
	}

	var targets []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	return targets
}
