package main

import (
	"tgrab/pkg/auth"
	"tgrab/pkg/config"
	"tgrab/pkg/logger"
	"tgrab/pkg/ratelimit"
	"tgrab/pkg/scheduler"
	"tgrab/pkg/telegram"
)

// newMessageSource builds the channel/post fetcher when a session backend is
// available. Without one, page targets still work; channel and post targets
// fail soft with a resolution error.
func newMessageSource(cfg *config.Config, limiter ratelimit.Limiter, log logger.Logger) scheduler.MessageSource {
	apiID, apiHash := cfg.Telegram.APIID, cfg.Telegram.APIHash
	if apiID <= 0 || apiHash == "" {
		if creds, err := auth.NewManager().Retrieve(""); err == nil {
			apiID, apiHash = creds.APIID, creds.APIHash
			if creds.Session != "" {
				cfg.Telegram.Session = creds.Session
			}
		}
	}

	session, err := telegram.NewSession(apiID, apiHash, cfg.Telegram.Session)
	if err != nil {
		log.WithError(err).Debug("message source unavailable")
		return nil
	}
	return telegram.NewFetcher(session, limiter, log)
}
