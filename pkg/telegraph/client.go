// Package telegraph fetches hosted article pages and extracts the image
// references embedded in them.
package telegraph

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tgrab/pkg/errors"
	"tgrab/pkg/logger"
	"tgrab/pkg/ratelimit"
	"tgrab/pkg/retry"
)

// Page holds a fetched document page: the raw markup and every image source
// in document order. Image ordinals are 1-based positions in Images.
type Page struct {
	URL    string
	HTML   []byte
	Images []string
}

// Client fetches document pages and image bytes over HTTP
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	limiter    ratelimit.Limiter
	maxRetries int
	logger     logger.Logger
}

// NewClient creates a new page fetch client
func NewClient(timeout time.Duration, limiter ratelimit.Limiter, maxRetries int, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers: map[string]string{
			"User-Agent": "Mozilla/5.0 (tgrab)",
			"Accept":     "text/html,application/xhtml+xml,image/webp,*/*;q=0.8",
		},
		limiter:    limiter,
		maxRetries: maxRetries,
		logger:     log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// get performs a GET with rate limiting and the client's configured retries.
// The returned response has a 2xx status; the caller owns the body.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.New(errors.ErrorTypeTransport, "rate limit wait: %v", err)
		}
	}

	var resp *http.Response
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return errors.New(errors.ErrorTypeTransport, "creating request: %v", err)
		}
		for key, value := range c.headers {
			req.Header.Set(key, value)
		}

		start := time.Now()
		r, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.WithFields(map[string]interface{}{
				"url":   rawURL,
				"error": err.Error(),
			}).Warn("request failed")
			return errors.New(errors.ErrorTypeTransport, "network error: %v", err)
		}

		c.logger.WithFields(map[string]interface{}{
			"url":      rawURL,
			"status":   r.StatusCode,
			"duration": time.Since(start),
		}).Debug("request completed")

		if r.StatusCode < 200 || r.StatusCode > 299 {
			r.Body.Close()
			return errors.NewHTTP(r.StatusCode, "unexpected status fetching %s", rawURL)
		}

		resp = r
		return nil
	}

	if c.maxRetries > 0 {
		err := retry.Do(op, &retry.Config{
			MaxAttempts: c.maxRetries + 1,
			Backoff:     retry.DefaultExponentialBackoff(),
			RetryIf:     retry.DefaultRetryIf,
			Context:     ctx,
			Logger:      c.logger,
		})
		return resp, err
	}
	return resp, op()
}

// FetchPage retrieves a document page and extracts its image references
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	resp, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeTransport, "reading page body: %v", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeTransport, "parsing page url: %v", err)
	}

	images, err := extractImages(html, base)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"url":    pageURL,
		"images": len(images),
	}).Debug("page fetched")

	return &Page{URL: pageURL, HTML: html, Images: images}, nil
}

// Download streams the body of an image URL. The caller must close the reader.
func (c *Client) Download(ctx context.Context, imageURL string) (io.ReadCloser, error) {
	resp, err := c.get(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// extractImages returns every img src in document order, resolved against the
// page URL. Repeated sources keep their first position only, so ordinals stay
// stable across refetches of unchanged markup.
func extractImages(html []byte, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, errors.New(errors.ErrorTypeHTTP, "parsing markup: %v", err)
	}

	var images []string
	seen := make(map[string]bool)

	doc.Find("img").Each(func(index int, item *goquery.Selection) {
		src, exists := item.Attr("src")
		if !exists || src == "" {
			return
		}

		resolved, err := base.Parse(src)
		if err != nil {
			return
		}
		abs := resolved.String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		images = append(images, abs)
	})

	return images, nil
}
