package wiki

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// ErrPageUnreachable marks a fetch that failed at the transport or HTTP level
var ErrPageUnreachable = errors.New("page unreachable")

// maxBodyBytes caps response bodies so a pathological page cannot exhaust memory
const maxBodyBytes = 10 * 1024 * 1024

// resultKey is the colly request-context slot carrying the per-request result holder
const resultKey = "fetchResult"

// Page is one fetched wiki page, immutable once returned
type Page struct {
	Article   string
	URL       string
	Title     string
	Body      []byte
	FetchedAt time.Time
}

// ClientOptions configures the page fetch client
type ClientOptions struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	Parallelism int

	// MetricsCallback receives (pagesFetched, pagesFailed) deltas per request
	MetricsCallback func(pagesFetched, pagesFailed int)
}

// Client fetches wiki pages over HTTP through a shared Colly collector
type Client struct {
	baseURL         string
	collector       *colly.Collector
	metricsCallback func(pagesFetched, pagesFailed int)
}

// fetchResult carries one request's outcome from the collector callbacks to the caller
type fetchResult struct {
	once   sync.Once
	done   chan struct{}
	body   []byte
	status int
	err    error
}

func (r *fetchResult) resolve(body []byte, status int, err error) {
	r.once.Do(func() {
		r.body = body
		r.status = status
		r.err = err
		close(r.done)
	})
}

// NewClient creates a page fetch client
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}

	collector := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.MaxBodySize(maxBodyBytes),
		colly.AllowURLRevisit(), // revisit policy belongs to the traversal, not the transport
	)
	collector.SetRequestTimeout(opts.Timeout)

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: opts.Parallelism,
		Delay:       0,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure collector limits: %w", err)
	}

	c := &Client{
		baseURL:         opts.BaseURL,
		collector:       collector,
		metricsCallback: opts.MetricsCallback,
	}
	c.setupCallbacks()
	return c, nil
}

// setupCallbacks wires the collector's response and error handlers
func (c *Client) setupCallbacks() {
	c.collector.OnResponse(func(r *colly.Response) {
		if c.metricsCallback != nil {
			c.metricsCallback(1, 0) // pagesFetched++
		}
		res, ok := r.Ctx.GetAny(resultKey).(*fetchResult)
		if !ok {
			return
		}
		res.resolve(r.Body, r.StatusCode, nil)
	})

	c.collector.OnError(func(r *colly.Response, err error) {
		if c.metricsCallback != nil {
			c.metricsCallback(0, 1) // pagesFailed++
		}
		var res *fetchResult
		status := 0
		if r != nil {
			status = r.StatusCode
			if holder, ok := r.Ctx.GetAny(resultKey).(*fetchResult); ok {
				res = holder
			}
		}
		if res == nil {
			logrus.Debugf("Fetch error without result holder: %v", err)
			return
		}
		res.resolve(nil, status, err)
	})
}

// FetchPage downloads one article synchronously.
// The caller's context unblocks the wait; an abandoned transfer finishes in the
// background and is discarded
func (c *Client) FetchPage(ctx context.Context, article string) (*Page, error) {
	pageURL := ArticleURL(c.baseURL, article)
	res := &fetchResult{done: make(chan struct{})}

	reqCtx := colly.NewContext()
	reqCtx.Put(resultKey, res)

	started := time.Now()
	go func() {
		if err := c.collector.Request("GET", pageURL, nil, reqCtx, nil); err != nil {
			// OnError usually resolves first; this covers requests rejected
			// before they are issued
			res.resolve(nil, 0, err)
		}
	}()

	select {
	case <-res.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if res.err != nil {
		if res.status > 0 {
			return nil, fmt.Errorf("%w: %s returned status %d: %v", ErrPageUnreachable, article, res.status, res.err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrPageUnreachable, article, res.err)
	}

	logrus.Debugf("Fetched %s (status=%d, bytes=%d) in %v", article, res.status, len(res.body), time.Since(started))

	return &Page{
		Article:   article,
		URL:       pageURL,
		Title:     DisplayTitle(article),
		Body:      res.body,
		FetchedAt: time.Now(),
	}, nil
}
