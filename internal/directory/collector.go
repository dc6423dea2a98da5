package directory

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/roster-cli/internal/resilience"
)

// ErrNoMembers is returned for a profile page in neither known layout.
var ErrNoMembers = eris.New("directory: no members section found")

// PageCache stores fetched profile pages. Optional.
type PageCache interface {
	GetCachedPage(ctx context.Context, url string) ([]byte, error)
	SetCachedPage(ctx context.Context, url string, content []byte, ttl time.Duration) error
}

// Options configures a Collector.
type Options struct {
	// BaseURL resolves relative profile URLs.
	BaseURL     string
	Concurrency int
	// RatePerSecond limits requests to the directory host.
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
	UserAgent     string
	Retry         resilience.RetryConfig
	Cache         PageCache
	CacheTTL      time.Duration
	HTTPClient    *http.Client
}

// Collector fetches organization profile pages and parses their members.
type Collector struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewCollector creates a collector, filling unset options with defaults.
func NewCollector(opts Options) *Collector {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = opts.Concurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "roster-cli/1.0"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Collector{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		log:     zap.L().With(zap.String("component", "directory.collector")),
	}
}

// Collect harvests every organization concurrently. Organizations that
// fail after retries are logged and skipped; the roster keeps input order.
func (c *Collector) Collect(ctx context.Context, orgs []Organization) (Roster, error) {
	results := make([]*OrganizationBatch, len(orgs))
	var ok, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for i, org := range orgs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			batch, err := c.collectOne(gctx, org)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.log.Warn("skipping organization",
					zap.String("organization", org.Name),
					zap.String("url", org.ProfileURL),
					zap.Error(err),
				)
				failed.Add(1)
				return nil
			}
			results[i] = batch
			ok.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "directory: collect")
	}

	roster := make(Roster, 0, ok.Load())
	members := 0
	for _, r := range results {
		if r != nil {
			roster = append(roster, *r)
			members += len(r.Members)
		}
	}

	c.log.Info("harvest complete",
		zap.Int("organizations", len(orgs)),
		zap.Int64("collected", ok.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int("members", members),
	)
	return roster, nil
}

func (c *Collector) collectOne(ctx context.Context, org Organization) (*OrganizationBatch, error) {
	pageURL, err := c.resolve(org.ProfileURL)
	if err != nil {
		return nil, err
	}

	body, err := c.page(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseMembers(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if parsed.Layout == LayoutNotFound {
		return nil, eris.Wrapf(ErrNoMembers, "url %s", pageURL)
	}

	c.log.Debug("parsed organization",
		zap.String("organization", org.Name),
		zap.String("layout", parsed.Layout.String()),
		zap.Int("members", len(parsed.Members)),
	)
	return &OrganizationBatch{
		OrganizationName: org.Name,
		ProfileURL:       pageURL,
		BatchTag:         org.BatchTag,
		Members:          parsed.Members,
	}, nil
}

// page returns the body of pageURL, from the cache when fresh.
func (c *Collector) page(ctx context.Context, pageURL string) ([]byte, error) {
	if c.opts.Cache != nil {
		cached, err := c.opts.Cache.GetCachedPage(ctx, pageURL)
		if err != nil {
			c.log.Warn("page cache read failed", zap.String("url", pageURL), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	body, err := resilience.DoVal(ctx, c.opts.Retry, func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, pageURL)
	})
	if err != nil {
		return nil, err
	}

	if c.opts.Cache != nil {
		if err := c.opts.Cache.SetCachedPage(ctx, pageURL, body, c.opts.CacheTTL); err != nil {
			c.log.Warn("page cache write failed", zap.String("url", pageURL), zap.Error(err))
		}
	}
	return body, nil
}

func (c *Collector) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "directory: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "directory: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "directory: get %s", pageURL), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "directory: read body"), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("directory: get %s: unexpected status %d", pageURL, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}
	return body, nil
}

func (c *Collector) resolve(profileURL string) (string, error) {
	ref, err := url.Parse(profileURL)
	if err != nil {
		return "", eris.Wrapf(err, "directory: parse url %q", profileURL)
	}
	if ref.IsAbs() || c.opts.BaseURL == "" {
		return ref.String(), nil
	}
	base, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return "", eris.Wrapf(err, "directory: parse base url %q", c.opts.BaseURL)
	}
	return base.ResolveReference(ref).String(), nil
}
