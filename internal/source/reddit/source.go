package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"forum_harvester/internal/domain"
)

// Config holds Reddit client configuration.
type Config struct {
	BaseURL           string
	OAuthBaseURL      string
	TokenURL          string
	PageSize          int
	Timeout           time.Duration
	RequestsPerMinute int
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	ClientID          string
	ClientSecret      string
	UserAgent         string
}

// Source reads subreddits, their listings and comment trees from the Reddit
// JSON API.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	pageSize       int
	limiter        *rate.Limiter
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	userAgent      string
	logger         *slog.Logger
}

// New creates a Reddit source. With client credentials the OAuth host is
// used, otherwise requests go to the public host anonymously.
func New(cfg Config, logger *slog.Logger) *Source {
	base := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &userAgentTransport{next: http.DefaultTransport, userAgent: cfg.UserAgent},
	}

	httpClient := base
	baseURL := cfg.BaseURL
	authenticated := cfg.ClientID != "" && cfg.ClientSecret != ""
	if authenticated {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		httpClient = cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
		httpClient.Timeout = cfg.Timeout
		baseURL = cfg.OAuthBaseURL
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	}

	maxAttempts := max(cfg.MaxAttempts, 1)

	logger = logger.With("component", "reddit")
	logger.Debug("reddit client configured", "base_url", baseURL, "authenticated", authenticated)

	return &Source{
		httpClient:     httpClient,
		baseURL:        baseURL,
		pageSize:       max(cfg.PageSize, 1),
		limiter:        rate.NewLimiter(limit, 1),
		maxAttempts:    maxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		userAgent:      cfg.UserAgent,
		logger:         logger,
	}
}

// About fetches subreddit metadata.
func (s *Source) About(ctx context.Context, name string) (domain.SourceMeta, error) {
	var thing Thing
	if err := s.get(ctx, "/r/"+url.PathEscape(name)+"/about.json", nil, &thing); err != nil {
		return domain.SourceMeta{}, fmt.Errorf("about r/%s: %w", name, err)
	}
	if thing.Kind != kindSubreddit {
		return domain.SourceMeta{}, fmt.Errorf("about r/%s: %w", name, domain.ErrSourceNotFound)
	}

	var about SubredditAbout
	if err := json.Unmarshal(thing.Data, &about); err != nil {
		return domain.SourceMeta{}, fmt.Errorf("about r/%s: decode: %w", name, err)
	}
	return about.toDomain(), nil
}

// Listing pages through a subreddit listing until limit items were yielded,
// the listing is exhausted or the consumer stops.
func (s *Source) Listing(ctx context.Context, name string, sort domain.SortMode, limit int) iter.Seq2[domain.Item, error] {
	return func(yield func(domain.Item, error) bool) {
		path, query, err := listingPath(name, sort)
		if err != nil {
			yield(domain.Item{}, err)
			return
		}

		remaining := limit
		after := ""
		for page := 0; remaining > 0; page++ {
			query.Set("limit", strconv.Itoa(min(s.pageSize, remaining)))
			if after != "" {
				query.Set("after", after)
			}

			var listing Listing
			if err := s.get(ctx, path, query, &listing); err != nil {
				yield(domain.Item{}, fmt.Errorf("list r/%s/%s: %w", name, sort, err))
				return
			}

			s.logger.Debug("fetched listing page",
				"source", name,
				"sort", sort,
				"page", page,
				"items", len(listing.Data.Children),
			)

			for _, child := range listing.Data.Children {
				if child.Kind != kindLink {
					continue
				}
				var link Link
				if err := json.Unmarshal(child.Data, &link); err != nil {
					yield(domain.Item{}, fmt.Errorf("decode link: %w", err))
					return
				}
				if !yield(link.toDomain(), nil) {
					return
				}
				remaining--
				if remaining == 0 {
					return
				}
			}

			if listing.Data.After == "" || len(listing.Data.Children) == 0 {
				return
			}
			after = listing.Data.After
		}
	}
}

func listingPath(name string, sort domain.SortMode) (string, url.Values, error) {
	prefix := "/r/" + url.PathEscape(name)
	query := url.Values{}

	switch sort {
	case domain.SortHot:
		return prefix + "/hot.json", query, nil
	case domain.SortNew:
		return prefix + "/new.json", query, nil
	case domain.SortTopYear:
		query.Set("t", "year")
		return prefix + "/top.json", query, nil
	case domain.SortTopAll:
		query.Set("t", "all")
		return prefix + "/top.json", query, nil
	default:
		return "", nil, fmt.Errorf("unsupported sort %q", sort)
	}
}

// get performs a rate limited GET with retries on transport failures, 429
// and 5xx responses.
func (s *Source) get(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("raw_json", "1")
	u := s.baseURL + path + "?" + query.Encode()

	backoff := retry.NewExponential(s.initialBackoff)
	if s.maxBackoff > 0 {
		backoff = retry.WithCappedDuration(s.maxBackoff, backoff)
	}
	backoff = retry.WithMaxRetries(uint64(s.maxAttempts-1), backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := s.doRequest(ctx, u, out)
		var terr *temporaryError
		if errors.As(err, &terr) {
			s.logger.Warn("request failed, retrying",
				"path", path,
				"attempt", attempt,
				"error", terr.err,
			)
			return retry.RetryableError(terr.err)
		}
		return err
	})
}

type temporaryError struct {
	err error
}

func (e *temporaryError) Error() string { return e.err.Error() }

func (s *Source) doRequest(ctx context.Context, u string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &temporaryError{fmt.Errorf("%w: execute request: %w", domain.ErrTransport, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", domain.ErrSourceNotFound, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return &temporaryError{fmt.Errorf("%w: unexpected status: %d", domain.ErrTransport, resp.StatusCode)}
	default:
		return fmt.Errorf("%w: unexpected status: %d", domain.ErrTransport, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrTransport, err)
	}
	return nil
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(r)
}
