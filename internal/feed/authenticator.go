package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"hedgeye-alert-monitor/internal/interfaces"
	"hedgeye-alert-monitor/internal/logger"
	"hedgeye-alert-monitor/internal/types"
)

// ErrAuthenticationFailed means the sign-in flow completed without leaving
// the sign-in page (bad credentials or the site rejected the attempt).
var ErrAuthenticationFailed = errors.New("authentication failed")

// Browser user agents rotated across login attempts
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
}

// Authenticator performs the form-based sign-in flow and yields an
// authenticated session whose HTTP client carries the site cookies.
type Authenticator struct {
	baseURL   string
	loginPath string
	timeout   time.Duration
}

var _ interfaces.Authenticator = (*Authenticator)(nil)

// NewAuthenticator creates an authenticator for the feed site.
func NewAuthenticator(baseURL, loginPath string, timeout time.Duration) *Authenticator {
	return &Authenticator{
		baseURL:   baseURL,
		loginPath: loginPath,
		timeout:   timeout,
	}
}

// Authenticate loads the sign-in page, submits the credential form with the
// page's CSRF token, and transfers the resulting cookies onto a fresh HTTP
// client. Success is judged the way a human would: the browser ended up
// somewhere other than the sign-in page.
func (a *Authenticator) Authenticate(ctx context.Context, account types.Account) (*types.Session, error) {
	loginURL := a.baseURL + a.loginPath

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.Async(false),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(a.timeout)

	userAgent := userAgents[rand.Intn(len(userAgents))]
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})

	var csrfToken string
	c.OnHTML(`input[name="authenticity_token"]`, func(e *colly.HTMLElement) {
		if csrfToken == "" {
			csrfToken = e.Attr("value")
		}
	})
	c.OnHTML(`meta[name="csrf-token"]`, func(e *colly.HTMLElement) {
		if csrfToken == "" {
			csrfToken = e.Attr("content")
		}
	})

	var finalURL string
	c.OnResponse(func(r *colly.Response) {
		finalURL = r.Request.URL.String()
	})

	// Fetch the sign-in page first to pick up the CSRF token and cookies.
	if err := c.Visit(loginURL); err != nil {
		return nil, fmt.Errorf("failed to load sign-in page: %w", err)
	}

	form := map[string]string{
		"user[email]":    account.Email,
		"user[password]": account.Password,
	}
	if csrfToken != "" {
		form["authenticity_token"] = csrfToken
	} else {
		logger.Warn(ctx, "No CSRF token found on sign-in page, submitting without one", "account", account.Email)
	}

	if err := c.Post(loginURL, form); err != nil {
		return nil, fmt.Errorf("sign-in form submission failed: %w", err)
	}

	// A successful login redirects away from the sign-in page.
	if finalURL == loginURL {
		return nil, fmt.Errorf("%w for %s", ErrAuthenticationFailed, account.Email)
	}

	client, err := a.sessionClient(c)
	if err != nil {
		return nil, err
	}

	return &types.Session{
		Account:       account,
		Client:        client,
		EstablishedAt: time.Now(),
	}, nil
}

// sessionClient transfers the collector's cookies onto a plain HTTP client so
// the extractor can poll the feed without dragging the scraper along.
func (a *Authenticator) sessionClient(c *colly.Collector) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	base, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %s: %w", a.baseURL, err)
	}
	jar.SetCookies(base, c.Cookies(a.baseURL))

	return &http.Client{
		Jar:     jar,
		Timeout: a.timeout,
	}, nil
}
