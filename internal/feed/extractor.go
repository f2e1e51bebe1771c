package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"hedgeye-alert-monitor/internal/api"
	"hedgeye-alert-monitor/internal/interfaces"
	"hedgeye-alert-monitor/internal/types"
)

// ErrSessionExpired means the feed bounced the session back to sign-in; the
// session is dead for the rest of the day and must be dropped.
var ErrSessionExpired = errors.New("feed session expired")

// Feed page selectors
const (
	titleSelector   = ".article__header"
	priceSelector   = ".currency.se-live-or-close-price"
	createdSelector = "time[datetime]"
)

// Extractor fetches the feed page with an authenticated session and extracts
// the single most-recent alert.
type Extractor struct {
	baseURL   string
	feedPath  string
	loginPath string
	loc       *time.Location

	now func() time.Time
}

var _ interfaces.Extractor = (*Extractor)(nil)

// NewExtractor creates an extractor. Timestamps are reported in loc, the
// reference market timezone.
func NewExtractor(baseURL, feedPath, loginPath string, loc *time.Location) *Extractor {
	return &Extractor{
		baseURL:   baseURL,
		feedPath:  feedPath,
		loginPath: loginPath,
		loc:       loc,
		now:       time.Now,
	}
}

// LatestAlert returns the most-recent alert on the feed page, or nil when the
// page holds nothing relevant. Only transport and parse failures are errors.
func (e *Extractor) LatestAlert(ctx context.Context, session *types.Session) (*types.AlertRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+e.feedPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	for key, value := range api.BrowserHeaders() {
		req.Header.Set(key, value)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := session.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: HTTP %d", ErrSessionExpired, resp.StatusCode)
	}
	// Auth loss usually shows up as a redirect chain ending on the sign-in page.
	if strings.Contains(resp.Request.URL.Path, e.loginPath) {
		return nil, fmt.Errorf("%w: redirected to sign-in", ErrSessionExpired)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed page: %w", err)
	}

	return e.extract(doc)
}

// extract pulls the alert fields out of the parsed page. A page without a
// title or price is not an alert we care about.
func (e *Extractor) extract(doc *goquery.Document) (*types.AlertRecord, error) {
	title := strings.TrimSpace(doc.Find(titleSelector).First().Text())
	if title == "" {
		return nil, nil
	}

	price := strings.TrimSpace(doc.Find(priceSelector).First().Text())
	if price == "" {
		return nil, nil
	}

	createdRaw, ok := doc.Find(createdSelector).First().Attr("datetime")
	if !ok {
		return nil, errors.New("feed page has no created-at timestamp")
	}
	createdAt, err := time.Parse(time.RFC3339, createdRaw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created-at '%s': %w", createdRaw, err)
	}

	return &types.AlertRecord{
		Title:      title,
		Price:      price,
		CreatedAt:  createdAt.In(e.loc),
		ObservedAt: e.now().In(e.loc),
	}, nil
}
