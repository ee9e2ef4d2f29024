// Package papers talks to the arXiv export API. All requests pass through a
// client-side throttle; arXiv asks for no more than one request every few
// seconds.
package papers

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reef-research/backend/internal/storage/models"
	"github.com/reef-research/backend/pkg/logger"
)

var ErrPaperNotFound = errors.New("paper not found on arXiv")

var (
	newIDPattern    = regexp.MustCompile(`^(\d{4})\.(\d{4,5})(v\d+)?$`)
	legacyIDPattern = regexp.MustCompile(`^[a-z\-]+(\.[A-Z]{2})?/\d{7}(v\d+)?$`)
)

// ValidID reports whether id looks like a modern or legacy arXiv
// identifier. Modern ids carry 4-digit sequence numbers through 1412 and
// 5-digit ones from 1501 on.
func ValidID(id string) bool {
	if m := newIDPattern.FindStringSubmatch(id); m != nil {
		yymm, _ := strconv.Atoi(m[1])
		if mm := yymm % 100; mm < 1 || mm > 12 {
			return false
		}
		if len(m[2]) == 4 {
			return yymm >= 704 && yymm <= 1412
		}
		return yymm >= 1501
	}
	return legacyIDPattern.MatchString(id)
}

// Source is one paper's fetched material: API metadata plus whatever full
// text could be scraped from the HTML rendering.
type Source struct {
	ArxivID  string
	Title    string
	Abstract string
	Authors  []string
	Text     string
}

type Client struct {
	apiBase    string
	htmlBase   string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(apiBase, userAgent string, requestsPerSec float64) *Client {
	if apiBase == "" {
		apiBase = "https://export.arxiv.org/api/query"
	}
	if requestsPerSec <= 0 {
		requestsPerSec = 0.33
	}

	return &Client{
		apiBase:   apiBase,
		htmlBase:  "https://arxiv.org/html",
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), 1),
	}
}

// FetchSource returns metadata and text for one paper. The HTML rendering
// is best-effort: older papers have none, in which case the abstract stands
// in for the full text.
func (c *Client) FetchSource(ctx context.Context, arxivID string) (*Source, error) {
	entries, err := c.query(ctx, fmt.Sprintf("%s?id_list=%s&max_results=1", c.apiBase, arxivID))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPaperNotFound, arxivID)
	}

	entry := entries[0]
	src := &Source{
		ArxivID:  arxivID,
		Title:    strings.TrimSpace(entry.Title),
		Abstract: strings.TrimSpace(entry.Summary),
	}
	for _, a := range entry.Authors {
		src.Authors = append(src.Authors, strings.TrimSpace(a.Name))
	}

	fullText, err := c.fetchHTMLText(ctx, arxivID)
	if err != nil {
		logger.Debug("No HTML full text, falling back to abstract",
			zap.String("arxiv_id", arxivID),
			zap.Error(err),
		)
		src.Text = src.Title + "\n\n" + src.Abstract
	} else {
		src.Text = fullText
	}

	return src, nil
}

// ListCategory pages through a category's recent submissions, newest first.
func (c *Client) ListCategory(ctx context.Context, category string, start, maxResults int) ([]models.Paper, error) {
	url := fmt.Sprintf("%s?search_query=cat:%s&start=%d&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		c.apiBase, category, start, maxResults)

	entries, err := c.query(ctx, url)
	if err != nil {
		return nil, err
	}

	papers := make([]models.Paper, 0, len(entries))
	for _, entry := range entries {
		id := extractArxivID(entry.ID)
		if id == "" {
			continue
		}

		p := models.Paper{
			ArxivID:    id,
			Title:      strings.TrimSpace(entry.Title),
			Abstract:   strings.TrimSpace(entry.Summary),
			DOI:        strings.TrimSpace(entry.DOI),
			JournalRef: strings.TrimSpace(entry.JournalRef),
		}
		for _, a := range entry.Authors {
			p.Authors = append(p.Authors, strings.TrimSpace(a.Name))
		}
		if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
			p.PublishDate = t.Format("2006-01-02")
		}

		papers = append(papers, p)
	}

	return papers, nil
}

func (c *Client) query(ctx context.Context, url string) ([]arxivEntry, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("throttle wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	return feed.Entries, nil
}

func (c *Client) fetchHTMLText(ctx context.Context, arxivID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("throttle wait: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.htmlBase, arxivID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("arXiv HTML request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("arXiv HTML returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing arXiv HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("article").Text()
	if text == "" {
		text = doc.Find("body").Text()
	}

	text = regexp.MustCompile(`\s+`).ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty HTML body")
	}

	return text, nil
}

// Atom feed XML structures. DOI and journal ref live in the arXiv extension
// namespace; encoding/xml matches them by local name.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string        `xml:"id"`
	Title      string        `xml:"title"`
	Summary    string        `xml:"summary"`
	Published  string        `xml:"published"`
	DOI        string        `xml:"doi"`
	JournalRef string        `xml:"journal_ref"`
	Authors    []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// extractArxivID pulls the bare ID out of an entry URL like
// "http://arxiv.org/abs/2301.07041v1".
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}

	return id
}
