package papers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"2301.07041", true},
		{"2301.07041v2", true},
		{"1507.00123", true},
		{"2401.12345", true},
		{"0704.0001", true},
		{"1412.1234", true},
		{"math.GT/0309136", true},
		{"hep-th/9901001", true},
		{"hep-th/9901001v3", true},
		{"", false},
		{"not-an-id", false},
		{"2301.0704", false},
		{"1501.1234", false},
		{"0703.1234", false},
		{"2313.07041", false},
		{"2301.070411", false},
		{"23.07041", false},
		{"2301.07041v", false},
		{"http://arxiv.org/abs/2301.07041", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidID(tt.id))
		})
	}
}

func TestExtractArxivID(t *testing.T) {
	assert.Equal(t, "2301.07041", extractArxivID("http://arxiv.org/abs/2301.07041v1"))
	assert.Equal(t, "2301.07041", extractArxivID("http://arxiv.org/abs/2301.07041"))
	assert.Equal(t, "hep-th/9901001", extractArxivID("http://arxiv.org/abs/hep-th/9901001v2"))
	assert.Equal(t, "", extractArxivID("http://example.com/nothing"))
}

const atomEntry = `<entry>
  <id>http://arxiv.org/abs/%s</id>
  <title>  %s  </title>
  <summary>%s</summary>
  <published>2024-01-15T00:00:00Z</published>
  <author><name>Ada Lovelace</name></author>
  <author><name>Alan Turing</name></author>
</entry>`

func atomFeed(entries ...string) string {
	body := ""
	for _, e := range entries {
		body += e
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">` + body + `</feed>`
}

func newTestClient(apiURL, htmlURL string) *Client {
	c := NewClient(apiURL, "reef-test/0.1", 1000)
	c.htmlBase = htmlURL
	return c
}

func TestFetchSourceWithHTMLText(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2301.07041", r.URL.Query().Get("id_list"))
		assert.Equal(t, "reef-test/0.1", r.Header.Get("User-Agent"))
		fmt.Fprint(w, atomFeed(fmt.Sprintf(atomEntry, "2301.07041v1", "Attention Is All You Need", "We propose the Transformer.")))
	}))
	defer api.Close()

	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2301.07041", r.URL.Path)
		fmt.Fprint(w, `<html><body><script>junk()</script><article>The   full
			paper text.</article></body></html>`)
	}))
	defer html.Close()

	c := newTestClient(api.URL, html.URL)
	src, err := c.FetchSource(context.Background(), "2301.07041")
	require.NoError(t, err)

	assert.Equal(t, "2301.07041", src.ArxivID)
	assert.Equal(t, "Attention Is All You Need", src.Title)
	assert.Equal(t, "We propose the Transformer.", src.Abstract)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, src.Authors)
	assert.Equal(t, "The full paper text.", src.Text)
}

func TestFetchSourceFallsBackToAbstract(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, atomFeed(fmt.Sprintf(atomEntry, "2301.07041v1", "A Title", "An abstract.")))
	}))
	defer api.Close()

	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer html.Close()

	c := newTestClient(api.URL, html.URL)
	src, err := c.FetchSource(context.Background(), "2301.07041")
	require.NoError(t, err)

	assert.Equal(t, "A Title\n\nAn abstract.", src.Text)
}

func TestFetchSourceNotFound(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, atomFeed())
	}))
	defer api.Close()

	c := newTestClient(api.URL, api.URL)
	_, err := c.FetchSource(context.Background(), "2301.99999")
	assert.ErrorIs(t, err, ErrPaperNotFound)
}

func TestFetchSourceAPIError(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer api.Close()

	c := newTestClient(api.URL, api.URL)
	_, err := c.FetchSource(context.Background(), "2301.07041")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestListCategory(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "cat:cs.LG", q.Get("search_query"))
		assert.Equal(t, "10", q.Get("start"))
		assert.Equal(t, "2", q.Get("max_results"))

		fmt.Fprint(w, atomFeed(
			fmt.Sprintf(atomEntry, "2401.00001v1", "First", "Abstract one"),
			fmt.Sprintf(atomEntry, "2401.00002v1", "Second", "Abstract two"),
		))
	}))
	defer api.Close()

	c := newTestClient(api.URL, api.URL)
	papers, err := c.ListCategory(context.Background(), "cs.LG", 10, 2)
	require.NoError(t, err)

	require.Len(t, papers, 2)
	assert.Equal(t, "2401.00001", papers[0].ArxivID)
	assert.Equal(t, "First", papers[0].Title)
	assert.Equal(t, "2024-01-15", papers[0].PublishDate)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, papers[0].Authors)
	assert.Equal(t, "2401.00002", papers[1].ArxivID)
}
