package news

import (
	"encoding/xml"
	"io"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	apperrors "github.com/mogascan/portfolio-risk-tracker-sub000/internal/errors"
)

// Headline is one news item after parsing, source-agnostic.
type Headline struct {
	Title       string
	Summary     string
	Source      string
	PublishedAt time.Time
}

// rssDocument covers the RSS 2.0 shape the tracked feeds use.
type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// atomDocument covers Atom feeds.
type atomDocument struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Content string `xml:"content"`
	Updated string `xml:"updated"`
}

var bodyConverter = htmltomarkdown.NewConverter("", true, nil)

// cleanBody strips feed HTML down to plain markdown text.
func cleanBody(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	md, err := bodyConverter.ConvertString(raw)
	if err != nil {
		return raw
	}
	return strings.TrimSpace(md)
}

// parseFeedTime tries the timestamp layouts seen across the tracked
// feeds. A zero time means the layout was unrecognized.
func parseFeedTime(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		"Mon, 2 Jan 2006 15:04:05 -0700",
	} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// ParseFeed decodes an RSS or Atom document, tolerating non-UTF-8
// charsets. source labels the resulting headlines.
func ParseFeed(r io.Reader, source string) ([]Headline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSourceUnavailable, "reading feed body", apperrors.CategoryTemporary)
	}

	if items, err := parseRSS(data, source); err == nil {
		return items, nil
	}
	if items, err := parseAtom(data, source); err == nil {
		return items, nil
	}

	// Not XML at all: some sources serve a plain HTML page. Scrape the
	// headline elements instead.
	return scrapeHeadlines(data, source)
}

func newXMLDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

func parseRSS(data []byte, source string) ([]Headline, error) {
	var doc rssDocument
	if err := newXMLDecoder(data).Decode(&doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSourceParseError, "decoding rss feed", apperrors.CategoryPermanent)
	}
	if len(doc.Channel.Items) == 0 {
		return nil, apperrors.Permanent(apperrors.CodeSourceParseError, "rss feed has no items")
	}

	headlines := make([]Headline, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		headlines = append(headlines, Headline{
			Title:       strings.TrimSpace(item.Title),
			Summary:     cleanBody(item.Description),
			Source:      source,
			PublishedAt: parseFeedTime(item.PubDate),
		})
	}
	return headlines, nil
}

func parseAtom(data []byte, source string) ([]Headline, error) {
	var doc atomDocument
	if err := newXMLDecoder(data).Decode(&doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSourceParseError, "decoding atom feed", apperrors.CategoryPermanent)
	}
	if len(doc.Entries) == 0 {
		return nil, apperrors.Permanent(apperrors.CodeSourceParseError, "atom feed has no entries")
	}

	headlines := make([]Headline, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		body := entry.Summary
		if body == "" {
			body = entry.Content
		}
		headlines = append(headlines, Headline{
			Title:       strings.TrimSpace(entry.Title),
			Summary:     cleanBody(body),
			Source:      source,
			PublishedAt: parseFeedTime(entry.Updated),
		})
	}
	return headlines, nil
}

// scrapeHeadlines pulls headline text out of an HTML page, for sources
// with no feed endpoint.
func scrapeHeadlines(data []byte, source string) ([]Headline, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSourceParseError, "parsing headline page", apperrors.CategoryPermanent)
	}

	var headlines []Headline
	doc.Find("article h2, article h3, h2.headline, h3.headline").Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Text())
		if title == "" {
			return
		}
		summary := strings.TrimSpace(sel.Parent().Find("p").First().Text())
		headlines = append(headlines, Headline{
			Title:   title,
			Summary: summary,
			Source:  source,
		})
	})

	if len(headlines) == 0 {
		return nil, apperrors.Permanent(apperrors.CodeSourceParseError, "no headlines found in page")
	}
	return headlines, nil
}
