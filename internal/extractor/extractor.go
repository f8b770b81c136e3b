package extractor

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/wiki-pathfinder/internal/wiki"
)

const wikiPrefix = "/wiki/"

// LinkCandidate is one outgoing article link with the text surrounding its anchor
type LinkCandidate struct {
	Article  string
	URL      string
	Anchor   string
	Context  string
	Source   string
	Position int
}

// Options bounds the context window captured around each anchor
type Options struct {
	WindowChars int
	RadiusChars int
}

// Extractor turns fetched pages into deduplicated link candidates
type Extractor struct {
	windowChars int
	radiusChars int
}

// New creates an extractor, falling back to default window bounds for zero values
func New(opts Options) *Extractor {
	if opts.WindowChars <= 0 {
		opts.WindowChars = 320
	}
	if opts.RadiusChars <= 0 {
		opts.RadiusChars = 120
	}
	return &Extractor{
		windowChars: opts.WindowChars,
		radiusChars: opts.RadiusChars,
	}
}

// whitespaceRE collapses runs of whitespace inside context windows
var whitespaceRE = regexp.MustCompile(`\s+`)

// Extract parses a page and returns its article-link candidates in page order,
// first occurrence winning on duplicates. Unparsable content yields an empty
// list so a broken page reads as a dead end instead of an error
func (e *Extractor) Extract(page *wiki.Page) []LinkCandidate {
	if page == nil || len(page.Body) == 0 {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		logrus.Debugf("Unparsable content for %s: %v", page.Article, err)
		return nil
	}

	// Strip non-content elements before any text capture
	doc.Find("script, style").Remove()

	baseURL := page.URL
	if idx := strings.Index(baseURL, wikiPrefix); idx >= 0 {
		baseURL = baseURL[:idx]
	}

	seen := make(map[string]bool)
	var candidates []LinkCandidate

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.HasPrefix(href, wikiPrefix) {
			return
		}
		name := href[len(wikiPrefix):]

		if !wiki.IsArticle(name) || seen[name] {
			return
		}

		anchor := collapseSpace(sel.Text())
		parentText := collapseSpace(sel.Parent().Text())
		if parentText == "" {
			parentText = anchor
		}
		if parentText == "" {
			return
		}

		seen[name] = true
		candidates = append(candidates, LinkCandidate{
			Article:  name,
			URL:      baseURL + wikiPrefix + name,
			Anchor:   anchor,
			Context:  e.contextWindow(parentText, anchor),
			Source:   page.URL,
			Position: len(candidates),
		})
	})

	return candidates
}

// contextWindow clips the anchor's surrounding text to the configured bounds.
// When the anchor is found inside the text, the window is centered on it;
// otherwise the leading 2×radius runes are kept
func (e *Extractor) contextWindow(text, anchor string) string {
	runes := []rune(text)
	if len(runes) <= e.windowChars {
		return strings.TrimSpace(text)
	}

	idx := -1
	if anchor != "" {
		lowerText := strings.ToLower(text)
		if byteIdx := strings.Index(lowerText, strings.ToLower(anchor)); byteIdx >= 0 {
			idx = utf8.RuneCountInString(lowerText[:byteIdx])
		}
	}

	if idx < 0 {
		return strings.TrimSpace(string(runes[:2*e.radiusChars]))
	}

	start := idx - e.radiusChars
	if start < 0 {
		start = 0
	}
	end := idx + utf8.RuneCountInString(anchor) + e.radiusChars
	if end > len(runes) {
		end = len(runes)
	}
	return strings.TrimSpace(string(runes[start:end]))
}

// collapseSpace trims text and squeezes internal whitespace runs to single spaces
func collapseSpace(text string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}
