package wiki

import (
	"net/url"
	"regexp"
	"strings"
)

// Namespace identifies which Wikipedia namespace an article name belongs to
type Namespace int

const (
	NamespaceArticle Namespace = iota
	NamespaceFile
	NamespaceCategory
	NamespaceHelp
	NamespaceSpecial
	NamespaceTalk
	NamespaceProject
	NamespaceTemplate
	NamespacePortal
	NamespaceOther
)

// namespaceNames maps each namespace to a readable label
var namespaceNames = map[Namespace]string{
	NamespaceArticle:  "article",
	NamespaceFile:     "file",
	NamespaceCategory: "category",
	NamespaceHelp:     "help",
	NamespaceSpecial:  "special",
	NamespaceTalk:     "talk",
	NamespaceProject:  "project",
	NamespaceTemplate: "template",
	NamespacePortal:   "portal",
	NamespaceOther:    "other",
}

// String returns the readable label for a namespace
func (n Namespace) String() string {
	if name, ok := namespaceNames[n]; ok {
		return name
	}
	return "other"
}

// Classify determines the namespace of a wiki article name.
// Names are the path segment after /wiki/, e.g. "Alan_Turing" or "File:Logo.svg"
func Classify(name string) Namespace {
	if name == "" {
		return NamespaceOther
	}

	idx := strings.Index(name, ":")
	if idx < 0 {
		return NamespaceArticle
	}

	switch name[:idx] {
	case "File":
		return NamespaceFile
	case "Category":
		return NamespaceCategory
	case "Help":
		return NamespaceHelp
	case "Special":
		return NamespaceSpecial
	case "Talk":
		return NamespaceTalk
	case "Wikipedia":
		return NamespaceProject
	case "Template":
		return NamespaceTemplate
	case "Portal":
		return NamespacePortal
	default:
		// Unknown qualified names (User:, Draft:, interlanguage prefixes) are
		// never navigable content
		return NamespaceOther
	}
}

// IsArticle reports whether a name is a navigable content article.
// Fragment and query links are rejected along with every non-article namespace;
// Main_Page is excluded because it links to everything and means nothing
func IsArticle(name string) bool {
	if name == "" || name == "Main_Page" {
		return false
	}
	if strings.ContainsAny(name, "#?") {
		return false
	}
	return Classify(name) == NamespaceArticle
}

// Normalize converts user input into canonical article-name form (spaces to underscores)
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	return strings.ReplaceAll(name, " ", "_")
}

// ParseArticle extracts a normalized article name from a bare title or a full wiki URL
func ParseArticle(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, "/wiki/"); idx >= 0 {
		raw = raw[idx+len("/wiki/"):]
	}
	return Normalize(raw)
}

// whitespaceRE collapses runs of whitespace in display titles
var whitespaceRE = regexp.MustCompile(`\s+`)

// DisplayTitle renders an article name as readable text (percent-decoded, underscores to spaces)
func DisplayTitle(name string) string {
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(name, " "))
}

// ArticleURL builds the full page URL for an article name
func ArticleURL(baseURL, name string) string {
	return strings.TrimSuffix(baseURL, "/") + "/wiki/" + name
}
