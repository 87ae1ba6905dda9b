package normalize

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxSlugBytes keeps "{identifier}-{slug}.pdf" under the 255 byte file name
// limit of common filesystems.
const maxSlugBytes = 200

var (
	nonSlugChars = regexp.MustCompile(`[^\w\s-]`)
	slugSeps     = regexp.MustCompile(`[-\s]+`)
	spaces       = regexp.MustCompile(`\s+`)
)

// Slugify turns a title into a lowercase, ASCII-only, hyphen-delimited
// string. It is idempotent: Slugify(Slugify(s)) == Slugify(s).
func Slugify(title string) string {
	// NFKD, then drop everything outside ASCII (accents become separate marks first)
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	ascii, _, err := transform.String(t, title)
	if err != nil {
		return ""
	}

	ascii = nonSlugChars.ReplaceAllString(ascii, "")
	ascii = strings.ToLower(strings.TrimSpace(ascii))
	return slugSeps.ReplaceAllString(ascii, "-")
}

// FileIdentifier returns the last path segment of a PDF URL without its
// extension: https://aclweb.org/anthology/2020.acl-main.1.pdf -> 2020.acl-main.1
func FileIdentifier(pdfURL string) string {
	p := pdfURL
	if u, err := url.Parse(pdfURL); err == nil {
		p = u.Path
	}
	base := path.Base(strings.TrimRight(p, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// FileName builds "{identifier}-{slug}.pdf", or "{identifier}.pdf" when
// slugging is off or the title slugs to nothing.
func FileName(identifier, title string, slugTitles bool) string {
	if !slugTitles {
		return identifier + ".pdf"
	}
	slug := truncateSlug(Slugify(title), maxSlugBytes)
	if slug == "" {
		return identifier + ".pdf"
	}
	return identifier + "-" + slug + ".pdf"
}

// truncateSlug cuts slug to at most n bytes, on the last hyphen when there is
// one. Slugs are ASCII, so any byte offset is a rune boundary.
func truncateSlug(slug string, n int) string {
	if len(slug) <= n {
		return slug
	}
	cut := slug[:n]
	if i := strings.LastIndexByte(cut, '-'); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, "-")
}

// NormalizeURL trims the URL and drops its fragment.
func NormalizeURL(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)
	if idx := strings.Index(urlStr, "#"); idx > -1 {
		urlStr = urlStr[:idx]
	}
	return urlStr
}

// ResolveURL resolves href against the page it was found on. Absolute hrefs
// are returned unchanged apart from NormalizeURL.
func ResolveURL(base, href string) string {
	href = NormalizeURL(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil || ref.IsAbs() {
		return href
	}
	return b.ResolveReference(ref).String()
}

// CleanText collapses whitespace (including NBSP) the way rendered titles
// span several lines in the page source.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\u00A0", " ")
	return strings.TrimSpace(spaces.ReplaceAllString(text, " "))
}
