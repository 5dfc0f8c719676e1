// Package listing extracts granules from saved HTTP directory index pages.
package listing

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ghrcdaac/granuledb/internal/granule"
)

// modifiedExpr matches the modification column of Apache, nginx and IIS
// style listings: "15-Oct-2026 10:32", "2026-10-15 10:32:07",
// "10/15/2026  10:32 AM".
var modifiedExpr = regexp.MustCompile(`(\d{1,4}[-/][A-Za-z0-9]{1,3}[-/]\d{1,4})\s+(\d{1,2}:\d{2}(?::\d{2})?)(?:\s*([AaPp][Mm])\b)?`)

// Options controls how a listing page is interpreted.
type Options struct {
	// BaseURL resolves relative hrefs. Granule names are the resolved links.
	BaseURL string
	// Pattern keeps only filenames it matches. Nil keeps everything.
	Pattern *regexp.Regexp
}

// Parse reads one index page and returns its file entries in document order.
// Parent, sort and sub-directory links are skipped. A link that appears twice
// is reported once.
func Parse(r io.Reader, opts Options) ([]granule.Granule, error) {
	var base *url.URL
	if opts.BaseURL != "" {
		parsed, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		if !strings.HasSuffix(parsed.Path, "/") {
			parsed.Path += "/"
		}
		base = parsed
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	var (
		results []granule.Granule
		seen    = map[string]struct{}{}
		failure error
	)
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if skipHref(href, a.Text()) {
			return true
		}

		link, err := resolve(base, href)
		if err != nil {
			failure = fmt.Errorf("resolve %q: %w", href, err)
			return false
		}
		filename := fileName(link)
		if filename == "" {
			return true
		}
		if opts.Pattern != nil && !opts.Pattern.MatchString(filename) {
			return true
		}
		if _, ok := seen[link]; ok {
			return true
		}
		seen[link] = struct{}{}

		g := granule.Granule{Name: link, Link: link, Filename: filename}
		g.DateModified, g.TimeModified, g.Meridiem = modified(a)
		results = append(results, g)
		return true
	})
	if failure != nil {
		return nil, failure
	}
	return results, nil
}

// ToBatch keys granules by name. The joined modification columns become the
// Last-Modified fingerprint; listings carry no ETag.
func ToBatch(granules []granule.Granule) granule.Batch {
	batch := make(granule.Batch, len(granules))
	for _, g := range granules {
		parts := make([]string, 0, 3)
		for _, p := range []string{g.DateModified, g.TimeModified, g.Meridiem} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		batch[g.Name] = granule.Fingerprint{LastModified: strings.Join(parts, " ")}
	}
	return batch
}

// ErrNoEntries is returned by callers that require at least one file.
var ErrNoEntries = errors.New("listing contains no file entries")

func skipHref(href, text string) bool {
	switch {
	case href == "", href == "/", href == "./":
		return true
	case strings.HasPrefix(href, "../"), href == "..":
		return true
	case strings.HasPrefix(href, "?"), strings.HasPrefix(href, "#"):
		return true
	case strings.HasPrefix(href, "mailto:"), strings.HasPrefix(href, "javascript:"):
		return true
	case strings.HasSuffix(href, "/"):
		return true
	}
	return strings.EqualFold(strings.TrimSpace(text), "parent directory")
}

func resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

func fileName(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// modified finds the date, time and meridiem that belong to an anchor: the
// sibling cells of a table row, or the text around the anchor in a <pre>
// block (after it for Apache, before it for IIS).
func modified(a *goquery.Selection) (date, clock, meridiem string) {
	if row := a.Closest("tr"); row.Length() > 0 {
		return match(row.Find("td").NotSelection(a.Closest("td")).Text())
	}

	contents := a.Parent().Contents()
	idx := -1
	contents.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if s.IsSelection(a) {
			idx = i
			return false
		}
		return true
	})
	if idx < 0 {
		return "", "", ""
	}
	for _, i := range []int{idx + 1, idx - 1} {
		if i < 0 || i >= contents.Length() {
			continue
		}
		node := contents.Eq(i)
		if goquery.NodeName(node) != "#text" {
			continue
		}
		if d, c, m := match(lastLine(node.Text(), i < idx)); d != "" {
			return d, c, m
		}
	}
	return "", "", ""
}

// lastLine trims a text run to the line adjacent to the anchor.
func lastLine(text string, before bool) string {
	lines := strings.Split(text, "\n")
	if before {
		return lines[len(lines)-1]
	}
	return lines[0]
}

func match(text string) (string, string, string) {
	m := modifiedExpr.FindStringSubmatch(text)
	if m == nil {
		return "", "", ""
	}
	return m[1], m[2], strings.ToUpper(m[3])
}
