// Package render turns resume preview HTML into plain text for the
// terminal.
package render

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var dropTags = []string{"script", "style", "noscript", "head", "svg"}

// Text converts preview HTML to wrapped-ready plain text. Headings become
// upper-cased lines, list items become "• " bullets and block elements are
// separated by newlines.
func Text(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	for _, tag := range dropTags {
		doc.Find(tag).Remove()
	}

	var lines []string
	doc.Find("h1, h2, h3, h4, p, li").Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are emitted by their innermost match.
		if s.Find("p, li").Length() > 0 {
			return
		}
		text := collapse(s.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "h1", "h2":
			lines = append(lines, "", strings.ToUpper(text))
		case "h3", "h4":
			lines = append(lines, "", text)
		case "li":
			lines = append(lines, "• "+text)
		default:
			lines = append(lines, text)
		}
	})

	if len(lines) == 0 {
		return collapse(doc.Text()), nil
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
