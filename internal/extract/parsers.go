package extract

import (
	"encoding/json"
	stdhtml "html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// adzunaStrategy reads the server-rendered description section on Adzuna
// posting pages.
type adzunaStrategy struct{}

func (adzunaStrategy) Extract(doc *goquery.Document) string {
	section := doc.Find("section.adp-body").First()
	if section.Length() == 0 {
		return ""
	}
	return flattenText(section)
}

// linkedinStrategy reads the public posting layout: the description block
// nests the actual markup one level down.
type linkedinStrategy struct{}

func (linkedinStrategy) Extract(doc *goquery.Document) string {
	desc := doc.Find("div.description__text").First()
	if desc.Length() == 0 {
		return ""
	}
	markup := desc.Find("div.show-more-less-html__markup").First()
	if markup.Length() == 0 {
		return ""
	}
	return flattenText(markup)
}

// totaljobsStrategy tries the server-rendered containers first, then falls
// back to the JSON-LD JobPosting block most pages embed for search engines.
type totaljobsStrategy struct{}

func (totaljobsStrategy) Extract(doc *goquery.Document) string {
	dom := doc.Find(`[data-at="jobad-description"], [data-at="jobad-content"], .job-description, #job-description`).First()
	if dom.Length() > 0 {
		if text := flattenText(dom); text != "" {
			return text
		}
	}
	return jobPostingDescription(doc)
}

// jobPostingDescription scans application/ld+json blocks for a JobPosting
// record and returns its description field decoded to plain text. Pages embed
// either a single object or a list.
func jobPostingDescription(doc *goquery.Document) string {
	var result string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		candidates, ok := data.([]any)
		if !ok {
			candidates = []any{data}
		}
		for _, c := range candidates {
			obj, ok := c.(map[string]any)
			if !ok || obj["@type"] != "JobPosting" {
				continue
			}
			descHTML, _ := obj["description"].(string)
			if descHTML == "" {
				continue
			}
			if text := stripTags(stdhtml.UnescapeString(descHTML)); text != "" {
				result = text
				return false
			}
		}
		return true
	})
	return result
}

// stripTags renders an HTML fragment as plain text with line breaks.
func stripTags(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return flattenText(doc.Selection)
}

// flattenText returns the visible text under a selection, one trimmed text
// node per line. goquery's Text() concatenates nodes without separators,
// which glues adjacent block elements together.
func flattenText(sel *goquery.Selection) string {
	var parts []string
	for _, node := range sel.Nodes {
		collectText(node, &parts)
	}
	return strings.Join(parts, "\n")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
