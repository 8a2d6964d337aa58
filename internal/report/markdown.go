package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in the source is dropped, so generated commentary cannot inject
// markup into the dashboard.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderMarkdown converts advisor commentary to HTML.
func RenderMarkdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// PlainText strips markdown formatting for terminal output. Blocks are
// separated by a blank line and list items keep a "- " or "1. " marker.
func PlainText(src string) (string, error) {
	h, err := RenderMarkdown(src)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(h)))
	if err != nil {
		return "", fmt.Errorf("parsing rendered markdown: %w", err)
	}

	var blocks []string
	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		if text := blockText(s); text != "" {
			blocks = append(blocks, text)
		}
	})
	return strings.Join(blocks, "\n\n"), nil
}

func blockText(s *goquery.Selection) string {
	switch name := goquery.NodeName(s); name {
	case "ul", "ol":
		var items []string
		s.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
			marker := "- "
			if name == "ol" {
				marker = strconv.Itoa(i+1) + ". "
			}
			items = append(items, marker+tidyLines(li.Text()))
		})
		return strings.Join(items, "\n")
	case "hr":
		return ""
	case "pre":
		return strings.TrimRight(s.Text(), "\n")
	case "table":
		var rows []string
		s.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("th, td").Each(func(_ int, c *goquery.Selection) {
				cells = append(cells, tidyLines(c.Text()))
			})
			rows = append(rows, strings.Join(cells, " | "))
		})
		return strings.Join(rows, "\n")
	default:
		return tidyLines(s.Text())
	}
}

// tidyLines collapses runs of spaces inside each line and drops blank lines.
func tidyLines(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
