package parser

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/lysyi3m/awesome-comb/app/catalog"
)

// Parser extracts catalog items from an awesome-list markdown document.
// It is a pure function over the document text: no network, no side effects,
// identical input yields an identical item list.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

var (
	headingRe = regexp.MustCompile(`^(#{2,3})\s+(.+?)\s*$`)
	bulletRe  = regexp.MustCompile(`^\s*[-*]\s+\[([^\]]+)\]\((https?://[^)\s]+)\)\s*[-–—:]?\s*(.*)$`)
)

// Sections that structure the document but carry no catalog entries.
var skippedSections = map[string]bool{
	"contents":          true,
	"table of contents": true,
	"contributing":      true,
	"license":           true,
}

// Run parses a raw markdown document into an ordered item list. Level-two
// headings set the category, level-three headings the subcategory. Within a
// document the first occurrence of a URL wins; later duplicates are dropped
// so the item list is unique by canonical URL.
func (p *Parser) Run(data []byte) []catalog.Item {
	var items []catalog.Item
	seen := make(map[string]bool)

	var category, subcategory string
	inCodeBlock := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			title := stripMarkdown(m[2])
			if len(m[1]) == 2 {
				category = title
				subcategory = ""
			} else {
				subcategory = title
			}
			continue
		}

		if category == "" || skippedSections[strings.ToLower(category)] {
			continue
		}

		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		url := strings.TrimSuffix(m[2], "/")
		if seen[url] {
			continue
		}
		seen[url] = true

		items = append(items, catalog.Item{
			Name:        stripMarkdown(m[1]),
			URL:         url,
			Description: strings.TrimSpace(stripMarkdown(m[3])),
			Category:    category,
			Subcategory: subcategory,
		})
	}

	return items
}

var inlineMarkupRe = regexp.MustCompile("[*_`]")

func stripMarkdown(s string) string {
	return strings.TrimSpace(inlineMarkupRe.ReplaceAllString(s, ""))
}
