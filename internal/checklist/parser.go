// Package checklist turns markdown QA checklists into ordered, categorized test items.
package checklist

import (
	"bufio"
	"strings"
)

// Item is one pending test definition extracted from a checklist.
type Item struct {
	Index    int    `json:"index"`
	Category string `json:"category"`
	Title    string `json:"title"`
}

// Document is the parsed form of a checklist.
type Document struct {
	Categories []string `json:"categories"`
	Items      []Item   `json:"items"`
}

// skippedSections are structural headings whose checkbox lines are not test items.
var skippedSections = []string{
	"API Endpoint Tests",
	"Playwright Test Outline",
	"Test Data Requirements",
	"Known Issues",
	"Skip Conditions",
	"Quick Reference",
	"Smoke Test Commands",
	"Test Categories",
	"Running Playwright Tests",
	"Verification Plan",
}

const (
	categoryPrefix    = "## "
	subcategoryPrefix = "### "
	itemPrefix        = "- [ ] "
)

// IsSkippedSection reports whether a level-2 heading names a structural section.
func IsSkippedSection(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range skippedSections {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// Parse scans text line by line. "## " opens a category, "### " opens a
// subcategory under it and "- [ ] " lines become items of the innermost open
// heading. Lines outside any category are ignored.
func Parse(text string) Document {
	doc := Document{Categories: []string{}, Items: []Item{}}
	seen := make(map[string]bool)

	var category, subcategory string
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")

		if name, ok := cutMarker(line, categoryPrefix); ok {
			category, subcategory = strings.TrimSpace(name), ""
			if category == "" || IsSkippedSection(category) {
				category = ""
				continue
			}
			if !seen[category] {
				seen[category] = true
				doc.Categories = append(doc.Categories, category)
			}
			continue
		}

		if category == "" {
			continue
		}

		if name, ok := cutMarker(line, subcategoryPrefix); ok {
			subcategory = strings.TrimSpace(name)
			continue
		}

		if title, ok := cutMarker(line, itemPrefix); ok {
			title = strings.TrimSpace(title)
			if title == "" {
				continue
			}
			full := category
			if subcategory != "" {
				full = category + " > " + subcategory
			}
			doc.Items = append(doc.Items, Item{
				Index:    len(doc.Items),
				Category: full,
				Title:    title,
			})
		}
	}
	return doc
}

// cutMarker strips prefix from line and requires at least one character after it.
func cutMarker(line, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(line, prefix)
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}
