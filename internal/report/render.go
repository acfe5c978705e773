// Package report turns a session's failed items into one bug card per category.
package report

import (
	"fmt"
	"strings"

	"github.com/p-blackswan/test-dashboard/internal/models"
)

// Uncategorized labels failed items that have no category.
const Uncategorized = "Uncategorized"

// Totals counts every item in a category, not only the failures.
type Totals struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Group is the set of failed items reported on one card.
type Group struct {
	Category string
	Failed   []models.Item
	Totals   Totals
}

func categoryOf(it models.Item) string {
	if strings.TrimSpace(it.Category) == "" {
		return Uncategorized
	}
	return it.Category
}

// GroupFailures groups failed items by category in order of first appearance
// and attaches per-category totals computed over all items of the session.
func GroupFailures(failed, all []models.Item) []Group {
	totals := make(map[string]Totals)
	for _, it := range all {
		cat := categoryOf(it)
		t := totals[cat]
		t.Total++
		switch it.Status {
		case models.ItemPassed:
			t.Passed++
		case models.ItemFailed:
			t.Failed++
		}
		totals[cat] = t
	}

	var groups []Group
	index := make(map[string]int)
	for _, it := range failed {
		cat := categoryOf(it)
		i, ok := index[cat]
		if !ok {
			i = len(groups)
			index[cat] = i
			groups = append(groups, Group{Category: cat})
		}
		groups[i].Failed = append(groups[i].Failed, it)
	}

	for i := range groups {
		t, ok := totals[groups[i].Category]
		if !ok {
			n := len(groups[i].Failed)
			t = Totals{Total: n, Failed: n}
		}
		groups[i].Totals = t
	}
	return groups
}

// CardTitle returns "BUG: <category> - <n> test failure(s)".
func CardTitle(category string, failCount int) string {
	suffix := ""
	if failCount > 1 {
		suffix = "s"
	}
	return fmt.Sprintf("BUG: %s - %d test failure%s", category, failCount, suffix)
}

// Render builds the markdown card description for one category.
func Render(sess *models.Session, g Group) string {
	var b strings.Builder
	b.WriteString("## Manual Test Failures\n\n")
	fmt.Fprintf(&b, "**Project:** %s\n", sess.ProjectID)
	fmt.Fprintf(&b, "**Category:** %s\n", g.Category)
	fmt.Fprintf(&b, "**Session:** %s\n", sess.ID)
	fmt.Fprintf(&b, "**Tested:** %s\n\n", sess.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteString("---\n\n### Failed Tests\n\n")

	for _, it := range g.Failed {
		desc := ""
		if it.ErrorDescription != nil {
			desc = *it.ErrorDescription
		}
		fmt.Fprintf(&b, "#### ❌ %s\n", it.Title)
		fmt.Fprintf(&b, "**Error:** %s\n\n", desc)
	}

	b.WriteString("---\n\n### Session Summary\n")
	fmt.Fprintf(&b, "- Total in category: %d\n", g.Totals.Total)
	fmt.Fprintf(&b, "- Passed: %d\n", g.Totals.Passed)
	fmt.Fprintf(&b, "- Failed: %d\n", g.Totals.Failed)
	return b.String()
}
