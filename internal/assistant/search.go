package assistant

import (
	"fmt"
	"strings"

	"campusmart/pkg/domain"
)

// search matches the query against category names, then subcategory names,
// then title/description substrings, then fuzzy title words.
func (a *Assistant) search(query string) ([]domain.Product, error) {
	products, err := a.catalog.ListProducts("", "")
	if err != nil {
		return nil, err
	}
	// newest first
	for i, j := 0, len(products)-1; i < j; i, j = i+1, j-1 {
		products[i], products[j] = products[j], products[i]
	}

	if cat, ok := matchCategory(query); ok {
		return take(products, func(p domain.Product) bool { return p.Category == cat }), nil
	}
	if sub, ok := matchSubCategory(query); ok {
		return take(products, func(p domain.Product) bool { return p.SubCategory == sub }), nil
	}
	if hits := take(products, func(p domain.Product) bool {
		return strings.Contains(strings.ToLower(p.Title), query) ||
			strings.Contains(strings.ToLower(p.Description), query)
	}); len(hits) > 0 {
		return hits, nil
	}
	terms := strings.Fields(query)
	return take(products, func(p domain.Product) bool {
		for _, w := range strings.Fields(strings.ToLower(p.Title)) {
			for _, t := range terms {
				if fuzzyMatch(t, w) {
					return true
				}
			}
		}
		return false
	}), nil
}

func take(products []domain.Product, keep func(domain.Product) bool) []domain.Product {
	var out []domain.Product
	for _, p := range products {
		if keep(p) {
			out = append(out, p)
			if len(out) == maxSearchHits {
				break
			}
		}
	}
	return out
}

func matchCategory(query string) (string, bool) {
	for _, c := range domain.Categories() {
		if sameName(query, c.Name) {
			return c.Name, true
		}
	}
	return "", false
}

func matchSubCategory(query string) (string, bool) {
	for _, c := range domain.Categories() {
		for _, s := range c.SubCategories {
			if sameName(query, s) {
				return s, true
			}
		}
	}
	return "", false
}

// sameName compares case-insensitively and tolerates a plural "s".
func sameName(query, name string) bool {
	name = strings.ToLower(name)
	return query == name || query+"s" == name || query == name+"s"
}

// fuzzyMatch allows up to two edits for words of four letters or more.
func fuzzyMatch(term, word string) bool {
	if len(term) < 4 || len(word) < 3 {
		return false
	}
	return editDistance(term, word, 2) <= 2
}

// editDistance is the Levenshtein distance, cut short once it exceeds limit.
func editDistance(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	if d := len(ra) - len(rb); d > limit || -d > limit {
		return limit + 1
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, cur[j])
		}
		if rowMin > limit {
			return limit + 1
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func formatHits(query string, hits []domain.Product) string {
	if len(hits) == 0 {
		return fmt.Sprintf("I couldn't find any listings matching %q. Try a category such as Books or Electronics, or ask me a question.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Here are listings matching %q:", query)
	for _, p := range hits {
		fmt.Fprintf(&b, "\n- %s — ₹%s (%s/%s)", p.Title, p.Price.StringFixed(2), p.Category, p.SubCategory)
	}
	return b.String()
}
