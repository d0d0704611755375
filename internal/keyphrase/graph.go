package keyphrase

import (
	"math"
	"sort"
	"strings"

	textrank "github.com/DavidBelicza/TextRank/v2"
)

// Graph ranks phrases with TextRank over the word co-occurrence graph of the
// text. Two-word phrases come first, single words fill the remaining slots.
type Graph struct{}

func NewGraph() *Graph { return &Graph{} }

func (g *Graph) Name() string { return "graph" }

type weighted struct {
	text   string
	weight float64
}

func (g *Graph) Extract(body string, topK int) []string {
	if topK <= 0 {
		topK = DefaultTopK
	}
	out := make([]string, 0, topK)
	if strings.TrimSpace(body) == "" {
		return out
	}

	// A TextRank instance holds its graph, so each call gets a fresh one.
	tr := textrank.NewTextRank()
	tr.Populate(body, language, textrank.NewDefaultRule())
	tr.Ranking(textrank.NewDefaultAlgorithm())

	var phrases []weighted
	for _, p := range textrank.FindPhrases(tr) {
		left, right := strings.ToLower(p.Left), strings.ToLower(p.Right)
		if isStopword(left) || isStopword(right) {
			continue
		}
		phrases = append(phrases, weighted{text: left + " " + right, weight: float64(p.Weight)})
	}
	var words []weighted
	for _, w := range textrank.FindSingleWords(tr) {
		word := strings.ToLower(w.Word)
		if isStopword(word) || len([]rune(word)) < 2 || isNumeric(word) {
			continue
		}
		words = append(words, weighted{text: word, weight: float64(w.Weight)})
	}
	sortWeighted(phrases)
	sortWeighted(words)

	seen := map[string]struct{}{}
	add := func(phrase string) {
		if _, ok := seen[phrase]; ok || len(out) == topK {
			return
		}
		seen[phrase] = struct{}{}
		out = append(out, phrase)
	}
	for _, p := range phrases {
		add(p.text)
	}
	for _, w := range words {
		if !covered(out, w.text) {
			add(w.text)
		}
	}
	return out
}

// sortWeighted orders by weight, rounded so float noise from the ranking
// cannot flip near-equal entries between runs, then alphabetically.
func sortWeighted(items []weighted) {
	round := func(f float64) float64 { return math.Round(f*1e4) / 1e4 }
	sort.SliceStable(items, func(i, j int) bool {
		wi, wj := round(items[i].weight), round(items[j].weight)
		if wi != wj {
			return wi > wj
		}
		return items[i].text < items[j].text
	})
}

func covered(phrases []string, word string) bool {
	for _, p := range phrases {
		if containsWord(p, word) {
			return true
		}
	}
	return false
}
