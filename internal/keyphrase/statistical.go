package keyphrase

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// MaxNGram is the longest candidate phrase the statistical strategy emits.
const MaxNGram = 3

// Statistical is an unsupervised single-document scorer in the style of YAKE.
// Every word gets a score from its casing, position, frequency, context spread
// and sentence dispersion; candidate n-grams combine their words' scores. Lower
// is better.
type Statistical struct {
	MaxNGram int

	sentenceSplit *regexp.Regexp
	tokenPattern  *regexp.Regexp
}

func NewStatistical() *Statistical {
	return &Statistical{
		MaxNGram:      MaxNGram,
		sentenceSplit: regexp.MustCompile(`[.!?;:\n\r]+`),
		tokenPattern:  regexp.MustCompile(`\p{L}[\p{L}\p{N}'’\-]*|\p{N}+(?:\.\p{N}+)?`),
	}
}

func (s *Statistical) Name() string { return "statistical" }

type wordStats struct {
	tf        float64
	tfUpper   float64
	tfAcronym float64
	sentences []int
	left      map[string]struct{}
	right     map[string]struct{}
	leftN     float64
	rightN    float64
	score     float64
}

type candidate struct {
	words []string
	tf    float64
	first int
}

func (s *Statistical) Extract(body string, topK int) []string {
	if topK <= 0 {
		topK = DefaultTopK
	}
	maxN := s.MaxNGram
	if maxN <= 0 {
		maxN = MaxNGram
	}

	sentences := s.sentences(body)
	if len(sentences) == 0 {
		return []string{}
	}

	stats := map[string]*wordStats{}
	get := func(w string) *wordStats {
		st, ok := stats[w]
		if !ok {
			st = &wordStats{left: map[string]struct{}{}, right: map[string]struct{}{}}
			stats[w] = st
		}
		return st
	}

	cands := map[string]*candidate{}
	var order int
	for si, tokens := range sentences {
		for i, tok := range tokens {
			w := strings.ToLower(tok)
			st := get(w)
			st.tf++
			if len(st.sentences) == 0 || st.sentences[len(st.sentences)-1] != si {
				st.sentences = append(st.sentences, si)
			}
			if isAcronym(tok) {
				st.tfAcronym++
			} else if i > 0 && startsUpper(tok) {
				st.tfUpper++
			}
			if i > 0 {
				prev := strings.ToLower(tokens[i-1])
				if !isStopword(prev) {
					st.left[prev] = struct{}{}
					st.leftN++
				}
			}
			if i+1 < len(tokens) {
				next := strings.ToLower(tokens[i+1])
				if !isStopword(next) {
					st.right[next] = struct{}{}
					st.rightN++
				}
			}

			for n := 1; n <= maxN && i+n <= len(tokens); n++ {
				words := make([]string, n)
				for k := 0; k < n; k++ {
					words[k] = strings.ToLower(tokens[i+k])
				}
				if !validCandidate(words) {
					continue
				}
				key := strings.Join(words, " ")
				c, ok := cands[key]
				if !ok {
					c = &candidate{words: words, first: order}
					cands[key] = c
				}
				c.tf++
			}
			order++
		}
	}

	s.scoreWords(stats, len(sentences))

	type ranked struct {
		phrase string
		score  float64
		first  int
	}
	out := make([]ranked, 0, len(cands))
	for phrase, c := range cands {
		prod, sum := 1.0, 0.0
		for _, w := range c.words {
			if isStopword(w) {
				continue
			}
			prod *= stats[w].score
			sum += stats[w].score
		}
		out = append(out, ranked{phrase: phrase, score: prod / (c.tf * (1 + sum)), first: c.first})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score < out[j].score
		}
		if out[i].first != out[j].first {
			return out[i].first < out[j].first
		}
		return out[i].phrase < out[j].phrase
	})

	result := make([]string, 0, topK)
	for _, r := range out {
		if len(result) == topK {
			break
		}
		if overlaps(result, r.phrase) {
			continue
		}
		result = append(result, r.phrase)
	}
	return result
}

func (s *Statistical) sentences(body string) [][]string {
	var out [][]string
	for _, raw := range s.sentenceSplit.Split(body, -1) {
		tokens := s.tokenPattern.FindAllString(raw, -1)
		if len(tokens) > 0 {
			out = append(out, tokens)
		}
	}
	return out
}

func (s *Statistical) scoreWords(stats map[string]*wordStats, nSentences int) {
	var tfs []float64
	maxTF := 0.0
	for w, st := range stats {
		if isStopword(w) {
			continue
		}
		tfs = append(tfs, st.tf)
		if st.tf > maxTF {
			maxTF = st.tf
		}
	}
	meanTF, stdTF := meanStd(tfs)

	for _, st := range stats {
		casing := math.Max(st.tfUpper, st.tfAcronym) / (1 + math.Log(st.tf))
		position := math.Log(math.Log(3 + median(st.sentences)))
		freq := st.tf / (meanTF + stdTF)

		var wl, wr float64
		if st.leftN > 0 {
			wl = float64(len(st.left)) / st.leftN
		}
		if st.rightN > 0 {
			wr = float64(len(st.right)) / st.rightN
		}
		rel := 1.0
		if maxTF > 0 {
			rel = 1 + (wl+wr)*(st.tf/maxTF)
		}
		diff := float64(len(st.sentences)) / float64(nSentences)

		st.score = (rel * position) / (casing + freq/rel + diff/rel)
	}
}

func validCandidate(words []string) bool {
	if isStopword(words[0]) || isStopword(words[len(words)-1]) {
		return false
	}
	for _, w := range words {
		if len([]rune(w)) < 2 || isNumeric(w) {
			return false
		}
	}
	return true
}

// overlaps reports whether phrase repeats a phrase already chosen, or is a
// single word already covered by one.
func overlaps(chosen []string, phrase string) bool {
	for _, c := range chosen {
		if c == phrase {
			return true
		}
		if !strings.Contains(phrase, " ") && containsWord(c, phrase) {
			return true
		}
	}
	return false
}

func containsWord(phrase, word string) bool {
	for _, w := range strings.Fields(phrase) {
		if w == word {
			return true
		}
	}
	return false
}

func isAcronym(tok string) bool {
	letters := 0
	for _, r := range tok {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 1
}

func startsUpper(tok string) bool {
	for _, r := range tok {
		return unicode.IsUpper(r)
	}
	return false
}

func isNumeric(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return true
}

func meanStd(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return 1, 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var sq float64
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(vals)))
}

func median(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	n := len(idx)
	if n%2 == 1 {
		return float64(idx[n/2])
	}
	return float64(idx[n/2-1]+idx[n/2]) / 2
}
