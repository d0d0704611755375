package answer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"studypartner/internal/retrieval"
)

// ContextSeparator joins retrieved unit texts into one context block.
const ContextSeparator = "\n\n---\n\n"

// InsufficientContext is the sentence the model is told to give when the
// notes do not answer the question.
const InsufficientContext = "Based on your notes, the information to answer this question isn't available."

const promptTemplate = `You are a meticulous and insightful AI research assistant. Your primary function is to help me understand and analyze my personal notes.

Your answers MUST be based on the provided CONTEXT. Do not use external knowledge and do not make assumptions beyond what is written in the notes.
Keep your answers long enough to be comprehensive but concise enough to be clear and to the point.

Follow these rules strictly:
1.  **Synthesize, Don't Just Find:** Do not just copy-paste snippets. Synthesize the relevant information from the context into a coherent and comprehensive answer.
2.  **Be Honest About Gaps:** If the context does not contain the answer, state clearly: "%s" If the context is related but doesn't provide a direct answer, explain what information is available and how it relates to the question. Do not apologize.
3.  **Format for Clarity:** Use markdown formatting like bolding for key terms and bullet points for lists to make your answers easy to read.
4.  **Stay Concise:** Provide a direct and complete answer without unnecessary conversational filler.

CONTEXT:
---
%s
---

USER QUESTION: %s

ASSISTANT'S ANSWER:
`

var citeMarker = regexp.MustCompile(`\[cite: \d+\]`)

// BuildContext joins result texts in retrieval order.
func BuildContext(results []retrieval.Result) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, ContextSeparator)
}

func BuildPrompt(context, question string) string {
	return fmt.Sprintf(promptTemplate, InsufficientContext, context, question)
}

// StripCitationMarkers removes "[cite: N]" artifacts the model sometimes emits.
func StripCitationMarkers(s string) string {
	return strings.TrimSpace(citeMarker.ReplaceAllString(s, ""))
}

// Citation formats the reference to one retrieved unit.
func Citation(r retrieval.Result) string {
	source := r.Source
	if source == "" {
		source = "Unknown Source"
	}
	page := "N/A"
	if r.Page > 0 {
		page = fmt.Sprint(r.Page)
	}
	return fmt.Sprintf("(Source: %s, Page: %s)", source, page)
}

// Citations returns the distinct citations of results in ascending string order.
func Citations(results []retrieval.Result) []string {
	set := make(map[string]struct{}, len(results))
	for _, r := range results {
		set[Citation(r)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// WithSources appends the "Sources:" block. No block is added without citations.
func WithSources(answer string, citations []string) string {
	if len(citations) == 0 {
		return answer
	}
	return answer + "\n\nSources:\n" + strings.Join(citations, "\n")
}
