package keyphrase

import (
	textrank "github.com/DavidBelicza/TextRank/v2"
)

// language is TextRank's English stopword list. Both strategies share it so a
// phrase boundary means the same thing in each.
var language = textrank.NewDefaultLanguage()

// lectureStopwords are filler words common in slide text that the general list
// does not cover.
var lectureStopwords = map[string]struct{}{
	"eg": {}, "etc": {}, "ie": {}, "via": {}, "use": {}, "used": {}, "using": {},
	"cont": {}, "slide": {}, "page": {},
}

func isStopword(w string) bool {
	if _, ok := lectureStopwords[w]; ok {
		return true
	}
	return language.IsStopWord(w)
}
