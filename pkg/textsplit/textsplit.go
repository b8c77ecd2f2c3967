// Package textsplit breaks a generated script into TTS-sized chunks,
// preferring to break at paragraph or sentence boundaries over the provider
// character limit (§4.5.1 step 1).
//
// No sentence-tokenization library appears anywhere in the retrieved
// dependency corpus (the source this behavior is grounded on leans on
// NLTK's sent_tokenize, which has no Go equivalent in the pack), so sentence
// boundaries are detected with a conservative regex instead.
package textsplit

import (
	"regexp"
	"strings"
)

// sentenceBoundary matches a run of sentence-ending punctuation, mirroring
// the regex fallback used when no language-aware tokenizer is available.
var sentenceBoundary = regexp.MustCompile(`([.?!]+)`)

// Split breaks text into chunks of at most maxChars, preferring whole
// paragraphs, then whole sentences, then falling back to a hard wrap at the
// last space before the limit.
func Split(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		maxChars = 3800
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if current.Len() == 0 && len(paragraph) <= maxChars {
			current.WriteString(paragraph)
			continue
		}

		for _, sentence := range tokenizeSentences(paragraph) {
			sentence = strings.TrimSpace(sentence)
			if len(sentence) < 2 {
				continue
			}

			switch {
			case len(sentence) > maxChars:
				flush()
				chunks = append(chunks, hardWrap(sentence, maxChars)...)
			case current.Len()+len(sentence)+1 <= maxChars:
				if current.Len() > 0 {
					current.WriteString(" ")
				}
				current.WriteString(sentence)
			default:
				flush()
				current.WriteString(sentence)
			}
		}
	}

	flush()
	return chunks
}

// tokenizeSentences splits a paragraph into sentences by keeping runs of
// terminal punctuation attached to the sentence that precedes them.
func tokenizeSentences(paragraph string) []string {
	parts := sentenceBoundary.Split(paragraph, -1)
	seps := sentenceBoundary.FindAllString(paragraph, -1)

	sentences := make([]string, 0, len(parts))
	for i, part := range parts {
		sentence := part
		if i < len(seps) {
			sentence += seps[i]
		}
		sentence = strings.TrimSpace(sentence)
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}

// hardWrap force-splits an over-long sentence at the last space before
// maxChars, falling back to a hard cut when no space is found.
func hardWrap(sentence string, maxChars int) []string {
	var parts []string
	start := 0
	for start < len(sentence) {
		end := start + maxChars
		if end >= len(sentence) {
			end = len(sentence)
		} else if splitPos := strings.LastIndex(sentence[start:end], " "); splitPos != -1 {
			end = start + splitPos + 1
		}

		part := strings.TrimSpace(sentence[start:end])
		if part != "" {
			parts = append(parts, part)
		}
		if end <= start {
			break
		}
		start = end
	}
	return parts
}
