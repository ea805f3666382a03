// Package speech prepares text for the speaker and screens transcriptions.
package speech

import (
	"strings"
	"unicode/utf8"
)

// sentenceEndings end a chunk of speech. Full-width endings need no
// following space.
const (
	sentenceEndings  = ".!?。！？"
	fullWidthEndings = "。！？"
)

// Sentences splits text into sentences so playback can be interrupted
// between them. A sentence ends at terminal punctuation followed by
// whitespace or the end of text. Runs of punctuation stay together.
func Sentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	start := 0
	for i, r := range text {
		if !strings.ContainsRune(sentenceEndings, r) {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next < len(text) && !strings.ContainsRune(fullWidthEndings, r) {
			nr, _ := utf8.DecodeRuneInString(text[next:])
			if !isSpace(nr) {
				continue
			}
		}
		if s := strings.TrimSpace(text[start:next]); s != "" {
			out = append(out, s)
		}
		start = next
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// MinWords is the minimum word count of a valid utterance.
const MinWords = 2

// noise holds transcriptions that are filler or known recognizer
// hallucinations on silence, lowercased.
var noise = func() map[string]bool {
	m := map[string]bool{}
	for _, s := range []string{
		"", ".", "..", "...", "hm", "hmm", "hmmm", "mm", "mmm", "mhm",
		"uh", "um", "ah", "eh", "oh", "öh", "äh", "ja", "nej", "jo",
		"tack", "ok", "okay", "hej", "du", "jag", "och", "att", "det",
		"Tack för att du tittade.", "Tack för att du tittade",
		"Tack för att ni tittade.", "Tack för att ni tittade",
		"Prenumerera på kanalen.", "Prenumerera på kanalen",
		"Glöm inte att prenumerera", "Gilla och prenumerera",
		"Musik", "♪", "♫", "[Musik]",
	} {
		m[strings.ToLower(s)] = true
	}
	return m
}()

// Rejection reasons returned by Validate.
const (
	ReasonEmpty    = "empty"
	ReasonNoise    = "noise_pattern"
	ReasonTooShort = "too_short"
)

// Validate reports whether a transcription looks like real speech. The
// reason is empty when it does.
func Validate(text string) (bool, string) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return false, ReasonEmpty
	}
	if noise[strings.ToLower(cleaned)] {
		return false, ReasonNoise
	}
	if len(strings.Fields(cleaned)) < MinWords {
		return false, ReasonTooShort
	}
	return true, ""
}
