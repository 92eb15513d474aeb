package transcribe

import "strings"

// hallucinationPhrases are filler phrases batch speech models emit for
// near-silent audio, learned from transcribed web media. A short output
// containing one of these is almost certainly not real meeting speech.
var hallucinationPhrases = []string{
	"thank you for watching",
	"thanks for watching",
	"see you in the next",
	"subscribe",
	"like and subscribe",
	"please subscribe",
}

// hallucinationMaxWords bounds the hallucination filter: longer outputs that
// merely contain a denylisted phrase are kept, since real speech can quote
// them.
const hallucinationMaxWords = 10

// minActionableWords is the minimum word count for a transcript to be worth
// forwarding to the agent.
const minActionableWords = 2

// CleanTranscript applies the degenerate-output filters to a raw backend
// transcript, in order: half-duplication first, then the hallucination
// denylist. Returns "" when the text is judged to be an artifact. Idempotent:
// filtered output passed back in comes out unchanged.
func CleanTranscript(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	if isHalfDuplicated(text) {
		return ""
	}
	if isHallucination(text) {
		return ""
	}
	return text
}

// Actionable reports whether a filtered transcript should reach the agent:
// non-empty and at least minActionableWords words.
func Actionable(text string) bool {
	return len(strings.Fields(text)) >= minActionableWords
}

// isHalfDuplicated detects the repeated-transcription artifact where the
// model emits the same word sequence twice back to back. Only sequences
// longer than 6 words are considered; short echoes ("yes yes") are real.
func isHalfDuplicated(text string) bool {
	words := strings.Fields(text)
	if len(words) <= 6 || len(words)%2 != 0 {
		return false
	}
	half := len(words) / 2
	for i := range half {
		if !strings.EqualFold(words[i], words[half+i]) {
			return false
		}
	}
	return true
}

// isHallucination reports whether a short transcript contains a known filler
// phrase.
func isHallucination(text string) bool {
	if len(strings.Fields(text)) >= hallucinationMaxWords {
		return false
	}
	lower := strings.ToLower(text)
	for _, phrase := range hallucinationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
