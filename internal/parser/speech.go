package parser

import (
	"strings"
	"unicode"
)

// speechAndEmoteActions splits a markup-free prose run into ordered
// say/emote actions. Text wrapped in *asterisks* is an emote unless its
// trimmed content starts and ends with a quote character, in which case
// it is reclassified as speech. Bracket-wrapped quoted text
// that slipped past the markup regexes (e.g. a model emitting `["no!"]`)
// is unwrapped to plain speech the same way.
func speechAndEmoteActions(run string) []Action {
	run = bracketQuoteRe.ReplaceAllString(run, "$1")

	var actions []Action
	cursor := 0
	for _, m := range emoteSpanRe.FindAllStringSubmatchIndex(run, -1) {
		if plain := run[cursor:m[0]]; strings.TrimSpace(plain) != "" {
			if a, ok := speechAction(plain); ok {
				actions = append(actions, a)
			}
		}
		inner := run[m[2]:m[3]]
		if looksQuoted(inner) {
			if a, ok := speechAction(inner); ok {
				actions = append(actions, a)
			}
		} else if a, ok := emoteAction(inner); ok {
			actions = append(actions, a)
		}
		cursor = m[1]
	}
	if plain := run[cursor:]; strings.TrimSpace(plain) != "" {
		if a, ok := speechAction(plain); ok {
			actions = append(actions, a)
		}
	}
	return actions
}

func looksQuoted(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	first := []rune(s)[0]
	last := []rune(s)[len([]rune(s))-1]
	return isQuoteRune(first) && isQuoteRune(last)
}

func isQuoteRune(r rune) bool {
	switch r {
	case '"', '\'', '‘', '’', '“', '”':
		return true
	}
	return false
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) >= 2 && isQuoteRune(runes[0]) && isQuoteRune(runes[len(runes)-1]) {
		s = string(runes[1 : len(runes)-1])
	}
	return strings.TrimSpace(s)
}

func isPurescPunct(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	return punctOnlyRe.MatchString(trimmed)
}

func speechAction(raw string) (Action, bool) {
	text := stripQuotes(raw)
	if isPurescPunct(text) {
		return Action{}, false
	}
	text = truncateSpeech(text)
	if text == "" {
		return Action{}, false
	}
	return Action{Kind: ActionSpeech, Text: text}, true
}

func emoteAction(raw string) (Action, bool) {
	text := strings.TrimSpace(raw)
	if isPurescPunct(text) {
		return Action{}, false
	}
	text = rewriteEmoteToThirdPerson(text)
	text = truncateSpeech(text)
	if text == "" {
		return Action{}, false
	}
	return Action{Kind: ActionEmote, Text: text}, true
}

// truncateSpeech bounds a speech/emote segment to at most
// MaxSpeechSentences sentences and MaxSpeechChars characters, appending
// an ellipsis when truncation actually occurred.
func truncateSpeech(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	sentences := splitSentences(s)
	truncated := false
	if len(sentences) > MaxSpeechSentences {
		sentences = sentences[:MaxSpeechSentences]
		truncated = true
	}
	joined := strings.TrimSpace(strings.Join(sentences, " "))

	if len(joined) > MaxSpeechChars {
		joined = strings.TrimSpace(joined[:MaxSpeechChars-3])
		truncated = true
	}
	if truncated {
		joined = strings.TrimRight(joined, ".,;: ") + "..."
	}
	return joined
}

// splitSentences splits on '.', '!', '?' followed by whitespace or end of
// string, keeping the terminator attached to each sentence.
func splitSentences(s string) []string {
	var out []string
	start := 0
	runes := []rune(s)
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				sentence := strings.TrimSpace(string(runes[start : i+1]))
				if sentence != "" {
					out = append(out, sentence)
				}
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

var thirdPersonEsSuffixes = []string{"ch", "sh", "x", "z", "s"}

// RewriteEmoteToThirdPerson exports the first-person emote fix for the
// executor, which applies the same rewrite to the text of every emote/me
// command it runs (`[cmd:emote ...]` markup itself is dropped by Parse).
func RewriteEmoteToThirdPerson(text string) string {
	return rewriteEmoteToThirdPerson(text)
}

// rewriteEmoteToThirdPerson turns "I <verb> ..." into "<verb-s/-es> ...".
// Text not beginning with "I " is assumed already third-person and is
// returned unchanged.
func rewriteEmoteToThirdPerson(text string) string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "i ") {
		return trimmed
	}
	rest := strings.TrimSpace(trimmed[2:])
	verb, tail := splitFirstToken(rest)
	if verb == "" {
		return trimmed
	}
	conjugated := conjugateThirdPerson(verb)
	if tail == "" {
		return conjugated
	}
	return conjugated + " " + tail
}

func conjugateThirdPerson(verb string) string {
	lower := strings.ToLower(verb)
	for _, suf := range thirdPersonEsSuffixes {
		if strings.HasSuffix(lower, suf) {
			return verb + "es"
		}
	}
	return verb + "s"
}
