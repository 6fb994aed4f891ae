package recall

import (
	"strings"

	"github.com/hearthside/hearth/internal/continuity"
)

// Deterministic recall-label heuristics over participant utterances. Agent
// turns are never used as signal. This is the floor beneath the optional
// external summarizer.

const (
	nicetyMaxLen    = 25
	summaryMaxLen   = 100
	tagSkipWords    = 3
	tagMinLen       = 4
	maxTags         = 6
	labelHeadMaxLen = 60
	labelMaxTags    = 4
)

var nicetyPrefixes = []string{
	"hi", "hiya", "hello", "hey", "howdy",
	"thanks", "thank you", "ta ",
	"good morning", "good afternoon", "good evening", "good night",
	"ok", "okay", "yes", "yeah", "yep", "no ", "nope", "sure",
	"bye", "goodbye", "see you", "cheers",
	"sorry", "please",
}

var nicetyExact = map[string]bool{
	"no": true, "ta": true, "cool": true, "great": true, "nice": true,
	"lovely": true, "right": true, "alright": true,
}

var tagStopWords = map[string]bool{
	"this": true, "that": true, "these": true, "those": true,
	"with": true, "have": true, "having": true, "just": true,
	"like": true, "about": true, "what": true, "when": true,
	"where": true, "which": true, "your": true, "yours": true,
	"from": true, "they": true, "them": true, "then": true,
	"there": true, "their": true, "were": true, "been": true,
	"would": true, "could": true, "should": true, "really": true,
	"going": true, "want": true, "wanted": true, "because": true,
	"think": true, "thought": true, "know": true, "knew": true,
	"today": true, "yesterday": true, "tomorrow": true,
	"very": true, "much": true, "more": true, "some": true,
	"thing": true, "things": true, "something": true, "anything": true,
	"well": true, "good": true, "time": true, "little": true,
	"thanks": true, "thank": true, "hello": true, "okay": true,
}

// Deriver implements the continuity labeler contract.
type Deriver struct{}

func (Deriver) Derive(turns []continuity.Turn) (string, []string) {
	return Derive(turns)
}

// Derive produces (summary, tags) from a session's turns. Only participant
// turns contribute; a session with no participant speech yields nothing.
func Derive(turns []continuity.Turn) (string, []string) {
	utterances := participantUtterances(turns)
	if len(utterances) == 0 {
		return "", nil
	}
	return deriveSummary(utterances), deriveTags(utterances)
}

// Label composes the one-line display label for recall lists.
func Label(summary string, tags []string) string {
	head := truncate(strings.TrimSpace(summary), labelHeadMaxLen)
	if len(tags) == 0 {
		return head
	}
	shown := tags
	if len(shown) > labelMaxTags {
		shown = shown[:labelMaxTags]
	}
	if head == "" {
		return strings.Join(shown, ", ")
	}
	return head + " [" + strings.Join(shown, ", ") + "]"
}

// deriveSummary picks the first utterance that says something: niceties
// are skipped, and if the whole session is niceties the longest one wins.
func deriveSummary(utterances []string) string {
	for _, u := range utterances {
		if !isNicety(u) {
			return truncate(u, summaryMaxLen)
		}
	}
	longest := utterances[0]
	for _, u := range utterances[1:] {
		if len(u) > len(longest) {
			longest = u
		}
	}
	return truncate(longest, summaryMaxLen)
}

func deriveTags(utterances []string) []string {
	words := strings.Fields(strings.Join(utterances, " "))
	if len(words) > tagSkipWords {
		words = words[tagSkipWords:]
	} else {
		words = nil
	}

	seen := make(map[string]bool)
	var tags []string
	for _, w := range words {
		token := cleanToken(w)
		if len([]rune(token)) < tagMinLen || tagStopWords[token] || seen[token] {
			continue
		}
		seen[token] = true
		tags = append(tags, token)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

func isNicety(utterance string) bool {
	lowered := strings.ToLower(strings.TrimSpace(utterance))
	if len([]rune(lowered)) > nicetyMaxLen {
		return false
	}
	trimmed := strings.Trim(lowered, ".,!?:; ")
	if nicetyExact[trimmed] {
		return true
	}
	for _, prefix := range nicetyPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}

func participantUtterances(turns []continuity.Turn) []string {
	var out []string
	for _, t := range turns {
		if t.Role != continuity.RoleParticipant {
			continue
		}
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		out = append(out, content)
	}
	return out
}

// cleanToken lowercases and strips a word to letters, digits, apostrophes
// and hyphens.
func cleanToken(w string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(w) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '\'', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
