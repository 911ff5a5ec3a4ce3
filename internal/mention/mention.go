package mention

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/teamline-chat/teamline/internal/models"
)

// Trigger describes an active @-mention token in a text input
type Trigger struct {
	Offset int    // rune index of the "@" character
	Search string // text between the "@" and the cursor
}

// Detect scans left from the cursor for an active mention trigger. The "@"
// must sit at the start of the text or directly after whitespace; an "@"
// mid-word (email addresses) never triggers. Text and cursor are measured in
// runes.
func Detect(text string, cursor int) (Trigger, bool) {
	runes := []rune(text)
	if cursor < 0 || cursor > len(runes) {
		return Trigger{}, false
	}

	at := -1
	for i := cursor - 1; i >= 0; i-- {
		r := runes[i]
		if r == '@' {
			at = i
			break
		}
		// the user has moved past the mention token
		if unicode.IsSpace(r) {
			return Trigger{}, false
		}
	}
	if at == -1 {
		return Trigger{}, false
	}

	// valid only at position 0 or after whitespace
	if at > 0 && !unicode.IsSpace(runes[at-1]) {
		return Trigger{}, false
	}

	return Trigger{Offset: at, Search: string(runes[at+1 : cursor])}, true
}

// Filter returns the candidates whose display name contains the search text,
// case-insensitively. The acting user is always excluded: you cannot mention
// yourself.
func Filter(candidates []models.MentionCandidate, search string, currentUser uuid.UUID) []models.MentionCandidate {
	needle := strings.ToLower(search)
	out := make([]models.MentionCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == currentUser {
			continue
		}
		if strings.Contains(strings.ToLower(c.DisplayName), needle) {
			out = append(out, c)
		}
	}
	return out
}

// ParseOutgoing extracts the mentioned user ids from composed message text.
// Each "@DisplayName" occurrence is resolved against the directory at send
// time; each user appears at most once, in order of first appearance.
func ParseOutgoing(text string, directory []models.MentionCandidate) []uuid.UUID {
	var out []uuid.UUID
	seen := make(map[uuid.UUID]struct{})

	for i := strings.IndexRune(text, '@'); i != -1; {
		rest := text[i+1:]
		if c, ok := resolveName(rest, directory); ok {
			if _, dup := seen[c.ID]; !dup {
				seen[c.ID] = struct{}{}
				out = append(out, c.ID)
			}
		}
		next := strings.IndexRune(rest, '@')
		if next == -1 {
			break
		}
		i += 1 + next
	}
	return out
}

// resolveName picks the directory entry whose display name prefixes rest.
// The longest name wins, so "Albert" is never claimed by "Al", and the match
// must end at a word boundary: "@Alicebob" resolves to nobody.
func resolveName(rest string, directory []models.MentionCandidate) (models.MentionCandidate, bool) {
	var best models.MentionCandidate
	for _, c := range directory {
		if c.DisplayName == "" || len(c.DisplayName) <= len(best.DisplayName) {
			continue
		}
		if !strings.HasPrefix(rest, c.DisplayName) {
			continue
		}
		if tail := rest[len(c.DisplayName):]; tail != "" {
			r, _ := utf8.DecodeRuneInString(tail)
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
		}
		best = c
	}
	return best, best.DisplayName != ""
}

// Commit splices a selected candidate into the text: the span from the
// trigger "@" through the cursor becomes "@DisplayName " and the returned
// cursor sits immediately after the trailing space.
func Commit(text string, t Trigger, cursor int, displayName string) (string, int) {
	runes := []rune(text)
	if cursor < t.Offset || cursor > len(runes) {
		return text, cursor
	}

	inserted := []rune("@" + displayName + " ")
	out := make([]rune, 0, len(runes)-(cursor-t.Offset)+len(inserted))
	out = append(out, runes[:t.Offset]...)
	out = append(out, inserted...)
	out = append(out, runes[cursor:]...)
	return string(out), t.Offset + len(inserted)
}
