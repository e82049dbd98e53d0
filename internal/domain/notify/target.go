// Package notify holds the routing, condition and delivery-record model for
// failed-spec chat notifications.
package notify

import (
	"regexp"
	"strings"
)

// mentionBoundary splits on whitespace that is followed by "@", so a
// mention may itself contain spaces ("@john doe").
var mentionBoundary = regexp.MustCompile(`\s+@`)

// Target is a parsed shorthand: one optional channel plus mentioned people.
type Target struct {
	Channel string
	People  []string
}

// ParseShorthand parses "#channel @user1 @user2" into a Target. Tokens that
// are neither the first "#" token nor "@" mentions are ignored. Case is kept.
func ParseShorthand(s string) Target {
	t := Target{People: []string{}}
	for _, part := range splitMentions(s) {
		switch {
		case strings.HasPrefix(part, "@"):
			t.People = append(t.People, part)
		case strings.HasPrefix(part, "#") && t.Channel == "":
			t.Channel = part
		}
	}
	return t
}

// splitMentions emulates a lookahead split on /\s(?=@)/: the "@" stays with
// the following token.
func splitMentions(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var parts []string
	rest := s
	for {
		loc := mentionBoundary.FindStringIndex(rest)
		if loc == nil {
			parts = appendToken(parts, rest)
			break
		}
		// loc[1]-1 is the index of "@".
		parts = appendToken(parts, rest[:loc[0]])
		rest = rest[loc[1]-1:]
	}
	return parts
}

func appendToken(parts []string, tok string) []string {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return parts
	}
	return append(parts, tok)
}
