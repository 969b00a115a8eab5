// Package parser extracts a nickname and PUBG id from free-form chat text.
package parser

import (
	"regexp"
	"strings"

	"tournament-bot/internal/models"
)

var (
	trailingID = regexp.MustCompile(`^(.+?)\s+(5\d{9})$`)
	embeddedID = regexp.MustCompile(`(?:^|\D)(5\d{9})(?:\D|$)`)
	exactID    = regexp.MustCompile(`^5\d{9}$`)
	separators = regexp.MustCompile(`[,:\n\t]+`)
)

// labelTail is stripped from a nickname that precedes a trailing id ("ID: 5...").
const labelTail = ",:;"

type Info struct {
	Nickname string
	PlayerID string
}

// ValidPlayerID reports whether id is ten digits starting with 5.
func ValidPlayerID(id string) bool {
	return exactID.MatchString(id)
}

// Parse tries the strictest shape first so that digits inside a nickname
// are not mistaken for the id. Accepted shapes include
//
//	ShadowKiller 5123456789
//	Pro Gamer, 5987654321
//	Nickname: ProPlayer, ID: 5456789123
//	ProGamer\n5789123456
func Parse(text string) Info {
	text = strings.TrimSpace(text)

	if m := trailingID.FindStringSubmatch(text); m != nil {
		nick := strings.TrimSpace(strings.TrimRight(m[1], labelTail))
		if nick != "" {
			return Info{Nickname: nick, PlayerID: m[2]}
		}
	}

	// An id glued to a longer digit run is not an id.
	if m := embeddedID.FindStringSubmatch(text); m != nil {
		id := m[1]
		nick := strings.TrimSpace(strings.ReplaceAll(text, id, ""))
		nick = strings.TrimSpace(separators.ReplaceAllString(nick, " "))
		if nick != "" {
			return Info{Nickname: nick, PlayerID: id}
		}
	}

	for _, sep := range []string{",", "\n", ":"} {
		if !strings.Contains(text, sep) {
			continue
		}
		parts := splitNonEmpty(text, sep)
		if len(parts) < 2 {
			continue
		}
		idx := -1
		for i, p := range parts {
			if !exactID.MatchString(p) {
				continue
			}
			if idx >= 0 {
				// ambiguous
				idx = -1
				break
			}
			idx = i
		}
		if idx >= 0 {
			rest := make([]string, 0, len(parts)-1)
			rest = append(rest, parts[:idx]...)
			rest = append(rest, parts[idx+1:]...)
			return Info{Nickname: strings.Join(rest, " "), PlayerID: parts[idx]}
		}
	}

	if fields := strings.Fields(text); len(fields) >= 2 {
		return Info{
			Nickname: strings.Join(fields[:len(fields)-1], " "),
			PlayerID: fields[len(fields)-1],
		}
	}

	return Info{Nickname: text, PlayerID: models.NotProvided}
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
