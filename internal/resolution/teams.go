package resolution

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// ResolveTeam returns the first team (by number) that has a member fuzzily
// matching any of names. Matching is a case-insensitive substring check in
// either direction. ok is false when no team matches; callers treat that as
// "assigned, team unknown".
func (r *Roster) ResolveTeam(names []string) (team int, ok bool) {
	for _, t := range r.Teams {
		for _, member := range t.Members {
			for _, name := range names {
				if MatchesMember(name, member) {
					log.Debug().
						Str("name", name).
						Str("member", member).
						Int("team", t.Number).
						Msg("Resolved team from member name")
					return t.Number, true
				}
			}
		}
	}
	return 0, false
}

// MatchesMember checks if a feed name and a roster member refer to the same person.
func MatchesMember(name, member string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	m := strings.ToLower(strings.TrimSpace(member))
	if n == "" || m == "" {
		return false
	}
	return strings.Contains(n, m) || strings.Contains(m, n)
}
