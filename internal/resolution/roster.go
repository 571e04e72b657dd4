package resolution

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"kitchen_demo_sync/internal/slots"

	"github.com/rs/zerolog/log"
	"github.com/tailscale/hujson"
)

// TeamCount is the number of kitchen teams on the schedule grid.
const TeamCount = 5

var ErrInvalidRoster = errors.New("invalid roster")

// Team is one kitchen team and its members.
type Team struct {
	Number  int      `json:"number"`
	Name    string   `json:"name,omitempty"`
	Members []string `json:"members"`
}

// Roster maps team numbers to members. Teams are kept sorted by number.
type Roster struct {
	Teams []Team `json:"teams"`
}

// DefaultRoster is used when no roster file is configured.
func DefaultRoster() *Roster {
	return &Roster{Teams: []Team{
		{Number: 1, Name: "Team 1", Members: []string{"Aarav", "Meera"}},
		{Number: 2, Name: "Team 2", Members: []string{"Kabir", "Ishita"}},
		{Number: 3, Name: "Team 3", Members: []string{"Rohan", "Ananya"}},
		{Number: 4, Name: "Team 4", Members: []string{"Vikram", "Sana"}},
		{Number: 5, Name: "Team 5", Members: []string{"Dev", "Priya"}},
	}}
}

// LoadRoster reads a JSONC roster file. A missing file yields the default roster.
func LoadRoster(path string) (*Roster, error) {
	if path == "" {
		return DefaultRoster(), nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("Roster file not found, using default roster")
			return DefaultRoster(), nil
		}
		return nil, fmt.Errorf("reading roster: %w", err)
	}

	return ParseRoster(data)
}

// ParseRoster parses JSONC roster data and validates that exactly teams 1..5 exist.
func ParseRoster(data []byte) (*Roster, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSONC: %w", ErrInvalidRoster, err)
	}

	var roster Roster
	if err := json.Unmarshal(standardized, &roster); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoster, err)
	}

	if err := roster.validate(); err != nil {
		return nil, err
	}
	return &roster, nil
}

func (r *Roster) validate() error {
	if len(r.Teams) != TeamCount {
		return fmt.Errorf("%w: expected %d teams, got %d", ErrInvalidRoster, TeamCount, len(r.Teams))
	}
	sort.Slice(r.Teams, func(i, j int) bool { return r.Teams[i].Number < r.Teams[j].Number })
	for i, team := range r.Teams {
		if team.Number != i+1 {
			return fmt.Errorf("%w: teams must be numbered 1..%d", ErrInvalidRoster, TeamCount)
		}
		if team.Name == "" {
			r.Teams[i].Name = fmt.Sprintf("Team %d", team.Number)
		}
	}
	return nil
}

// Members returns a copy of a team's member list, or nil for an unknown team.
func (r *Roster) Members(team int) []string {
	for _, t := range r.Teams {
		if t.Number == team {
			return append([]string(nil), t.Members...)
		}
	}
	return nil
}

// TeamName returns the display name of a team.
func (r *Roster) TeamName(team int) string {
	for _, t := range r.Teams {
		if t.Number == team {
			return t.Name
		}
	}
	return fmt.Sprintf("Team %d", team)
}

// ValidTeam reports whether team is on the grid.
func ValidTeam(team int) bool {
	return team >= 1 && team <= TeamCount
}

// Describe derives the display strings shown on the schedule for an assignment.
func (r *Roster) Describe(team *int, slotKey string) (teamName, slotLabel string) {
	if team != nil {
		teamName = r.TeamName(*team)
	}
	if _, hhmm, err := slots.ParseKey(slotKey); err == nil {
		slotLabel = slots.Label(hhmm)
	}
	return teamName, slotLabel
}
