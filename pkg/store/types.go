package store

import (
	"fmt"
)

// SubjectKind selects which identifier column a query matches on.
type SubjectKind int

const (
	SubjectCharacter SubjectKind = iota
	SubjectCorporation
	SubjectAlliance
)

var subjectColumns = [...]string{
	SubjectCharacter:   "character_id",
	SubjectCorporation: "corporation_id",
	SubjectAlliance:    "alliance_id",
}

var subjectNames = [...]string{
	SubjectCharacter:   "character",
	SubjectCorporation: "corporation",
	SubjectAlliance:    "alliance",
}

// column returns the participants column this kind matches. The value
// comes from a fixed table, never from user input, so it is safe to
// splice into query text.
func (s SubjectKind) column() string {
	return subjectColumns[s]
}

func (s SubjectKind) String() string {
	if int(s) < len(subjectNames) {
		return subjectNames[s]
	}
	return fmt.Sprintf("subject(%d)", int(s))
}

// ParseSubject maps a route segment to a SubjectKind.
func ParseSubject(s string) (SubjectKind, error) {
	switch s {
	case "character":
		return SubjectCharacter, nil
	case "corporation":
		return SubjectCorporation, nil
	case "alliance":
		return SubjectAlliance, nil
	}
	return 0, fmt.Errorf("%w: unknown subject kind %q", ErrBadParam, s)
}

// RelationKind is one of the six derived relationship types: a polarity
// (friends seed from events the subject attacked in, enemies from events
// the subject died in) crossed with the grouping of the counted side.
type RelationKind int

const (
	FriendsChar RelationKind = iota
	EnemiesChar
	FriendsCorp
	EnemiesCorp
	FriendsAlli
	EnemiesAlli
)

// relationSpec maps each kind to the counted column and the is_victim
// value of the seed rows. Pure data; keeps the six combinations
// exhaustive and trivially testable.
var relationSpec = [...]struct {
	column string
	victim int
}{
	FriendsChar: {"character_id", 0},
	EnemiesChar: {"character_id", 1},
	FriendsCorp: {"corporation_id", 0},
	EnemiesCorp: {"corporation_id", 1},
	FriendsAlli: {"alliance_id", 0},
	EnemiesAlli: {"alliance_id", 1},
}

// ParseRelation maps route segments ("friends"|"enemies", "char"|"corp"|"alli")
// to a RelationKind.
func ParseRelation(polarity, grouping string) (RelationKind, error) {
	var enemy bool
	switch polarity {
	case "friends":
	case "enemies":
		enemy = true
	default:
		return 0, fmt.Errorf("%w: unknown relation polarity %q", ErrBadParam, polarity)
	}
	var base RelationKind
	switch grouping {
	case "char":
		base = FriendsChar
	case "corp":
		base = FriendsCorp
	case "alli":
		base = FriendsAlli
	default:
		return 0, fmt.Errorf("%w: unknown relation grouping %q", ErrBadParam, grouping)
	}
	if enemy {
		return base + 1, nil
	}
	return base, nil
}

// ParticipationRow is one participant joined with its killmail's
// location and timestamp context. Nil identifier pointers mean the
// entity was unidentified (NPC, structure).
type ParticipationRow struct {
	KillmailID    int64  `json:"killmail_id"`
	CharacterID   *int64 `json:"character_id,omitempty"`
	CorporationID *int64 `json:"corporation_id,omitempty"`
	AllianceID    *int64 `json:"alliance_id,omitempty"`
	ShipTypeID    *int64 `json:"ship_type_id,omitempty"`
	Damage        int64  `json:"damage"`
	IsVictim      bool   `json:"is_victim"`
	SolarSystemID int64  `json:"solar_system_id"`
}

// RelationCount is one entry of a relations tally: how many qualifying
// killmails the related entity shared with the subject.
type RelationCount struct {
	ID    int64  `json:"id"`
	Count uint64 `json:"count"`
}

// HourCount is one non-zero bucket of an hour-of-day histogram.
type HourCount struct {
	Hour  int    `json:"hour"`
	Count uint64 `json:"count"`
}
