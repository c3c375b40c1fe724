// Package killmail defines the killmail wire model as delivered by
// zkillboard and ESI, plus validation applied before any store access.
package killmail

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformed marks input that cannot be mapped to the killmail shape.
// Callers match it with errors.Is.
var ErrMalformed = errors.New("malformed killmail")

// Killmail is one combat event: exactly one victim, one or more attackers.
// Timestamps are RFC3339 text ("2021-12-12T15:46:42Z"), which sorts
// lexically and is stored as-is.
type Killmail struct {
	KillmailID    int64      `json:"killmail_id"`
	KillmailTime  string     `json:"killmail_time"`
	SolarSystemID int64      `json:"solar_system_id"`
	Victim        Victim     `json:"victim"`
	Attackers     []Attacker `json:"attackers"`
	Zkb           *Zkb       `json:"zkb,omitempty"`
}

// Victim is the single losing participant. Identifier fields are nil for
// unidentified entities (NPCs, structures).
type Victim struct {
	CharacterID   *int64 `json:"character_id,omitempty"`
	CorporationID *int64 `json:"corporation_id,omitempty"`
	AllianceID    *int64 `json:"alliance_id,omitempty"`
	ShipTypeID    *int64 `json:"ship_type_id,omitempty"`
	DamageTaken   int64  `json:"damage_taken"`
}

// Attacker is one of potentially many attacking participants.
type Attacker struct {
	CharacterID   *int64 `json:"character_id,omitempty"`
	CorporationID *int64 `json:"corporation_id,omitempty"`
	AllianceID    *int64 `json:"alliance_id,omitempty"`
	ShipTypeID    *int64 `json:"ship_type_id,omitempty"`
	WeaponTypeID  *int64 `json:"weapon_type_id,omitempty"`
	DamageDone    int64  `json:"damage_done"`
	FinalBlow     bool   `json:"final_blow,omitempty"`
}

// Zkb carries the zkillboard envelope extension. Only the hash is needed
// for refetching a killmail from ESI; the rest is passed through.
type Zkb struct {
	Hash           string  `json:"hash"`
	LocationID     int64   `json:"locationID,omitempty"`
	FittedValue    float64 `json:"fittedValue,omitempty"`
	DroppedValue   float64 `json:"droppedValue,omitempty"`
	DestroyedValue float64 `json:"destroyedValue,omitempty"`
	TotalValue     float64 `json:"totalValue,omitempty"`
	Points         int     `json:"points,omitempty"`
	NPC            bool    `json:"npc,omitempty"`
	Solo           bool    `json:"solo,omitempty"`
	Awox           bool    `json:"awox,omitempty"`
}

// Decode parses and validates raw JSON into a Killmail. Any failure is
// wrapped in ErrMalformed so the ingestion path can reject it before
// touching the store.
func Decode(data []byte) (*Killmail, error) {
	var km Killmail
	if err := json.Unmarshal(data, &km); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := km.Validate(); err != nil {
		return nil, err
	}
	return &km, nil
}

// Validate checks the structural invariants the store relies on.
func (km *Killmail) Validate() error {
	if km.KillmailID <= 0 {
		return fmt.Errorf("%w: killmail_id %d", ErrMalformed, km.KillmailID)
	}
	if km.SolarSystemID <= 0 {
		return fmt.Errorf("%w: solar_system_id %d", ErrMalformed, km.SolarSystemID)
	}
	if _, err := time.Parse(time.RFC3339, km.KillmailTime); err != nil {
		return fmt.Errorf("%w: killmail_time %q: %v", ErrMalformed, km.KillmailTime, err)
	}
	if len(km.Attackers) == 0 {
		return fmt.Errorf("%w: killmail %d has no attackers", ErrMalformed, km.KillmailID)
	}
	if km.Victim.DamageTaken < 0 {
		return fmt.Errorf("%w: negative damage_taken", ErrMalformed)
	}
	for _, a := range km.Attackers {
		if a.DamageDone < 0 {
			return fmt.Errorf("%w: negative damage_done", ErrMalformed)
		}
	}
	return nil
}

// Time returns the parsed killmail timestamp in UTC.
func (km *Killmail) Time() time.Time {
	t, _ := time.Parse(time.RFC3339, km.KillmailTime)
	return t.UTC()
}
