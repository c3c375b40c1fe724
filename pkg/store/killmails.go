package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zkb-tools/zkbinfo/pkg/killmail"
)

const timeLayout = "2006-01-02T15:04:05Z"

// windowStart returns the inclusive lower bound of a trailing window.
// Timestamps are RFC3339 text in UTC, so lexical comparison is ordering.
func windowStart(lookback time.Duration) string {
	return time.Now().UTC().Add(-lookback).Format(timeLayout)
}

// Insert writes one killmail and its participants. Every statement is
// INSERT OR IGNORE keyed on the killmail id and the (killmail,
// character, victim-flag) uniqueness, so redelivery is a no-op and a
// late-arriving attacker adds only its own row. The killmail row goes
// first so a participant row can never be visible without its parent.
func (s *Store) Insert(ctx context.Context, km *killmail.Killmail) error {
	if err := km.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr("insert killmail", err)
	}
	defer tx.Rollback()

	// Stored times are always UTC in a single layout so the lexical
	// range comparisons in History, Relations and IDsForDate hold even
	// when the feed sends a zone offset.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO killmails (killmail_id, killmail_time, solar_system_id)
		 VALUES (?, ?, ?)`,
		km.KillmailID, km.Time().Format(timeLayout), km.SolarSystemID,
	); err != nil {
		return mapErr("insert killmail", err)
	}

	insertParticipant := func(characterID, corporationID, allianceID, shipTypeID *int64, damage int64, isVictim int) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO participants
			 (killmail_id, character_id, corporation_id, alliance_id, ship_type_id, damage, is_victim)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			km.KillmailID, characterID, corporationID, allianceID, shipTypeID, damage, isVictim,
		)
		return err
	}

	v := km.Victim
	if err := insertParticipant(v.CharacterID, v.CorporationID, v.AllianceID, v.ShipTypeID, v.DamageTaken, 1); err != nil {
		return mapErr("insert victim", err)
	}
	for _, a := range km.Attackers {
		if err := insertParticipant(a.CharacterID, a.CorporationID, a.AllianceID, a.ShipTypeID, a.DamageDone, 0); err != nil {
			return mapErr("insert attacker", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapErr("insert killmail", err)
	}
	return nil
}

// History returns every participation row matching the subject within
// the trailing lookback window. Unordered; no rows is an empty slice,
// not an error.
func (s *Store) History(ctx context.Context, kind SubjectKind, id int64, lookback time.Duration) ([]ParticipationRow, error) {
	query := fmt.Sprintf(
		`SELECT K.killmail_id, P.character_id, P.corporation_id, P.alliance_id,
		        P.ship_type_id, P.damage, P.is_victim, K.solar_system_id
		 FROM participants P JOIN killmails K ON K.killmail_id = P.killmail_id
		 WHERE P.%s = ? AND K.killmail_time >= ?`, kind.column())

	rows, err := s.db.QueryContext(ctx, query, id, windowStart(lookback))
	if err != nil {
		return nil, mapErr("history", err)
	}
	defer rows.Close()

	out := []ParticipationRow{}
	for rows.Next() {
		var r ParticipationRow
		var chr, corp, alli, ship sql.NullInt64
		var isVictim int
		if err := rows.Scan(&r.KillmailID, &chr, &corp, &alli, &ship, &r.Damage, &isVictim, &r.SolarSystemID); err != nil {
			return nil, mapErr("history scan", err)
		}
		r.CharacterID = nullable(chr)
		r.CorporationID = nullable(corp)
		r.AllianceID = nullable(alli)
		r.ShipTypeID = nullable(ship)
		r.IsVictim = isVictim != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("history", err)
	}
	return out, nil
}

// Relations derives the co-participation tally for a subject. Stage one
// seeds the distinct killmail ids where the subject appears with the
// relation's victim flag inside the window; stage two groups all
// participants of those killmails by the relation column. The subject's
// own id and the unidentified sentinel never appear in the output.
func (s *Store) Relations(ctx context.Context, kind SubjectKind, id int64, rel RelationKind, lookback time.Duration) ([]RelationCount, error) {
	spec := relationSpec[rel]
	query := fmt.Sprintf(
		`WITH seed(id) AS (
			SELECT DISTINCT K.killmail_id
			FROM participants P JOIN killmails K ON K.killmail_id = P.killmail_id
			WHERE P.%s = ? AND P.is_victim = ? AND K.killmail_time >= ?
		 )
		 SELECT P.%s AS related, count(*) AS times
		 FROM seed JOIN participants P ON P.killmail_id = seed.id
		 WHERE P.%s IS NOT NULL AND P.%s <> 0 AND P.%s <> ?
		 GROUP BY P.%s`,
		kind.column(), spec.column, spec.column, spec.column, spec.column, spec.column)

	rows, err := s.db.QueryContext(ctx, query, id, spec.victim, windowStart(lookback), id)
	if err != nil {
		return nil, mapErr("relations", err)
	}
	defer rows.Close()

	out := []RelationCount{}
	for rows.Next() {
		var rc RelationCount
		if err := rows.Scan(&rc.ID, &rc.Count); err != nil {
			return nil, mapErr("relations scan", err)
		}
		if rc.ID == 0 {
			continue
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("relations", err)
	}
	return out, nil
}

// Activity buckets the subject's participation by hour of day within
// the window. Only non-zero buckets are returned; densification to all
// 24 hours is a presentation step (see api.DensifyHours).
func (s *Store) Activity(ctx context.Context, kind SubjectKind, id int64, lookback time.Duration) ([]HourCount, error) {
	query := fmt.Sprintf(
		`SELECT cast(strftime('%%H', K.killmail_time) AS INTEGER) AS hour, count(K.killmail_id) AS actions
		 FROM participants P JOIN killmails K ON K.killmail_id = P.killmail_id
		 WHERE P.%s = ? AND K.killmail_time >= ?
		 GROUP BY 1`, kind.column())

	rows, err := s.db.QueryContext(ctx, query, id, windowStart(lookback))
	if err != nil {
		return nil, mapErr("activity", err)
	}
	defer rows.Close()

	out := []HourCount{}
	for rows.Next() {
		var hc HourCount
		if err := rows.Scan(&hc.Hour, &hc.Count); err != nil {
			return nil, mapErr("activity scan", err)
		}
		out = append(out, hc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("activity", err)
	}
	return out, nil
}

// IDsForDate returns the killmail ids whose timestamp falls within the
// given calendar day (UTC, half-open). Used by reconciliation clients
// to detect ingestion gaps.
func (s *Store) IDsForDate(ctx context.Context, day time.Time) ([]int64, error) {
	left := day.UTC().Format("2006-01-02")
	right := day.UTC().AddDate(0, 0, 1).Format("2006-01-02")

	rows, err := s.db.QueryContext(ctx,
		`SELECT killmail_id FROM killmails WHERE killmail_time >= ? AND killmail_time < ?`,
		left, right)
	if err != nil {
		return nil, mapErr("ids for date", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, mapErr("ids for date scan", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("ids for date", err)
	}
	return ids, nil
}

// Sweep purges killmails older than the deletion horizon, participants
// first to satisfy the foreign key. Idempotent; returns the rows
// removed from each table.
func (s *Store) Sweep(ctx context.Context, horizon time.Duration) (participants, killmails int64, err error) {
	cutoff := windowStart(horizon)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, mapErr("sweep", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM participants
		 WHERE killmail_id IN (
			SELECT killmail_id FROM killmails WHERE killmail_time < ?
		 )`, cutoff)
	if err != nil {
		return 0, 0, mapErr("sweep participants", err)
	}
	participants, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		`DELETE FROM killmails WHERE killmail_time < ?`, cutoff)
	if err != nil {
		return 0, 0, mapErr("sweep killmails", err)
	}
	killmails, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, mapErr("sweep", err)
	}
	return participants, killmails, nil
}

func nullable(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
