package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zkb-tools/zkbinfo/pkg/killmail"
)

func i64(v int64) *int64 { return &v }

// mkKillmail builds a killmail with one identified victim and the given
// attackers, timestamped relative to now.
func mkKillmail(id int64, age time.Duration, victim killmail.Victim, attackers ...killmail.Attacker) *killmail.Killmail {
	return &killmail.Killmail{
		KillmailID:    id,
		KillmailTime:  time.Now().UTC().Add(-age).Format(timeLayout),
		SolarSystemID: 30000142,
		Victim:        victim,
		Attackers:     attackers,
	}
}

func countRows(t *testing.T, st *Store, table string) int {
	t.Helper()
	var n int
	if err := st.db.QueryRow("SELECT count(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	return n
}

func TestInsertIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	km := mkKillmail(1, time.Hour,
		killmail.Victim{CharacterID: i64(100), CorporationID: i64(1000), DamageTaken: 500},
		killmail.Attacker{CharacterID: i64(200), CorporationID: i64(2000), DamageDone: 500},
		killmail.Attacker{CharacterID: i64(201), CorporationID: i64(2000), DamageDone: 0},
	)

	for i := 0; i < 3; i++ {
		if err := st.Insert(ctx, km); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}

	if n := countRows(t, st, "killmails"); n != 1 {
		t.Errorf("killmails = %d, want 1", n)
	}
	if n := countRows(t, st, "participants"); n != 3 {
		t.Errorf("participants = %d, want 3", n)
	}
}

func TestInsertLateAttacker(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	victim := killmail.Victim{CharacterID: i64(100), DamageTaken: 500}
	first := mkKillmail(7, time.Hour, victim,
		killmail.Attacker{CharacterID: i64(200), DamageDone: 300},
	)
	if err := st.Insert(ctx, first); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// Redelivery with one previously-unseen attacker: only the new
	// participant row is added.
	second := mkKillmail(7, time.Hour, victim,
		killmail.Attacker{CharacterID: i64(200), DamageDone: 300},
		killmail.Attacker{CharacterID: i64(300), DamageDone: 200},
	)
	second.KillmailTime = first.KillmailTime
	if err := st.Insert(ctx, second); err != nil {
		t.Fatalf("re-insert failed: %v", err)
	}

	if n := countRows(t, st, "killmails"); n != 1 {
		t.Errorf("killmails = %d, want 1", n)
	}
	if n := countRows(t, st, "participants"); n != 3 {
		t.Errorf("participants = %d, want 3", n)
	}
}

func TestInsertRejectsMalformed(t *testing.T) {
	st := newTestStore(t)

	km := mkKillmail(0, time.Hour, killmail.Victim{DamageTaken: 1},
		killmail.Attacker{DamageDone: 1})

	err := st.Insert(context.Background(), km)
	if !errors.Is(err, killmail.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if n := countRows(t, st, "killmails"); n != 0 {
		t.Errorf("killmails = %d, want 0 (no write before validation)", n)
	}
}

func TestHistory(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	km := mkKillmail(1, time.Hour,
		killmail.Victim{CharacterID: i64(100), ShipTypeID: i64(47466), DamageTaken: 500},
		killmail.Attacker{CharacterID: i64(200), DamageDone: 500},
	)
	if err := st.Insert(ctx, km); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	rows, err := st.History(ctx, SubjectCharacter, 100, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("history rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if !r.IsVictim || r.Damage != 500 || r.SolarSystemID != 30000142 {
		t.Errorf("unexpected row: %+v", r)
	}
	if r.ShipTypeID == nil || *r.ShipTypeID != 47466 {
		t.Errorf("ship_type_id = %v, want 47466", r.ShipTypeID)
	}

	// Unknown subject yields an empty result, not an error.
	rows, err = st.History(ctx, SubjectCharacter, 999, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("history rows = %d, want 0", len(rows))
	}
}

func TestWindowBoundary(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	lookback := 30 * 24 * time.Hour

	inside := mkKillmail(1, lookback-time.Hour,
		killmail.Victim{CharacterID: i64(100), DamageTaken: 1},
		killmail.Attacker{CharacterID: i64(200), DamageDone: 1})
	outside := mkKillmail(2, lookback+time.Hour,
		killmail.Victim{CharacterID: i64(100), DamageTaken: 1},
		killmail.Attacker{CharacterID: i64(200), DamageDone: 1})

	for _, km := range []*killmail.Killmail{inside, outside} {
		if err := st.Insert(ctx, km); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	rows, err := st.History(ctx, SubjectCharacter, 100, lookback)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(rows) != 1 || rows[0].KillmailID != 1 {
		t.Fatalf("history returned %+v, want only killmail 1", rows)
	}

	rels, err := st.Relations(ctx, SubjectCharacter, 100, EnemiesChar, lookback)
	if err != nil {
		t.Fatalf("relations failed: %v", err)
	}
	if len(rels) != 1 || rels[0].ID != 200 || rels[0].Count != 1 {
		t.Fatalf("relations = %+v, want [{200 1}]", rels)
	}

	hours, err := st.Activity(ctx, SubjectCharacter, 100, lookback)
	if err != nil {
		t.Fatalf("activity failed: %v", err)
	}
	var total uint64
	for _, h := range hours {
		total += h.Count
	}
	if total != 1 {
		t.Errorf("activity total = %d, want 1", total)
	}
}

func TestRelationsExcludesSubjectAndSentinel(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Attacker without a character id (NPC) must never show up, and
	// neither must the subject itself.
	km := mkKillmail(1, time.Hour,
		killmail.Victim{CharacterID: i64(100), DamageTaken: 500},
		killmail.Attacker{CharacterID: i64(200), DamageDone: 400},
		killmail.Attacker{DamageDone: 100},
	)
	if err := st.Insert(ctx, km); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	rels, err := st.Relations(ctx, SubjectCharacter, 200, FriendsChar, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("relations failed: %v", err)
	}
	for _, rc := range rels {
		if rc.ID == 200 {
			t.Errorf("subject's own id in result: %+v", rels)
		}
		if rc.ID == 0 {
			t.Errorf("sentinel id 0 in result: %+v", rels)
		}
	}
	// The victim co-participated in the engagement and is counted.
	if len(rels) != 1 || rels[0].ID != 100 {
		t.Errorf("relations = %+v, want [{100 1}]", rels)
	}
}

func TestRelationSymmetry(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	lookback := 30 * 24 * time.Hour

	// Event 1: A (1) and B (2) both attackers.
	ev1 := mkKillmail(1, 2*time.Hour,
		killmail.Victim{CharacterID: i64(9), DamageTaken: 100},
		killmail.Attacker{CharacterID: i64(1), DamageDone: 60},
		killmail.Attacker{CharacterID: i64(2), DamageDone: 40},
	)
	// Event 2: A is the victim, B an attacker.
	ev2 := mkKillmail(2, time.Hour,
		killmail.Victim{CharacterID: i64(1), DamageTaken: 100},
		killmail.Attacker{CharacterID: i64(2), DamageDone: 100},
	)
	for _, km := range []*killmail.Killmail{ev1, ev2} {
		if err := st.Insert(ctx, km); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	friends, err := st.Relations(ctx, SubjectCharacter, 1, FriendsChar, lookback)
	if err != nil {
		t.Fatalf("friends failed: %v", err)
	}
	if got := findCount(friends, 2); got != 1 {
		t.Errorf("friends[2] = %d, want 1 (event 1)", got)
	}

	enemies, err := st.Relations(ctx, SubjectCharacter, 1, EnemiesChar, lookback)
	if err != nil {
		t.Fatalf("enemies failed: %v", err)
	}
	if got := findCount(enemies, 2); got != 1 {
		t.Errorf("enemies[2] = %d, want 1 (event 2)", got)
	}
}

func TestRelationsByCorporation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Two pilots of corp 2000 attack in the same event: grouping by
	// corporation counts both rows.
	km := mkKillmail(1, time.Hour,
		killmail.Victim{CharacterID: i64(100), CorporationID: i64(1000), DamageTaken: 500},
		killmail.Attacker{CharacterID: i64(200), CorporationID: i64(2000), DamageDone: 300},
		killmail.Attacker{CharacterID: i64(201), CorporationID: i64(2000), DamageDone: 200},
	)
	if err := st.Insert(ctx, km); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	rels, err := st.Relations(ctx, SubjectCorporation, 1000, EnemiesCorp, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("relations failed: %v", err)
	}
	if got := findCount(rels, 2000); got != 2 {
		t.Errorf("enemies[2000] = %d, want 2", got)
	}
}

func TestActivityBuckets(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	mk := func(id int64, hour int) *killmail.Killmail {
		ts := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
		if ts.After(now) {
			ts = ts.AddDate(0, 0, -1)
		}
		return &killmail.Killmail{
			KillmailID:    id,
			KillmailTime:  ts.Format(timeLayout),
			SolarSystemID: 30000142,
			Victim:        killmail.Victim{CharacterID: i64(100), DamageTaken: 1},
			Attackers:     []killmail.Attacker{{CharacterID: i64(200), DamageDone: 1}},
		}
	}

	for i, km := range []*killmail.Killmail{mk(1, 3), mk(2, 3), mk(3, 17)} {
		if err := st.Insert(ctx, km); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}

	hours, err := st.Activity(ctx, SubjectCharacter, 100, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("activity failed: %v", err)
	}
	got := map[int]uint64{}
	for _, h := range hours {
		got[h.Hour] = h.Count
	}
	if len(got) != 2 || got[3] != 2 || got[17] != 1 {
		t.Errorf("activity = %v, want {3:2, 17:1}", got)
	}
}

func TestIDsForDate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	inDay := &killmail.Killmail{
		KillmailID:    1,
		KillmailTime:  "2024-01-01T10:00:00Z",
		SolarSystemID: 30000142,
		Victim:        killmail.Victim{CharacterID: i64(100), DamageTaken: 1},
		Attackers:     []killmail.Attacker{{CharacterID: i64(200), DamageDone: 1}},
	}
	nextDay := &killmail.Killmail{
		KillmailID:    2,
		KillmailTime:  "2024-01-02T00:00:00Z",
		SolarSystemID: 30000142,
		Victim:        killmail.Victim{CharacterID: i64(100), DamageTaken: 1},
		Attackers:     []killmail.Attacker{{CharacterID: i64(200), DamageDone: 1}},
	}
	for _, km := range []*killmail.Killmail{inDay, nextDay} {
		if err := st.Insert(ctx, km); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	ids, err := st.IDsForDate(ctx, day)
	if err != nil {
		t.Fatalf("IDsForDate failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("ids = %v, want [1]", ids)
	}
}

func TestInsertNormalizesZoneOffset(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// 01:30 at +03:00 is 22:30 UTC the previous day; the stored text
	// must reflect the UTC instant or date bucketing goes wrong.
	km := &killmail.Killmail{
		KillmailID:    1,
		KillmailTime:  "2024-01-01T01:30:00+03:00",
		SolarSystemID: 30000142,
		Victim:        killmail.Victim{CharacterID: i64(100), DamageTaken: 1},
		Attackers:     []killmail.Attacker{{CharacterID: i64(200), DamageDone: 1}},
	}
	if err := st.Insert(ctx, km); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	var stored string
	if err := st.db.QueryRow(
		"SELECT killmail_time FROM killmails WHERE killmail_id = 1").Scan(&stored); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if stored != "2023-12-31T22:30:00Z" {
		t.Errorf("stored time = %q, want 2023-12-31T22:30:00Z", stored)
	}

	ids, err := st.IDsForDate(ctx, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("IDsForDate failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("ids for 2023-12-31 = %v, want [1]", ids)
	}

	ids, err = st.IDsForDate(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("IDsForDate failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids for 2024-01-01 = %v, want none", ids)
	}
}

func TestSweep(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	horizon := 90 * 24 * time.Hour

	old := mkKillmail(1, horizon+24*time.Hour,
		killmail.Victim{CharacterID: i64(100), DamageTaken: 1},
		killmail.Attacker{CharacterID: i64(200), DamageDone: 1})
	fresh := mkKillmail(2, horizon-24*time.Hour,
		killmail.Victim{CharacterID: i64(100), DamageTaken: 1},
		killmail.Attacker{CharacterID: i64(200), DamageDone: 1})

	for _, km := range []*killmail.Killmail{old, fresh} {
		if err := st.Insert(ctx, km); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	parts, kms, err := st.Sweep(ctx, horizon)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if parts != 2 || kms != 1 {
		t.Errorf("sweep removed %d participants, %d killmails; want 2, 1", parts, kms)
	}

	if n := countRows(t, st, "killmails"); n != 1 {
		t.Errorf("killmails = %d, want 1", n)
	}
	if n := countRows(t, st, "participants"); n != 2 {
		t.Errorf("participants = %d, want 2", n)
	}

	// Absent from every query after the sweep.
	rows, err := st.History(ctx, SubjectCharacter, 100, 365*24*time.Hour)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	for _, r := range rows {
		if r.KillmailID == 1 {
			t.Errorf("swept killmail still visible: %+v", r)
		}
	}

	// Nothing eligible: a no-op, not an error.
	parts, kms, err = st.Sweep(ctx, horizon)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if parts != 0 || kms != 0 {
		t.Errorf("second sweep removed %d, %d; want 0, 0", parts, kms)
	}
}

func TestEndToEndScenario(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	lookback := 30 * 24 * time.Hour

	km := mkKillmail(1, time.Hour,
		killmail.Victim{CharacterID: i64(100), DamageTaken: 500},
		killmail.Attacker{CharacterID: i64(200), DamageDone: 500},
	)
	if err := st.Insert(ctx, km); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	rows, err := st.History(ctx, SubjectCharacter, 100, lookback)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(rows) != 1 || !rows[0].IsVictim || rows[0].Damage != 500 {
		t.Errorf("history = %+v, want one victim row with damage 500", rows)
	}

	// 200 never died: no enemy seed.
	enemies, err := st.Relations(ctx, SubjectCharacter, 200, EnemiesChar, lookback)
	if err != nil {
		t.Fatalf("relations failed: %v", err)
	}
	if len(enemies) != 0 {
		t.Errorf("enemies of 200 = %+v, want empty", enemies)
	}

	enemies, err = st.Relations(ctx, SubjectCharacter, 100, EnemiesChar, lookback)
	if err != nil {
		t.Fatalf("relations failed: %v", err)
	}
	if len(enemies) != 1 || enemies[0].ID != 200 || enemies[0].Count != 1 {
		t.Errorf("enemies of 100 = %+v, want [{200 1}]", enemies)
	}
}

func findCount(rels []RelationCount, id int64) uint64 {
	for _, rc := range rels {
		if rc.ID == id {
			return rc.Count
		}
	}
	return 0
}
