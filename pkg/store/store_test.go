package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "zkbinfo-store-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	st, err := NewStore(filepath.Join(tmpDir, "killmail.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestNewStore(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "zkbinfo-store-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "killmail.db")

	st, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer st.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file was not created at %s", dbPath)
	}

	for _, table := range []string{"killmails", "participants"} {
		var name string
		err = st.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s not found: %v", table, err)
		}
	}

	// Foreign keys must be enforced for the session.
	var fk int
	if err := st.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("failed to read foreign_keys pragma: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}

	// Safe to invoke on every process start.
	if err := st.migrate(); err != nil {
		t.Errorf("second migrate failed: %v", err)
	}
}

// TestForeignKeysOnEveryPooledConnection pins all but one pool slot so
// the final query is forced onto a freshly opened connection, which
// must still have foreign keys enforced.
func TestForeignKeysOnEveryPooledConnection(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "zkbinfo-store-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	st, err := NewStoreWithPool(filepath.Join(tmpDir, "killmail.db"), 4)
	if err != nil {
		t.Fatalf("NewStoreWithPool failed: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	var held []*sql.Conn
	for i := 0; i < 3; i++ {
		conn, err := st.db.Conn(ctx)
		if err != nil {
			t.Fatalf("failed to check out connection %d: %v", i, err)
		}
		held = append(held, conn)
	}
	defer func() {
		for _, conn := range held {
			conn.Close()
		}
	}()

	conn, err := st.db.Conn(ctx)
	if err != nil {
		t.Fatalf("failed to check out fresh connection: %v", err)
	}
	defer conn.Close()

	var fk int
	if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("failed to read foreign_keys pragma: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d on fresh pooled connection, want 1", fk)
	}

	// An orphan participant row must be rejected on this connection too.
	_, err = conn.ExecContext(ctx,
		`INSERT INTO participants (killmail_id, character_id, damage, is_victim)
		 VALUES (999999, 1, 0, 0)`)
	if err == nil {
		t.Fatal("orphan participant insert succeeded, want constraint violation")
	}
	if !errors.Is(mapErr("insert", err), ErrConstraint) {
		t.Errorf("orphan insert error = %v, want constraint class", err)
	}
}

func TestStoreIndices(t *testing.T) {
	st := newTestStore(t)

	rows, err := st.db.Query("SELECT name FROM sqlite_master WHERE type='index'")
	if err != nil {
		t.Fatalf("failed to list indices: %v", err)
	}
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		found[name] = true
	}

	if !found["idx_killmails_time"] {
		t.Errorf("idx_killmails_time not found")
	}
	if !found["idx_participants_subject"] {
		t.Errorf("idx_participants_subject not found")
	}
}

func TestSubjectKindColumns(t *testing.T) {
	cases := map[SubjectKind]string{
		SubjectCharacter:   "character_id",
		SubjectCorporation: "corporation_id",
		SubjectAlliance:    "alliance_id",
	}
	for kind, want := range cases {
		if got := kind.column(); got != want {
			t.Errorf("%v.column() = %q, want %q", kind, got, want)
		}
	}
}

func TestRelationSpecExhaustive(t *testing.T) {
	cases := []struct {
		rel    RelationKind
		column string
		victim int
	}{
		{FriendsChar, "character_id", 0},
		{EnemiesChar, "character_id", 1},
		{FriendsCorp, "corporation_id", 0},
		{EnemiesCorp, "corporation_id", 1},
		{FriendsAlli, "alliance_id", 0},
		{EnemiesAlli, "alliance_id", 1},
	}
	if len(cases) != len(relationSpec) {
		t.Fatalf("relationSpec has %d entries, want %d", len(relationSpec), len(cases))
	}
	for _, tc := range cases {
		spec := relationSpec[tc.rel]
		if spec.column != tc.column || spec.victim != tc.victim {
			t.Errorf("relationSpec[%d] = %+v, want {%s %d}", tc.rel, spec, tc.column, tc.victim)
		}
	}
}

func TestParseSubject(t *testing.T) {
	if _, err := ParseSubject("fleet"); err == nil {
		t.Error("expected error for unknown subject kind")
	}
	kind, err := ParseSubject("corporation")
	if err != nil {
		t.Fatalf("ParseSubject failed: %v", err)
	}
	if kind != SubjectCorporation {
		t.Errorf("kind = %v, want corporation", kind)
	}
}

func TestParseRelation(t *testing.T) {
	rel, err := ParseRelation("enemies", "alli")
	if err != nil {
		t.Fatalf("ParseRelation failed: %v", err)
	}
	if rel != EnemiesAlli {
		t.Errorf("rel = %d, want EnemiesAlli", rel)
	}
	if _, err := ParseRelation("rivals", "char"); err == nil {
		t.Error("expected error for unknown polarity")
	}
	if _, err := ParseRelation("friends", "coalition"); err == nil {
		t.Error("expected error for unknown grouping")
	}
}
