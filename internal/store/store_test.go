package store

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kafkasder-git/starter-function-sub002/internal/person"
)

func TestStage_AssignsIDs(t *testing.T) {
	existing := uuid.New()
	batch := []person.Person{
		{ID: existing.String(), Name: "Ali"},
		{ID: "17", Name: "Veli"},
		{Name: "Can"},
	}

	got := stage(batch)

	if got[0].ID != existing.String() || got[0].externalID != "" {
		t.Errorf("UUID id rewritten: %+v", got[0])
	}
	if got[1].externalID != "17" {
		t.Errorf("externalID = %q, want 17", got[1].externalID)
	}
	for i, p := range got {
		if _, err := uuid.Parse(p.ID); err != nil {
			t.Errorf("staged[%d].ID = %q is not a UUID", i, p.ID)
		}
	}
	if batch[1].ID != "17" {
		t.Error("stage modified the input batch")
	}
}

func TestFilterInserted(t *testing.T) {
	people := stage([]person.Person{{Name: "A"}, {Name: "B"}, {Name: "C"}})
	inserted := []uuid.UUID{uuid.MustParse(people[2].ID), uuid.MustParse(people[0].ID)}

	got := filterInserted(people, inserted)
	if len(got) != 2 || got[0].Name != "A" || got[1].Name != "C" {
		t.Errorf("filterInserted = %+v, want A and C in batch order", got)
	}
}

func TestFilterInserted_RepeatedID(t *testing.T) {
	id := uuid.New()
	people := stage([]person.Person{
		{ID: id.String(), Name: "A"},
		{ID: id.String(), Name: "B"},
		{Name: "C"},
	})
	inserted := []uuid.UUID{id, uuid.MustParse(people[2].ID)}

	got := filterInserted(people, inserted)
	if len(got) != len(inserted) {
		t.Fatalf("filterInserted accepted %d persons, want %d", len(got), len(inserted))
	}
	if got[0].Name != "A" || got[1].Name != "C" {
		t.Errorf("filterInserted = %+v, want A and C", got)
	}
}

func TestStage_CanonicalUUID(t *testing.T) {
	id := uuid.New()
	got := stage([]person.Person{{ID: strings.ToUpper(id.String()), Name: "A"}})

	if got[0].ID != id.String() {
		t.Errorf("staged ID = %q, want %q", got[0].ID, id.String())
	}
	if len(filterInserted(got, []uuid.UUID{id})) != 1 {
		t.Error("upper-case UUID not matched by the returned ID")
	}
}

func TestPersonRow(t *testing.T) {
	count := 3
	amount := 250.0
	p := stage([]person.Person{{
		ID:                "ext-1",
		Name:              "Ayşe",
		NationalID:        "12345678901",
		FamilyMemberCount: &count,
		TotalAmount:       &amount,
		RegistrationDate:  "2024-01-15",
		Status:            person.StatusActive,
	}})[0]
	runID := uuid.New()

	row := personRow(p, runID)
	if len(row) != len(personColumns) {
		t.Fatalf("row has %d values for %d columns", len(row), len(personColumns))
	}

	if ext := row[1].(pgtype.Text); !ext.Valid || ext.String != "ext-1" {
		t.Errorf("external_id = %+v", ext)
	}
	if city := row[6].(pgtype.Text); city.Valid {
		t.Errorf("empty city should be NULL, got %+v", city)
	}
	if n := row[10].(pgtype.Int4); !n.Valid || n.Int32 != 3 {
		t.Errorf("family_member_count = %+v", n)
	}
	if d := row[14].(pgtype.Date); !d.Valid || d.Time.Format(dateLayout) != "2024-01-15" {
		t.Errorf("registration_date = %+v", d)
	}
	if r := row[22].(pgtype.UUID); !r.Valid || uuid.UUID(r.Bytes) != runID {
		t.Errorf("import_run_id = %+v", r)
	}
}

func TestQuotedColumns(t *testing.T) {
	got := quotedColumns()
	if !strings.HasPrefix(got, `"id", "external_id"`) || strings.Count(got, ",") != len(personColumns)-1 {
		t.Errorf("quotedColumns() = %s", got)
	}
}

func TestRunIDContext(t *testing.T) {
	if got := RunIDFromContext(context.Background()); got != uuid.Nil {
		t.Errorf("RunIDFromContext(empty) = %v, want Nil", got)
	}
	id := uuid.New()
	if got := RunIDFromContext(WithRunID(context.Background(), id)); got != id {
		t.Errorf("RunIDFromContext = %v, want %v", got, id)
	}
}

func TestDatabaseName(t *testing.T) {
	tests := []struct{ dsn, want string }{
		{"postgres://user:pw@localhost:5432/ngo?sslmode=disable", "ngo"},
		{"host=localhost dbname=ngo", ""},
	}
	for _, tt := range tests {
		if got := databaseName(tt.dsn); got != tt.want {
			t.Errorf("databaseName(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}
