package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kafkasder-git/starter-function-sub002/internal/person"
)

var personColumns = []string{
	"id", "external_id", "name", "national_id", "nationality", "country", "city",
	"settlement", "neighborhood", "address", "family_member_count", "linked_orphan",
	"linked_card", "phone", "registration_date", "registration_unit", "category",
	"person_type", "fund_region", "total_amount", "iban", "status", "import_run_id",
}

// PersonStore writes person batches. It satisfies
// bulkimport.BatchImporter[person.Person].
type PersonStore struct {
	db Beginner
}

// NewPersonStore creates a PersonStore.
func NewPersonStore(db Beginner) *PersonStore {
	return &PersonStore{db: db}
}

// ImportBatch inserts a batch in one transaction and returns the persons
// that were stored, with their assigned IDs. Rows that clash with an
// existing national ID are skipped and left out of the result.
//
// Rows are tagged with the run ID carried by ctx, if any. The batch is
// copied into a temporary staging table first so the final INSERT can use
// ON CONFLICT DO NOTHING.
func (s *PersonStore) ImportBatch(ctx context.Context, batch []person.Person) ([]person.Person, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	people := stage(batch)
	runID := RunIDFromContext(ctx)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE persons_stage (LIKE persons INCLUDING DEFAULTS) ON COMMIT DROP`); err != nil {
		return nil, fmt.Errorf("create staging table: %w", err)
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"persons_stage"}, personColumns,
		pgx.CopyFromSlice(len(people), func(i int) ([]any, error) {
			return personRow(people[i], runID), nil
		}))
	if err != nil {
		return nil, fmt.Errorf("copy batch: %w", err)
	}

	cols := quotedColumns()
	rows, err := tx.Query(ctx, fmt.Sprintf(
		`INSERT INTO persons (%s) SELECT %s FROM persons_stage ON CONFLICT DO NOTHING RETURNING id`,
		cols, cols))
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}
	inserted, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return filterInserted(people, inserted), nil
}

// CountPersons returns the number of stored persons.
func CountPersons(ctx context.Context, db DBTX) (int64, error) {
	var n int64
	if err := db.QueryRow(ctx, `SELECT count(*) FROM persons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}
	return n, nil
}

// staged is a person ready for COPY.
type staged struct {
	person.Person
	externalID string // ID from the file when it is not a UUID
}

// stage gives every person a UUID. A non-UUID ID supplied by the file is
// kept as the external ID.
func stage(batch []person.Person) []staged {
	out := make([]staged, len(batch))
	for i, p := range batch {
		out[i] = staged{Person: p}
		id, err := uuid.Parse(p.ID)
		if err != nil {
			out[i].externalID = p.ID
			out[i].ID = uuid.NewString()
			continue
		}
		out[i].ID = id.String()
	}
	return out
}

// filterInserted keeps the staged persons whose IDs were returned by the
// INSERT, in batch order. Each returned ID accepts one person, so a batch
// repeating an ID reports only the row that was stored.
func filterInserted(people []staged, inserted []uuid.UUID) []person.Person {
	remaining := make(map[string]int, len(inserted))
	for _, id := range inserted {
		remaining[id.String()]++
	}
	out := make([]person.Person, 0, len(inserted))
	for _, p := range people {
		if remaining[p.ID] > 0 {
			remaining[p.ID]--
			out = append(out, p.Person)
		}
	}
	return out
}

func quotedColumns() string {
	quoted := make([]string, len(personColumns))
	for i, c := range personColumns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

func personRow(p staged, runID uuid.UUID) []any {
	return []any{
		pgUUID(uuid.MustParse(p.ID)),
		pgText(p.externalID),
		p.Name,
		pgText(p.NationalID),
		pgText(p.Nationality),
		pgText(p.Country),
		pgText(p.City),
		pgText(p.Settlement),
		pgText(p.Neighborhood),
		pgText(p.Address),
		pgInt4(p.FamilyMemberCount),
		pgText(p.LinkedOrphan),
		pgText(p.LinkedCard),
		pgText(p.Phone),
		pgDate(p.RegistrationDate),
		pgText(p.RegistrationUnit),
		pgText(p.Category),
		pgText(p.Type),
		pgText(p.FundRegion),
		pgFloat8(p.TotalAmount),
		pgText(p.IBAN),
		p.Status,
		pgUUID(runID),
	}
}
