package eventstore

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"
)

type tableIndex struct {
	name    string
	columns []string
	unique  bool
}

func (es *EventStore) indexes() []tableIndex {
	return []tableIndex{
		{name: idIndexName(es.table), columns: []string{"id"}, unique: true},
		{name: streamVersionIndexName(es.table), columns: []string{"stream", "version"}, unique: true},
		{name: correlationIndexName(es.table), columns: []string{"correlationid"}},
	}
}

// Setup creates the events table and its indexes. It is safe to call
// repeatedly.
func (es *EventStore) Setup(ctx context.Context) error {
	if err := es.ensureConnected(ctx); err != nil {
		return err
	}

	db := es.db.WithContext(ctx)

	if err := db.Table(es.table).AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("could not migrate table %q: %w", es.table, err)
	}

	migrator := db.Migrator()

	for _, idx := range es.indexes() {
		if migrator.HasIndex(es.table, idx.name) {
			continue
		}

		stmt := "CREATE INDEX"
		if idx.unique {
			stmt = "CREATE UNIQUE INDEX"
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(idx.columns)), ",")

		vars := []any{clause.Column{Name: idx.name}, clause.Table{Name: es.table}}
		for _, c := range idx.columns {
			vars = append(vars, clause.Column{Name: c})
		}

		if err := db.Exec(stmt+" ? ON ? ("+placeholders+")", vars...).Error; err != nil {
			return fmt.Errorf("could not create index %q: %w", idx.name, err)
		}
	}

	return nil
}

// StatusType is the outcome of a status check
type StatusType int

const (
	// StatusOK means the database is reachable
	StatusOK StatusType = iota
	// StatusError means the database could not be reached
	StatusError
)

// Status reports whether the event store is usable
type Status struct {
	Type    StatusType
	Details string
}

// Status reports whether the database is reachable. The table schema is
// not verified, JSON column types produce false positives on some backends.
func (es *EventStore) Status(ctx context.Context) Status {
	if err := es.ensureConnected(ctx); err != nil {
		return Status{
			Type:    StatusError,
			Details: fmt.Sprintf("failed to connect to database: %v", err),
		}
	}

	return Status{Type: StatusOK}
}
