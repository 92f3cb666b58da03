package eventstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyDriverErrors(t *testing.T) {
	cases := []struct {
		name    string
		dialect string
		err     error
		want    errorClass
	}{
		{"postgres stream version race", "postgres", &pgconn.PgError{Code: "23505", ConstraintName: "events_stream_version"}, errorClassUniqueViolation},
		{"postgres duplicate id", "postgres", &pgconn.PgError{Code: "23505", ConstraintName: "events_id"}, errorClassDuplicateID},
		{"postgres deadlock", "postgres", &pgconn.PgError{Code: "40P01"}, errorClassLock},
		{"postgres serialization failure", "postgres", &pgconn.PgError{Code: "40001"}, errorClassLock},
		{"postgres lock not available", "postgres", &pgconn.PgError{Code: "55P03"}, errorClassLock},
		{"postgres syntax error", "postgres", &pgconn.PgError{Code: "42601"}, errorClassOther},
		{"mysql stream version race", "mysql", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a-0' for key 'events.events_stream_version'"}, errorClassUniqueViolation},
		{"mysql duplicate id", "mysql", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'events.events_id'"}, errorClassDuplicateID},
		{"mysql duplicate id without schema prefix", "mysql", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'events_id'"}, errorClassDuplicateID},
		{"mysql deadlock", "mysql", &mysql.MySQLError{Number: 1213}, errorClassLock},
		{"mysql lock wait timeout", "mysql", &mysql.MySQLError{Number: 1205}, errorClassLock},
		{"sqlite unique", "sqlite", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, errorClassUniqueViolation},
		{"sqlite busy", "sqlite", sqlite3.Error{Code: sqlite3.ErrBusy}, errorClassLock},
		{"sqlite locked", "sqlite", sqlite3.Error{Code: sqlite3.ErrLocked}, errorClassLock},
		{"wrapped", "postgres", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "40P01"}), errorClassLock},
		{"translated duplicate key", "postgres", gorm.ErrDuplicatedKey, errorClassUniqueViolation},
		{"unknown", "sqlite", errors.New("disk I/O error"), errorClassOther},
		{"nil", "sqlite", nil, errorClassOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newDialect(tc.dialect, DefaultTableName)

			assert.Equal(t, tc.want, d.classify(tc.err))
		})
	}
}

func TestClassifyMySQLRaceOnStreamResemblingIDIndex(t *testing.T) {
	d := newDialect("mysql", "user")

	race := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'user_id:42-3' for key 'user.user_stream_version'"}
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'user_stream_version' for key 'user.user_id'"}

	assert.Equal(t, errorClassUniqueViolation, d.classify(race))
	assert.Equal(t, errorClassUniqueViolation, d.classify(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'user_id:42-3' for key 'user_stream_version'"}))
	assert.Equal(t, errorClassDuplicateID, d.classify(dup))
}

func TestDriverErrorCode(t *testing.T) {
	d := newDialect("postgres", DefaultTableName)

	assert.Equal(t, "40P01", d.code(&pgconn.PgError{Code: "40P01"}))
	assert.Equal(t, "1213", d.code(&mysql.MySQLError{Number: 1213}))
	assert.Equal(t, "2067", d.code(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
	assert.Equal(t, "", d.code(errors.New("other")))
}

func TestRetryBackoffDoubles(t *testing.T) {
	p := retryPolicy{interval: DefaultRetryInterval, maxRetries: DefaultMaxRetries}

	var total int64

	for retry := 0; retry < p.maxRetries; retry++ {
		total += p.backoff(retry).Milliseconds()
	}

	assert.Equal(t, int64(5), p.backoff(0).Milliseconds())
	assert.Equal(t, int64(640), p.backoff(7).Milliseconds())
	assert.Equal(t, int64(1275), total)
}
