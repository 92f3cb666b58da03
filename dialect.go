package eventstore

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

type errorClass int

const (
	errorClassOther errorClass = iota
	// errorClassUniqueViolation is a write race on (stream, version)
	errorClassUniqueViolation
	// errorClassDuplicateID is a unique violation on the event id
	errorClassDuplicateID
	// errorClassLock is a deadlock or lock wait timeout
	errorClassLock
)

func (c errorClass) String() string {
	switch c {
	case errorClassUniqueViolation:
		return "unique_violation"
	case errorClassDuplicateID:
		return "duplicate_id"
	case errorClassLock:
		return "lock"
	default:
		return "other"
	}
}

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"

	mysqlDupEntry        = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// dialect maps driver specific errors to error classes. All driver error
// codes the commit protocol depends on live here.
type dialect struct {
	name    string
	idIndex string
}

func newDialect(name, table string) dialect {
	return dialect{
		name:    name,
		idIndex: idIndexName(table),
	}
}

func (d dialect) classify(err error) errorClass {
	if err == nil {
		return errorClassOther
	}

	switch d.name {
	case "postgres":
		if c, ok := d.classifyPostgres(err); ok {
			return c
		}
	case "mysql":
		if c, ok := d.classifyMySQL(err); ok {
			return c
		}
	case "sqlite":
		if c, ok := d.classifySQLite(err); ok {
			return c
		}
	}

	// gorm translates driver errors when configured with TranslateError
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errorClassUniqueViolation
	}

	return errorClassOther
}

func (d dialect) classifyPostgres(err error) (errorClass, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return errorClassOther, false
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == d.idIndex {
			return errorClassDuplicateID, true
		}

		return errorClassUniqueViolation, true
	case pgDeadlockDetected, pgSerializationFailure, pgLockNotAvailable:
		return errorClassLock, true
	}

	return errorClassOther, true
}

func (d dialect) classifyMySQL(err error) (errorClass, bool) {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return errorClassOther, false
	}

	switch myErr.Number {
	case mysqlDupEntry:
		// "Duplicate entry '<value>' for key '<table>.<index>'", the
		// value may contain anything so only the key name is matched
		if strings.HasSuffix(myErr.Message, "'"+d.idIndex+"'") ||
			strings.HasSuffix(myErr.Message, "."+d.idIndex+"'") {
			return errorClassDuplicateID, true
		}

		return errorClassUniqueViolation, true
	case mysqlDeadlock, mysqlLockWaitTimeout:
		return errorClassLock, true
	}

	return errorClassOther, true
}

func (d dialect) classifySQLite(err error) (errorClass, bool) {
	var liteErr sqlite3.Error
	if !errors.As(err, &liteErr) {
		return errorClassOther, false
	}

	switch {
	case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
		liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
		// "UNIQUE constraint failed: events.id"
		if strings.HasSuffix(liteErr.Error(), ".id") {
			return errorClassDuplicateID, true
		}

		return errorClassUniqueViolation, true
	case liteErr.Code == sqlite3.ErrBusy, liteErr.Code == sqlite3.ErrLocked:
		return errorClassLock, true
	}

	return errorClassOther, true
}

// code returns the driver specific error code for diagnostics
func (d dialect) code(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number))
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return strconv.Itoa(int(liteErr.ExtendedCode))
	}

	return ""
}

func idIndexName(table string) string { return table + "_id" }

func streamVersionIndexName(table string) string { return table + "_stream_version" }

func correlationIndexName(table string) string { return table + "_correlationid" }
