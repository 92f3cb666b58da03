package eventstore

import (
	"context"
	"time"

	"gorm.io/gorm/clause"
)

// SetSleep replaces the wait between commit retries
func SetSleep(es *EventStore, sleep func(context.Context, time.Duration) error) {
	es.sleep = sleep
}

// Resolve exposes the read predicates of a selector for the given dialect
func Resolve(dialectName string, sel StreamSelector, filter *EventStreamFilter) ([]clause.Expression, error) {
	return newDialect(dialectName, DefaultTableName).resolve(sel, filter)
}
