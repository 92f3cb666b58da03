package eventstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technoly/gormeventstore"
	"gorm.io/gorm/clause"
)

func TestResolveSelectors(t *testing.T) {
	stream := clause.Column{Name: "stream"}

	cases := []struct {
		name   string
		sel    eventstore.StreamSelector
		filter *eventstore.EventStreamFilter
		want   []clause.Expression
	}{
		{
			name: "exact stream",
			sel:  eventstore.StreamName("orders:1"),
			want: []clause.Expression{clause.Eq{Column: stream, Value: "orders:1"}},
		},
		{
			name: "all streams",
			sel:  eventstore.AllStreams(),
		},
		{
			name: "category",
			sel:  eventstore.ForCategory("orders:"),
			want: []clause.Expression{clause.Expr{
				SQL:  "? LIKE ? ESCAPE '!'",
				Vars: []any{stream, "orders:%"},
			}},
		},
		{
			name: "category with wildcards",
			sel:  eventstore.ForCategory("50%_off!"),
			want: []clause.Expression{clause.Expr{
				SQL:  "? LIKE ? ESCAPE '!'",
				Vars: []any{stream, "50!%!_off!!%"},
			}},
		},
		{
			name: "correlation id is matched exactly",
			sel:  eventstore.ForCorrelationID("corr-1"),
			want: []clause.Expression{clause.Eq{Column: clause.Column{Name: "correlationid"}, Value: "corr-1"}},
		},
		{
			name:   "empty type filter",
			sel:    eventstore.AllStreams(),
			filter: eventstore.FilterByTypes(),
		},
		{
			name:   "type filter",
			sel:    eventstore.StreamName("orders:1"),
			filter: eventstore.FilterByTypes("OrderPlaced", "OrderShipped"),
			want: []clause.Expression{
				clause.Eq{Column: stream, Value: "orders:1"},
				clause.IN{Column: clause.Column{Name: "type"}, Values: []any{"OrderPlaced", "OrderShipped"}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := eventstore.Resolve("postgres", tc.sel, tc.filter)

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveCaseSensitiveCategoryPerDialect(t *testing.T) {
	stream := clause.Column{Name: "stream"}
	like := clause.Expr{SQL: "? LIKE ? ESCAPE '!'", Vars: []any{stream, "örders:%"}}

	cases := []struct {
		dialect string
		want    []clause.Expression
	}{
		{"postgres", []clause.Expression{like}},
		{"sqlite", []clause.Expression{like, clause.Expr{SQL: "substr(?, 1, ?) = ?", Vars: []any{stream, 7, "örders:"}}}},
		{"mysql", []clause.Expression{like, clause.Expr{SQL: "LEFT(?, ?) = CAST(? AS BINARY)", Vars: []any{stream, 7, "örders:"}}}},
	}

	for _, tc := range cases {
		t.Run(tc.dialect, func(t *testing.T) {
			got, err := eventstore.Resolve(tc.dialect, eventstore.ForCategory("örders:"), nil)

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveRejectsInvalidSelectors(t *testing.T) {
	_, err := eventstore.Resolve("postgres", nil, nil)
	assert.Error(t, err)

	_, err = eventstore.Resolve("postgres", eventstore.VirtualStreamName{Type: 42}, nil)
	assert.Error(t, err)
}

func TestVirtualStreamNameString(t *testing.T) {
	assert.Equal(t, "$all", eventstore.AllStreams().String())
	assert.Equal(t, "$category:orders:", eventstore.ForCategory("orders:").String())
	assert.Equal(t, "$correlation-id:corr-1", eventstore.ForCorrelationID("corr-1").String())
}
