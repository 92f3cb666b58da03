// Package example shows how an account service is put together on top of
// the event store, the aggregate store and the projectors
package example

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/technoly/gormeventstore"
	"github.com/technoly/gormeventstore/aggregate"
	"github.com/technoly/gormeventstore/example/account"
)

// AccountStore is the aggregate store of accounts
type AccountStore = aggregate.Store[*account.Account]

// NewAccountStore constructs the account store on top of an event store.
// Every save commits through its own session of es, so concurrent requests
// never share a writer.
func NewAccountStore(es *eventstore.EventStore) *AccountStore {
	return aggregate.NewStore[*account.Account](sessionPerCommit{es: es}, eventstore.NewJSONEncoder(account.Events...))
}

type sessionPerCommit struct {
	es *eventstore.EventStore
}

func (s sessionPerCommit) Commit(
	ctx context.Context,
	stream eventstore.StreamName,
	events eventstore.Events,
	expected eventstore.ExpectedVersion,
) (eventstore.CommitResult, error) {
	return s.es.Session().Commit(ctx, stream, events, expected)
}

func (s sessionPerCommit) Load(sel eventstore.StreamSelector, filter *eventstore.EventStreamFilter) (eventstore.EventStream, error) {
	return s.es.Load(sel, filter)
}

type openAccountReq struct {
	Holder string `json:"holder"`
}

type amountReq struct {
	Amount int `json:"amount"`
}

type accountResp struct {
	ID      string `json:"id"`
	Balance int    `json:"balance"`
}

// NewOpenAccountHandler creates new account opening endpoint example
func NewOpenAccountHandler(store *AccountStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req openAccountReq

		if err := c.Bind(&req); err != nil {
			return err
		}

		acc, err := account.New(account.NewID(), req.Holder)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		if err := store.Save(c.Request().Context(), acc); err != nil {
			return httpError(err)
		}

		return c.JSON(http.StatusCreated, accountResp{ID: acc.ID.String()})
	}
}

// NewDepositHandler creates the deposit endpoint example
func NewDepositHandler(store *AccountStore) echo.HandlerFunc {
	return newAmountHandler(store, (*account.Account).Deposit)
}

// NewWithdrawHandler creates the withdrawal endpoint example
func NewWithdrawHandler(store *AccountStore) echo.HandlerFunc {
	return newAmountHandler(store, (*account.Account).Withdraw)
}

func newAmountHandler(store *AccountStore, op func(*account.Account, int) error) echo.HandlerFunc {
	exec := aggregate.NewExecutor(store)

	return func(c echo.Context) error {
		var req amountReq

		if err := c.Bind(&req); err != nil {
			return err
		}

		var acc account.Account

		acc.SetID(account.ID(c.Param("id")))

		err := exec(c.Request().Context(), &acc, func(context.Context) error {
			return op(&acc, req.Amount)
		})
		if err != nil {
			return httpError(err)
		}

		return c.JSON(http.StatusOK, accountResp{ID: acc.ID.String(), Balance: acc.Balance})
	}
}

func httpError(err error) error {
	switch {
	case errors.Is(err, aggregate.ErrAggregateNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, eventstore.ErrConcurrency):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, account.ErrInvalidAmount), errors.Is(err, account.ErrInsufficientFunds):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return err
	}
}
