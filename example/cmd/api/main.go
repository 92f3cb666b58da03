package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/technoly/gormeventstore"
	"github.com/technoly/gormeventstore/example"
)

func main() {
	estore, err := eventstore.New(
		eventstore.WithSQLiteDB("file:exampledb?_txlock=immediate&_busy_timeout=5000"),
		eventstore.WithLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil))),
	)
	checkErr(err)

	defer estore.Close()

	checkErr(estore.Setup(context.Background()))

	store := example.NewAccountStore(estore)

	e := echo.New()

	e.POST("/accounts", example.NewOpenAccountHandler(store))
	e.POST("/accounts/:id/deposits", example.NewDepositHandler(store))
	e.POST("/accounts/:id/withdrawals", example.NewWithdrawHandler(store))

	e.GET("/status", func(c echo.Context) error {
		status := estore.Status(c.Request().Context())
		if status.Type != eventstore.StatusOK {
			return c.String(503, status.Details)
		}

		return c.NoContent(204)
	})

	log.Fatal(e.Start(":8080"))
}

func checkErr(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
