package main

import (
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/technoly/gormeventstore"
	"github.com/technoly/gormeventstore/ambar"
	"github.com/technoly/gormeventstore/ambar/echoambar"
	"github.com/technoly/gormeventstore/example/account"
)

func main() {
	e := echo.New()

	e.Use(middleware.BasicAuth(func(username, password string, c echo.Context) (bool, error) {
		if username == "user" && password == "pass" {
			return true, nil
		}

		return false, nil
	}))

	hf := echoambar.Wrap(
		ambar.New("NewAccountOpened", "DepositMade", "WithdrawalMade"),
	)

	e.POST("/projections/accounts/v1", hf(NewConsoleOutputProjection()))

	log.Fatal(e.Start(":8181"))
}

// NewConsoleOutputProjection constructs an example projection that outputs
// new accounts to the console. It might as well be to any kind of
// database, disk, memory etc...
func NewConsoleOutputProjection() eventstore.Projection {
	enc := eventstore.NewJSONEncoder(account.Events...)

	return func(env eventstore.EventEnvelope) error {
		evt, err := enc.Decode(&eventstore.EncodedEvt{
			Data: env.Event.Data,
			Type: env.Event.Type,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ambar.ErrNoRetry, err)
		}

		switch evt := evt.(type) {
		case account.NewAccountOpened:
			fmt.Printf("Account: #%s | Holder: <%s>\n", evt.AccountID, evt.Holder)

		case account.DepositMade:
			fmt.Printf("Deposited the amount of %d EUR\n", evt.Amount)

		case account.WithdrawalMade:
			fmt.Printf("Withdrew the amount of %d EUR\n", evt.Amount)
		}

		return nil
	}
}
