package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/technoly/gormeventstore"
	"github.com/technoly/gormeventstore/example/account"
)

func main() {
	estore, err := eventstore.New(
		eventstore.WithSQLiteDB("exampledb"),
	)
	checkErr(err)

	defer estore.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	p := eventstore.NewProjector(
		estore,
		eventstore.WithProjectorSelector(
			eventstore.ForCategory(account.Category),
			eventstore.FilterByTypes("NewAccountOpened", "DepositMade"),
		),
		eventstore.WithProjectorPollInterval(time.Second),
	)

	enc := eventstore.NewJSONEncoder(account.Events...)

	p.Add(
		NewConsoleOutputProjection(enc),
		eventstore.FlushAfter(
			ctx,
			NewConsoleOutputProjection(enc),
			func() error {
				fmt.Println("flushing...")

				return nil
			},
			5*time.Second,
		),
	)

	checkErr(p.Run(ctx))
}

func checkErr(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

// NewConsoleOutputProjection constructs an example projection that outputs
// new accounts to the console. It might as well be to any kind of
// database, disk, memory etc...
func NewConsoleOutputProjection(enc eventstore.Encoder) eventstore.Projection {
	return func(env eventstore.EventEnvelope) error {
		evt, err := enc.Decode(&eventstore.EncodedEvt{
			Data: env.Event.Data,
			Type: env.Event.Type,
		})
		if err != nil {
			return err
		}

		switch evt := evt.(type) {
		case account.NewAccountOpened:
			fmt.Printf("Account: #%s | Holder: <%s>\n", evt.AccountID, evt.Holder)

		case account.DepositMade:
			fmt.Printf("Deposited the amount of %d EUR\n", evt.Amount)

		default:
			fmt.Println("not interested in this event")
		}

		return nil
	}
}
