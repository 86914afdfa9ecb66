package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	mongoadapter "github.com/robertarktes/event-ticketing-payments/internal/adapters/mongo"
	"github.com/robertarktes/event-ticketing-payments/internal/adapters/rabbit"
	"github.com/robertarktes/event-ticketing-payments/internal/client"
	"github.com/robertarktes/event-ticketing-payments/internal/config"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	logger := observability.NewLogger()
	httpClient := &http.Client{Timeout: 10 * time.Second}

	apiFlag := &cli.StringFlag{
		Name:    "api",
		Usage:   "payment API base URL",
		Value:   "http://localhost:3001",
		EnvVars: []string{"API_BASE_URL"},
	}

	app := &cli.App{
		Name:  "bookingctl",
		Usage: "Operate the ticket payment backend",
		Commands: []*cli.Command{
			{
				Name:      "status",
				ArgsUsage: "<order_id>",
				Usage:     "wait for a booking to be confirmed",
				Flags: []cli.Flag{
					apiFlag,
					&cli.StringFlag{Name: "hint", Usage: `client-side outcome hint, e.g. "failed"`},
					&cli.IntFlag{Name: "attempts", Value: client.DefaultAttempts},
					&cli.DurationFlag{Name: "delay", Value: client.DefaultDelay},
				},
				Action: func(c *cli.Context) error {
					orderID := c.Args().First()
					if orderID == "" {
						return cli.Exit("order id is required", 2)
					}
					api := client.New(c.String("api"), logger, client.WithHTTPClient(httpClient), client.WithPolling(c.Int("attempts"), c.Duration("delay")))
					report, err := api.WaitForBooking(c.Context, orderID, c.String("hint"))
					if err != nil {
						return err
					}
					return printJSON(report)
				},
			},
			{
				Name:  "create-order",
				Usage: "open a gateway order, e.g. for a test checkout",
				Flags: []cli.Flag{
					apiFlag,
					&cli.Float64Flag{Name: "amount", Required: true, Usage: "amount in major units"},
					&cli.StringFlag{Name: "currency"},
					&cli.StringFlag{Name: "notes", Value: `{"type":"donation"}`, Usage: "notes as a JSON object"},
				},
				Action: func(c *cli.Context) error {
					var notes domain.Notes
					if err := json.Unmarshal([]byte(c.String("notes")), &notes); err != nil {
						return errors.Wrap(err, "parse --notes")
					}
					creds, err := client.New(c.String("api"), logger, client.WithHTTPClient(httpClient)).CreateOrder(c.Context, c.Float64("amount"), c.String("currency"), notes)
					if err != nil {
						return err
					}
					return printJSON(creds)
				},
			},
			{
				Name:  "events",
				Usage: "manage the event catalog",
				Subcommands: []*cli.Command{
					{
						Name:      "import",
						ArgsUsage: "<events.json>",
						Usage:     "upsert events from a JSON array",
						Action: func(c *cli.Context) error {
							return importEvents(c, logger)
						},
					},
				},
			},
			{
				Name:      "audit",
				ArgsUsage: "<order_id>",
				Usage:     "print the webhook audit trail recorded for an order",
				Action: func(c *cli.Context) error {
					return printAudit(c, logger)
				},
			},
			{
				Name:  "notifications",
				Usage: "inspect undelivered confirmation emails",
				Subcommands: []*cli.Command{
					{
						Name:  "redrive",
						Usage: "move dead-lettered notifications back onto the queue",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "queue", Value: "notify.booking-confirmed.q"},
							&cli.IntFlag{Name: "limit", Value: 100},
						},
						Action: redriveNotifications,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func connectMongo(c *cli.Context) (*mongo.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.MongoURI == "" {
		return nil, nil, cli.Exit("MONGO_URI is required", 2)
	}
	mc, err := mongo.Connect(c.Context, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to mongo")
	}
	return mc, cfg, nil
}

func printAudit(c *cli.Context, logger observability.Logger) error {
	orderID := c.Args().First()
	if orderID == "" {
		return cli.Exit("order id is required", 2)
	}
	mc, cfg, err := connectMongo(c)
	if err != nil {
		return err
	}
	defer mc.Disconnect(c.Context)

	history, err := mongoadapter.NewAuditLogger(mc.Database(cfg.MongoDB), logger).History(c.Context, orderID)
	if err != nil {
		return errors.Wrap(err, "load audit trail")
	}
	return printJSON(history)
}

func importEvents(c *cli.Context, logger observability.Logger) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("events file is required", 2)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read events file")
	}
	var events []domain.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return errors.Wrap(err, "decode events file")
	}

	mc, cfg, err := connectMongo(c)
	if err != nil {
		return err
	}
	defer mc.Disconnect(c.Context)

	catalog := mongoadapter.NewCatalogRepository(mc.Database(cfg.MongoDB), logger)
	for _, ev := range events {
		if strings.TrimSpace(ev.ID) == "" {
			return errors.Newf("event %q has no id", ev.Title)
		}
		if err := catalog.UpsertEvent(c.Context, ev); err != nil {
			return err
		}
	}
	fmt.Printf("imported %d events\n", len(events))
	return nil
}

func redriveNotifications(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.RabbitURL == "" {
		return cli.Exit("RABBIT_URL is required", 2)
	}

	conn, err := amqp.DialConfig(cfg.RabbitURL, amqp.Config{Heartbeat: 10 * time.Second})
	if err != nil {
		return errors.Wrap(err, "connect to rabbitmq")
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, c.String("queue"), domain.EventBookingConfirmed, 1)
	if err != nil {
		return err
	}
	defer consumer.Close()
	pub, err := rabbit.NewPublisher(conn)
	if err != nil {
		return err
	}
	defer pub.Close()

	moved, err := consumer.Redrive(c.Context, pub, domain.EventBookingConfirmed, c.Int("limit"))
	fmt.Printf("redrove %d notifications\n", moved)
	return err
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
