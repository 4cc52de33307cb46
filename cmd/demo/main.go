// Command demo wires the full application core together and runs the order
// choreography end to end: initialize stock, place an order (twice, with the
// same idempotency key), ship it, and print the resulting read model views.
//
// The storage engine is selected via environment variables:
//
//	EVENTFLOW_ENGINE            memory | postgres | sqlite   (default memory)
//	EVENTFLOW_DSN               database DSN for postgres/sqlite
//	EVENTFLOW_PG_DRIVER         pgx | sqlx | sql             (default pgx)
//	EVENTFLOW_EVENTS_TABLE      events table name            (default events)
//	EVENTFLOW_IDEMPOTENCY_TTL   result cache TTL             (default 24h)
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver for database/sql and sqlx
	_ "modernc.org/sqlite" // sqlite driver for database/sql

	"github.com/flowline/eventflow-go/choreography"
	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/eventlog"
	"github.com/flowline/eventflow-go/eventlog/memoryengine"
	"github.com/flowline/eventflow-go/eventlog/oteladapters"
	"github.com/flowline/eventflow-go/eventlog/sqlengine"
	"github.com/flowline/eventflow-go/idempotency"
	"github.com/flowline/eventflow-go/inventory"
	"github.com/flowline/eventflow-go/orders"
	"github.com/flowline/eventflow-go/publish"
	"github.com/flowline/eventflow-go/session"
)

type demoConfig struct {
	Engine         string        `env:"EVENTFLOW_ENGINE" envDefault:"memory"`
	DSN            string        `env:"EVENTFLOW_DSN" envDefault:""`
	PGDriver       string        `env:"EVENTFLOW_PG_DRIVER" envDefault:"pgx"`
	EventsTable    string        `env:"EVENTFLOW_EVENTS_TABLE" envDefault:"events"`
	IdempotencyTTL time.Duration `env:"EVENTFLOW_IDEMPOTENCY_TTL" envDefault:"24h"`
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS %s (
    sequence_number INTEGER PRIMARY KEY AUTOINCREMENT,
    stream_id       TEXT NOT NULL,
    version         INTEGER NOT NULL,
    event_type      TEXT NOT NULL,
    occurred_at     TEXT NOT NULL,
    payload         TEXT NOT NULL,
    metadata        TEXT NOT NULL,
    UNIQUE (stream_id, version)
);`

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "demo failed:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, cfgErr := env.ParseAs[demoConfig]()
	if cfgErr != nil {
		return cfgErr
	}

	logger := oteladapters.NewSlogBridgeLoggerWithHandler(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	log, logErr := buildEventLog(ctx, cfg, logger)
	if logErr != nil {
		return logErr
	}

	registry := domain.NewRegistry()
	if err := orders.RegisterEvents(registry); err != nil {
		return err
	}
	if err := inventory.RegisterEvents(registry); err != nil {
		return err
	}

	sess, sessErr := session.New(log, registry, session.WithContextualLogger(logger))
	if sessErr != nil {
		return sessErr
	}

	guard, guardErr := idempotency.NewGuard(
		idempotency.WithTTL(cfg.IdempotencyTTL),
		idempotency.WithContextualLogger(logger))
	if guardErr != nil {
		return guardErr
	}

	publisher := publish.NewPublisher(publish.WithContextualLogger(logger))

	orderViews := orders.NewReadModel()
	if err := orderViews.Register(publisher); err != nil {
		return err
	}

	stockViews := inventory.NewReadModel()
	if err := stockViews.Register(publisher); err != nil {
		return err
	}

	if err := choreography.RegisterReactions(publisher, sess, logger); err != nil {
		return err
	}

	initializeStock := inventory.NewInitializeStockHandler(sess, guard, publisher)
	placeOrder := orders.NewPlaceOrderHandler(sess, guard, publisher)
	shipOrder := orders.NewShipOrderHandler(sess, guard, publisher)

	if _, err := initializeStock.Handle(ctx, inventory.InitializeStockCommand{
		ProductID:   "p1",
		ProductName: "Widget",
		OnHand:      100,
	}); err != nil {
		return err
	}

	placeKey := uuid.NewString()
	placed, placeErr := placeOrder.Handle(ctx, orders.PlaceOrderCommand{
		ProductID:      "p1",
		Quantity:       25,
		IdempotencyKey: placeKey,
	})
	if placeErr != nil {
		return placeErr
	}

	// The duplicate submission replays the first response; no second order, no
	// second reservation.
	replayed, replayErr := placeOrder.Handle(ctx, orders.PlaceOrderCommand{
		ProductID:      "p1",
		Quantity:       99,
		IdempotencyKey: placeKey,
	})
	if replayErr != nil {
		return replayErr
	}

	fmt.Printf("placed order %s (duplicate submission returned %s)\n", placed.OrderID, replayed.OrderID)
	printViews(orderViews, stockViews)

	if _, err := shipOrder.Handle(ctx, orders.ShipOrderCommand{OrderID: placed.OrderID}); err != nil {
		return err
	}

	fmt.Println("shipped order", placed.OrderID)
	printViews(orderViews, stockViews)

	return nil
}

func buildEventLog(ctx context.Context, cfg demoConfig, logger eventlog.Logger) (eventlog.Log, error) {
	switch cfg.Engine {
	case "memory":
		return memoryengine.NewEventLog(memoryengine.WithLogger(logger)), nil

	case "postgres":
		return buildPostgresEventLog(ctx, cfg, logger)

	case "sqlite":
		db, openErr := sql.Open("sqlite", cfg.DSN)
		if openErr != nil {
			return nil, openErr
		}

		if _, ddlErr := db.ExecContext(ctx, fmt.Sprintf(sqliteSchema, cfg.EventsTable)); ddlErr != nil {
			return nil, ddlErr
		}

		return sqlengine.NewEventLogFromSQLDB(db,
			sqlengine.WithDialect(sqlengine.DialectSQLite),
			sqlengine.WithTableName(cfg.EventsTable),
			sqlengine.WithLogger(logger))

	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

func buildPostgresEventLog(ctx context.Context, cfg demoConfig, logger eventlog.Logger) (eventlog.Log, error) {
	switch cfg.PGDriver {
	case "pgx":
		pool, poolErr := pgxpool.New(ctx, cfg.DSN)
		if poolErr != nil {
			return nil, poolErr
		}

		return sqlengine.NewEventLogFromPGXPool(pool,
			sqlengine.WithTableName(cfg.EventsTable),
			sqlengine.WithLogger(logger))

	case "sqlx":
		db, connErr := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
		if connErr != nil {
			return nil, connErr
		}

		return sqlengine.NewEventLogFromSQLX(db,
			sqlengine.WithTableName(cfg.EventsTable),
			sqlengine.WithLogger(logger))

	case "sql":
		db, openErr := sql.Open("postgres", cfg.DSN)
		if openErr != nil {
			return nil, openErr
		}

		return sqlengine.NewEventLogFromSQLDB(db,
			sqlengine.WithTableName(cfg.EventsTable),
			sqlengine.WithLogger(logger))

	default:
		return nil, fmt.Errorf("unknown postgres driver %q", cfg.PGDriver)
	}
}

func printViews(orderViews *orders.ReadModel, stockViews *inventory.ReadModel) {
	for _, view := range orderViews.List() {
		fmt.Printf("order %s: product=%s quantity=%d status=%s\n",
			view.OrderID, view.ProductID, view.Quantity, view.Status)
	}

	for _, view := range stockViews.List() {
		fmt.Printf("stock %s (%s): on-hand=%d reserved=%d available=%d\n",
			view.ProductID, view.ProductName, view.OnHand, view.Reserved, view.Available)
	}
}
