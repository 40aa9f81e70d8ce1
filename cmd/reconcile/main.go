// Command reconcile re-checks stale INITIATED/PENDING payments with their
// gateway once and exits. Useful from cron when the server's background
// reconciler is disabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"venuely/internal/bookings"
	"venuely/internal/notifications"
	"venuely/internal/payments"
	"venuely/internal/payments/gateway"
	"venuely/internal/shared/config"
	"venuely/internal/shared/database"
	"venuely/pkg/logger"
	"venuely/pkg/mq"

	"github.com/joho/godotenv"
)

func main() {
	reference := flag.String("ref", "", "reconcile a single payment reference instead of the stale batch")
	after := flag.Duration("after", 0, "override PAYMENT_RECONCILE_AFTER")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	if *after > 0 {
		cfg.Payments.ReconcileAfter = *after
	}
	appLogger := logger.New(cfg.LogLevel)

	db, err := database.InitDB(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	var events mq.EventPublisher = mq.Nop()
	if cfg.RabbitMQ.URL != "" {
		if publisher, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange); err == nil {
			events = publisher
		} else {
			appLogger.Warn("RabbitMQ unavailable, payment events disabled", "error", err)
		}
	}
	defer events.Close()

	pg := db.GetPostgreSQL()
	svc := payments.NewService(
		payments.NewRepository(pg),
		bookings.NewRepository(pg),
		gateway.NewDefaultRegistry(cfg.Payments),
		events,
		notifications.Nop(),
		cfg.Payments,
		appLogger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *reference != "" {
		res, err := svc.Reconcile(ctx, *reference)
		if err != nil {
			log.Fatalf("Reconcile %s: %v", *reference, err)
		}
		fmt.Printf("%s: %s (%s)\n", res.ReferenceID, res.Status, res.Message)
		return
	}

	settled := payments.NewReconciler(svc, time.Minute, appLogger).RunOnce(ctx)
	fmt.Printf("Settled %d stale payments\n", settled)
}
