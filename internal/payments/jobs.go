package payments

import (
	"context"
	"sync"
	"time"

	"venuely/pkg/logger"
)

// Reconciler periodically re-checks payments stuck in INITIATED or PENDING
// with their gateway.
type Reconciler struct {
	service  Service
	interval time.Duration
	log      *logger.Logger

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewReconciler(service Service, interval time.Duration, log *logger.Logger) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reconciler{
		service:  service,
		interval: interval,
		log:      log.WithComponent("payment-reconciler"),
		done:     make(chan struct{}),
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	r.log.Info("Starting payment reconciler", "interval", r.interval.String())

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.RunOnce(ctx)
			case <-r.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RunOnce reconciles one batch and logs the result.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	settled, err := r.service.ReconcileStale(ctx)
	if err != nil {
		r.log.ErrorWithContext(ctx, "Error reconciling stale payments", err, nil)
		return 0
	}
	if settled > 0 {
		r.log.InfoContext(ctx, "Reconciled stale payments", "settled", settled)
	}
	return settled
}

// Stop is safe to call more than once.
func (r *Reconciler) Stop() {
	r.once.Do(func() { close(r.done) })
	r.wg.Wait()
	r.log.Info("Payment reconciler stopped")
}
