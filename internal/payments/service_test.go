package payments

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"venuely/internal/bookings"
	"venuely/internal/cancellation"
	"venuely/internal/notifications"
	"venuely/internal/payments/gateway"
	"venuely/internal/shared/apperrors"
	"venuely/internal/shared/config"
	"venuely/internal/users"
	"venuely/internal/venues"
	"venuely/pkg/logger"
	"venuely/pkg/mq"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const successURL = "http://localhost:8080/api/v1/payments/success"

type fixture struct {
	svc      *service
	repo     Repository
	bookings bookings.Repository
	venue    *venues.Venue
	owner    uuid.UUID
	user     uuid.UUID
}

func newFixture(t *testing.T, adapters ...gateway.Adapter) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&venues.Venue{}, &bookings.Booking{}, &Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{
		repo:     NewRepository(db),
		bookings: bookings.NewRepository(db),
		owner:    uuid.New(),
		user:     uuid.New(),
	}
	f.venue = &venues.Venue{
		OwnerID:            f.owner,
		Name:               "Hotel Himalaya Hall",
		Address:            "Kupondole",
		City:               "Lalitpur",
		MinCapacity:        20,
		MaxCapacity:        300,
		PricePerHour:       5000,
		OpeningTime:        "08:00",
		ClosingTime:        "22:00",
		CancellationPolicy: cancellation.DefaultPolicy(),
		IsActive:           true,
	}
	if err := venues.NewRepository(db).Create(context.Background(), f.venue); err != nil {
		t.Fatalf("create venue: %v", err)
	}

	cfg := config.PaymentsConfig{
		SuccessURL:         successURL,
		FailureURL:         "http://localhost:8080/api/v1/payments/failure",
		InitiationTimeout:  time.Second,
		PlatformFeePercent: 10,
		MinAdvancePercent:  20,
		ReconcileAfter:     10 * time.Minute,
		ReconcileBatchSize: 10,
	}
	registry := gateway.NewDefaultRegistry(cfg)
	if len(adapters) > 0 {
		registry = gateway.NewRegistry(adapters...)
	}
	f.svc = NewService(f.repo, f.bookings, registry, mq.Nop(), notifications.Nop(), cfg, logger.Nop()).(*service)
	return f
}

// booking stores a pending 10:00-18:00 booking worth total.
func (f *fixture) booking(t *testing.T, total float64) *bookings.Booking {
	t.Helper()
	b := &bookings.Booking{
		BookingRef:    "VNU-20250601-" + uuid.NewString()[:6],
		UserID:        f.user,
		VenueID:       f.venue.ID,
		EventDate:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		StartTime:     "10:00",
		EndTime:       "18:00",
		StartMinute:   600,
		EndMinute:     1080,
		EventType:     "Reception",
		GuestCount:    120,
		ContactName:   "Sita Sharma",
		ContactEmail:  "sita@example.com",
		TotalAmount:   total,
		BalanceAmount: total,
		Status:        bookings.StatusPending,
		PaymentStatus: bookings.PaymentStatusUnpaid,
	}
	if err := f.bookings.Create(context.Background(), b); err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *bookings.Booking {
	t.Helper()
	b, err := f.bookings.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload booking: %v", err)
	}
	return b
}

// pay initiates a payment and follows the mock gateway's redirect.
func (f *fixture) pay(t *testing.T, b *bookings.Booking, gw string, pt PaymentType, amount float64) (*InitiatePaymentResponse, *VerificationResult) {
	t.Helper()
	ctx := context.Background()
	init, err := f.svc.Initiate(ctx, f.user, InitiatePaymentRequest{
		BookingID:   b.ID.String(),
		Amount:      amount,
		Gateway:     gw,
		PaymentType: pt,
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	res, err := f.svc.Verify(ctx, gw, redirectParams(t, init.PaymentURL))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	return init, res
}

func redirectParams(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse redirect %q: %v", raw, err)
	}
	return u.Query()
}

func wantKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("got nil error, want %v", kind)
	}
	if got := apperrors.KindOf(err); got != kind {
		t.Fatalf("got kind %v (%v), want %v", got, err, kind)
	}
}

func TestInitiateValidatesAmount(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, 40000)
	ctx := context.Background()

	cases := []struct {
		name   string
		pt     PaymentType
		amount float64
		kind   apperrors.Kind
	}{
		{"advance below minimum", PaymentTypeAdvance, 5000, apperrors.KindValidation},
		{"advance above total", PaymentTypeAdvance, 45000, apperrors.KindValidation},
		{"full not matching total", PaymentTypeFull, 39000, apperrors.KindValidation},
		{"balance not matching outstanding", PaymentTypeBalance, 10000, apperrors.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Initiate(ctx, f.user, InitiatePaymentRequest{
				BookingID:   b.ID.String(),
				Amount:      tc.amount,
				Gateway:     "esewa",
				PaymentType: tc.pt,
			})
			wantKind(t, err, tc.kind)
		})
	}

	items, err := f.repo.ListByBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListByBooking: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("got %d payments, want none after rejected initiations", len(items))
	}
}

func TestInitiateRejectsForeignOrInactiveBooking(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, 40000)
	ctx := context.Background()
	req := InitiatePaymentRequest{BookingID: b.ID.String(), Amount: 40000, Gateway: "esewa", PaymentType: PaymentTypeFull}

	_, err := f.svc.Initiate(ctx, uuid.New(), req)
	wantKind(t, err, apperrors.KindForbidden)

	_, err = f.svc.Initiate(ctx, f.user, InitiatePaymentRequest{BookingID: uuid.NewString(), Amount: 1, Gateway: "esewa", PaymentType: PaymentTypeFull})
	wantKind(t, err, apperrors.KindNotFound)

	bad := req
	bad.Gateway = "paypal"
	_, err = f.svc.Initiate(ctx, f.user, bad)
	wantKind(t, err, apperrors.KindValidation)

	b.Status = bookings.StatusCancelled
	if err := f.bookings.Save(ctx, b); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, err = f.svc.Initiate(ctx, f.user, req)
	wantKind(t, err, apperrors.KindInvalidState)
}

func TestFullPaymentMarksBookingPaid(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, 40000)

	init, res := f.pay(t, b, "esewa", PaymentTypeFull, 40000)
	if !init.Mock {
		t.Fatalf("expected mock initiation without credentials")
	}
	if res.Status != StatusCompleted || res.AlreadyProcessed {
		t.Fatalf("got status %s already=%v, want COMPLETED and fresh", res.Status, res.AlreadyProcessed)
	}
	if res.BookingPaymentStatus != bookings.PaymentStatusPaid || res.BalanceAmount != 0 || res.AdvancePaid != 40000 {
		t.Fatalf("got %s advance %v balance %v, want PAID 40000 0", res.BookingPaymentStatus, res.AdvancePaid, res.BalanceAmount)
	}

	got := f.reload(t, b.ID)
	if got.PaymentStatus != bookings.PaymentStatusPaid || got.BalanceAmount != 0 {
		t.Fatalf("stored booking %s balance %v, want PAID 0", got.PaymentStatus, got.BalanceAmount)
	}

	p, err := f.repo.GetByReference(context.Background(), init.ReferenceID)
	if err != nil {
		t.Fatalf("GetByReference: %v", err)
	}
	if p.VerifiedAt == nil || p.TransactionID != "MOCK-"+init.ReferenceID {
		t.Fatalf("got verified_at %v transaction %q", p.VerifiedAt, p.TransactionID)
	}
	var raw map[string]any
	if err := json.Unmarshal(p.GatewayResponse, &raw); err != nil || raw["status"] != "COMPLETE" {
		t.Fatalf("gateway response not stored: %s (%v)", p.GatewayResponse, err)
	}

	_, err = f.svc.Initiate(context.Background(), f.user, InitiatePaymentRequest{
		BookingID: b.ID.String(), Amount: 40000, Gateway: "esewa", PaymentType: PaymentTypeFull,
	})
	wantKind(t, err, apperrors.KindInvalidState)
}

func TestVerifyTwiceAppliesOnce(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, 40000)
	ctx := context.Background()

	init, err := f.svc.Initiate(ctx, f.user, InitiatePaymentRequest{
		BookingID: b.ID.String(), Amount: 10000, Gateway: "esewa", PaymentType: PaymentTypeAdvance,
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	params := redirectParams(t, init.PaymentURL)

	first, err := f.svc.Verify(ctx, "esewa", params)
	if err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	second, err := f.svc.Verify(ctx, "esewa", params)
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if first.AlreadyProcessed || !second.AlreadyProcessed {
		t.Fatalf("got already=%v/%v, want false/true", first.AlreadyProcessed, second.AlreadyProcessed)
	}

	got := f.reload(t, b.ID)
	if got.AdvancePaid != 10000 || got.BalanceAmount != 30000 || got.PaymentStatus != bookings.PaymentStatusPartial {
		t.Fatalf("got advance %v balance %v %s, want 10000 30000 PARTIAL", got.AdvancePaid, got.BalanceAmount, got.PaymentStatus)
	}
	if got.Version != 2 {
		t.Fatalf("got version %d, want exactly one booking update", got.Version)
	}
}

func TestKhaltiAdvanceThenBalance(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, 40000)

	init, res := f.pay(t, b, "khalti", PaymentTypeAdvance, 8000)
	if res.BookingPaymentStatus != bookings.PaymentStatusPartial || res.BalanceAmount != 32000 {
		t.Fatalf("got %s balance %v, want PARTIAL 32000", res.BookingPaymentStatus, res.BalanceAmount)
	}
	p, err := f.repo.GetByReference(context.Background(), init.ReferenceID)
	if err != nil {
		t.Fatalf("GetByReference: %v", err)
	}
	if p.TransactionID != "MOCK-"+init.ReferenceID {
		t.Fatalf("got transaction %q, want the pidx kept for correlation", p.TransactionID)
	}

	_, res = f.pay(t, b, "khalti", PaymentTypeBalance, 32000)
	if res.BookingPaymentStatus != bookings.PaymentStatusPaid || res.AdvancePaid != 40000 || res.BalanceAmount != 0 {
		t.Fatalf("got %s advance %v balance %v, want PAID 40000 0", res.BookingPaymentStatus, res.AdvancePaid, res.BalanceAmount)
	}
}

func TestVerifyUnknownPayment(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Verify(context.Background(), "khalti", url.Values{"pidx": {"nope"}, "status": {"Completed"}})
	wantKind(t, err, apperrors.KindNotFound)

	_, err = f.svc.Verify(context.Background(), "esewa", url.Values{"data": {"%%%"}})
	wantKind(t, err, apperrors.KindValidation)
}

// fakeAdapter lets tests script a gateway.
type fakeAdapter struct {
	gw       gateway.Gateway
	initiate func(ctx context.Context) error
	outcome  gateway.Outcome
}

type fakeCallback struct{ ref string }

func (c fakeCallback) Gateway() gateway.Gateway  { return gateway.ESewa }
func (c fakeCallback) ReferenceID() string       { return c.ref }
func (c fakeCallback) ProviderReference() string { return "" }

func (a *fakeAdapter) Gateway() gateway.Gateway { return a.gw }
func (a *fakeAdapter) Mock() bool               { return false }

func (a *fakeAdapter) Initiate(ctx context.Context, req gateway.InitiationRequest) (*gateway.Initiation, error) {
	if a.initiate != nil {
		if err := a.initiate(ctx); err != nil {
			return nil, err
		}
	}
	return &gateway.Initiation{PaymentURL: "https://pay.example.com/" + req.ReferenceID}, nil
}

func (a *fakeAdapter) ParseCallback(params url.Values) (gateway.Callback, error) {
	return fakeCallback{ref: params.Get("ref")}, nil
}

func (a *fakeAdapter) Verify(ctx context.Context, cb gateway.Callback) (gateway.Outcome, error) {
	return a.outcome, nil
}

func (a *fakeAdapter) Lookup(ctx context.Context, req gateway.LookupRequest) (gateway.Outcome, error) {
	return a.outcome, nil
}

func TestInitiateTimeoutLeavesPaymentInitiated(t *testing.T) {
	slow := &fakeAdapter{gw: gateway.ESewa, initiate: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	f := newFixture(t, slow)
	f.svc.cfg.InitiationTimeout = 20 * time.Millisecond
	b := f.booking(t, 40000)

	_, err := f.svc.Initiate(context.Background(), f.user, InitiatePaymentRequest{
		BookingID: b.ID.String(), Amount: 40000, Gateway: "esewa", PaymentType: PaymentTypeFull,
	})
	wantKind(t, err, apperrors.KindUnavailable)
	if !apperrors.IsRetryable(err) {
		t.Fatalf("expected a retryable error, got %v", err)
	}

	items, err := f.repo.ListByBooking(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("ListByBooking: %v", err)
	}
	if len(items) != 1 || items[0].Status != StatusInitiated {
		t.Fatalf("got %+v, want one INITIATED payment", items)
	}
	if got := f.reload(t, b.ID); got.PaymentStatus != bookings.PaymentStatusUnpaid {
		t.Fatalf("got booking %s, want UNPAID", got.PaymentStatus)
	}
}

func TestVerifyOutcomesLeaveBookingUntouched(t *testing.T) {
	cases := []struct {
		name    string
		outcome gateway.Outcome
		want    Status
	}{
		{"failed", gateway.Failed{Reason: "declined", Raw: json.RawMessage(`{"status":"CANCELED"}`)}, StatusFailed},
		{"pending", gateway.Pending{Raw: json.RawMessage(`{"status":"PENDING"}`)}, StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, &fakeAdapter{gw: gateway.ESewa, outcome: tc.outcome})
			b := f.booking(t, 40000)
			init, err := f.svc.Initiate(context.Background(), f.user, InitiatePaymentRequest{
				BookingID: b.ID.String(), Amount: 8000, Gateway: "esewa", PaymentType: PaymentTypeAdvance,
			})
			if err != nil {
				t.Fatalf("Initiate: %v", err)
			}

			res, err := f.svc.Verify(context.Background(), "esewa", url.Values{"ref": {init.ReferenceID}})
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if res.Status != tc.want {
				t.Fatalf("got %s, want %s", res.Status, tc.want)
			}
			got := f.reload(t, b.ID)
			if got.PaymentStatus != bookings.PaymentStatusUnpaid || got.AdvancePaid != 0 {
				t.Fatalf("got booking %s advance %v, want untouched", got.PaymentStatus, got.AdvancePaid)
			}
		})
	}
}

func TestRefundLifecycle(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, 40000)
	ctx := context.Background()
	init, _ := f.pay(t, b, "esewa", PaymentTypeFull, 40000)

	_, err := f.svc.InitiateRefund(ctx, init.PaymentID, uuid.New(), users.RoleUser, "changed plans")
	wantKind(t, err, apperrors.KindForbidden)

	refund, err := f.svc.InitiateRefund(ctx, init.PaymentID, f.user, users.RoleUser, "changed plans")
	if err != nil {
		t.Fatalf("InitiateRefund: %v", err)
	}
	if refund.Amount != -40000 || refund.PaymentType != PaymentTypeRefund || refund.Status != StatusPending {
		t.Fatalf("got refund %v %s %s, want -40000 REFUND PENDING", refund.Amount, refund.PaymentType, refund.Status)
	}
	if refund.OriginalPaymentID == nil || *refund.OriginalPaymentID != init.PaymentID {
		t.Fatalf("refund does not point at the original payment")
	}
	if refund.Gateway != gateway.ESewa || refund.RefundReason != "changed plans" {
		t.Fatalf("got gateway %s reason %q", refund.Gateway, refund.RefundReason)
	}

	_, err = f.svc.InitiateRefund(ctx, init.PaymentID, f.user, users.RoleUser, "again")
	wantKind(t, err, apperrors.KindConflict)

	_, err = f.svc.InitiateRefund(ctx, refund.ID, f.user, users.RoleAdmin, "refund of a refund")
	wantKind(t, err, apperrors.KindInvalidState)

	settled, err := f.svc.SettleRefund(ctx, refund.ID, uuid.New())
	if err != nil {
		t.Fatalf("SettleRefund: %v", err)
	}
	if settled.Status != StatusCompleted {
		t.Fatalf("got refund %s, want COMPLETED", settled.Status)
	}
	original, err := f.repo.GetByID(ctx, init.PaymentID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if original.Status != StatusRefunded {
		t.Fatalf("got original %s, want REFUNDED", original.Status)
	}
	if got := f.reload(t, b.ID); got.PaymentStatus != bookings.PaymentStatusRefunded {
		t.Fatalf("got booking %s, want REFUNDED", got.PaymentStatus)
	}

	_, err = f.svc.SettleRefund(ctx, refund.ID, uuid.New())
	wantKind(t, err, apperrors.KindInvalidState)
	_, err = f.svc.SettleRefund(ctx, init.PaymentID, uuid.New())
	wantKind(t, err, apperrors.KindInvalidState)
}

func TestRefundRequiresCompletedPayment(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, 40000)
	init, err := f.svc.Initiate(context.Background(), f.user, InitiatePaymentRequest{
		BookingID: b.ID.String(), Amount: 40000, Gateway: "khalti", PaymentType: PaymentTypeFull,
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	_, err = f.svc.InitiateRefund(context.Background(), init.PaymentID, f.user, users.RoleUser, "too early")
	wantKind(t, err, apperrors.KindInvalidState)

	_, err = f.svc.InitiateRefund(context.Background(), uuid.New(), f.user, users.RoleUser, "missing")
	wantKind(t, err, apperrors.KindNotFound)
}

func TestOwnerEarnings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, _ := f.pay(t, f.booking(t, 40000), "esewa", PaymentTypeFull, 40000)
	f.pay(t, f.booking(t, 20000), "khalti", PaymentTypeAdvance, 5000)

	// An open payment does not count.
	open := f.booking(t, 10000)
	if _, err := f.svc.Initiate(ctx, f.user, InitiatePaymentRequest{
		BookingID: open.ID.String(), Amount: 10000, Gateway: "esewa", PaymentType: PaymentTypeFull,
	}); err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	e, err := f.svc.OwnerEarnings(ctx, f.owner)
	if err != nil {
		t.Fatalf("OwnerEarnings: %v", err)
	}
	if e.TotalCompleted != 45000 || e.TotalRefunds != 0 || e.PlatformFee != 4500 || e.NetEarnings != 40500 || e.CompletedPayments != 2 {
		t.Fatalf("got %+v", e)
	}

	refund, err := f.svc.InitiateRefund(ctx, first.PaymentID, f.user, users.RoleUser, "venue change")
	if err != nil {
		t.Fatalf("InitiateRefund: %v", err)
	}
	if _, err := f.svc.SettleRefund(ctx, refund.ID, uuid.New()); err != nil {
		t.Fatalf("SettleRefund: %v", err)
	}

	e, err = f.svc.OwnerEarnings(ctx, f.owner)
	if err != nil {
		t.Fatalf("OwnerEarnings: %v", err)
	}
	if e.TotalCompleted != 45000 || e.TotalRefunds != 40000 || e.NetEarnings != 500 {
		t.Fatalf("got %+v after refund", e)
	}

	e, err = f.svc.OwnerEarnings(ctx, uuid.New())
	if err != nil {
		t.Fatalf("OwnerEarnings: %v", err)
	}
	if e.TotalCompleted != 0 || e.NetEarnings != 0 {
		t.Fatalf("got %+v for an owner without venues", e)
	}
}

func TestReconcileStaleSettlesOpenPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.booking(t, 40000)

	init, err := f.svc.Initiate(ctx, f.user, InitiatePaymentRequest{
		BookingID: b.ID.String(), Amount: 40000, Gateway: "esewa", PaymentType: PaymentTypeFull,
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	orphan := &Payment{
		BookingID:   f.booking(t, 10000).ID,
		UserID:      f.user,
		VenueID:     f.venue.ID,
		Amount:      10000,
		Gateway:     gateway.Khalti,
		PaymentType: PaymentTypeFull,
		Status:      StatusInitiated,
		ReferenceID: "TXN_1_ORPHAN00",
	}
	if err := f.repo.Create(ctx, orphan); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if n, err := f.svc.ReconcileStale(ctx); err != nil || n != 0 {
		t.Fatalf("got %d, %v before the cutoff, want 0", n, err)
	}

	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	n := NewReconciler(f.svc, time.Minute, logger.Nop()).RunOnce(ctx)
	if n != 2 {
		t.Fatalf("got %d settled, want 2", n)
	}

	p, err := f.repo.GetByReference(ctx, init.ReferenceID)
	if err != nil {
		t.Fatalf("GetByReference: %v", err)
	}
	if p.Status != StatusCompleted {
		t.Fatalf("got %s, want COMPLETED", p.Status)
	}
	if got := f.reload(t, b.ID); got.PaymentStatus != bookings.PaymentStatusPaid {
		t.Fatalf("got booking %s, want PAID", got.PaymentStatus)
	}

	o, err := f.repo.GetByID(ctx, orphan.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if o.Status != StatusFailed {
		t.Fatalf("got orphan %s, want FAILED", o.Status)
	}
}

func TestPaymentVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.booking(t, 40000)
	init, _ := f.pay(t, b, "esewa", PaymentTypeFull, 40000)

	for _, actor := range []uuid.UUID{f.user, f.owner} {
		if _, err := f.svc.GetPayment(ctx, init.PaymentID, actor, users.RoleUser); err != nil {
			t.Fatalf("GetPayment as party: %v", err)
		}
	}
	_, err := f.svc.GetPayment(ctx, init.PaymentID, uuid.New(), users.RoleUser)
	wantKind(t, err, apperrors.KindForbidden)

	items, err := f.svc.ListForBooking(ctx, b.ID, uuid.New(), users.RoleAdmin)
	if err != nil {
		t.Fatalf("ListForBooking: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d payments, want 1", len(items))
	}
	_, err = f.svc.ListForBooking(ctx, b.ID, uuid.New(), users.RoleOwner)
	wantKind(t, err, apperrors.KindForbidden)
}

func (f *fixture) initiate(t *testing.T, b *bookings.Booking, gw string, pt PaymentType, amount float64) *InitiatePaymentResponse {
	t.Helper()
	init, err := f.svc.Initiate(context.Background(), f.user, InitiatePaymentRequest{
		BookingID: b.ID.String(), Amount: amount, Gateway: gw, PaymentType: pt,
	})
	if err != nil {
		t.Fatalf("Initiate %s %v: %v", pt, amount, err)
	}
	return init
}

func (f *fixture) liveRefund(t *testing.T, paymentID uuid.UUID) *Payment {
	t.Helper()
	r, err := f.repo.FindLiveRefund(context.Background(), paymentID)
	if err != nil {
		t.Fatalf("FindLiveRefund: %v", err)
	}
	return r
}

func TestConcurrentBalancePaymentsCreditOnce(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, 40000)
	ctx := context.Background()
	f.pay(t, b, "esewa", PaymentTypeAdvance, 8000)

	viaESewa := f.initiate(t, b, "esewa", PaymentTypeBalance, 32000)
	viaKhalti := f.initiate(t, b, "khalti", PaymentTypeBalance, 32000)

	first, err := f.svc.Verify(ctx, "esewa", redirectParams(t, viaESewa.PaymentURL))
	if err != nil {
		t.Fatalf("Verify eSewa: %v", err)
	}
	if first.RefundID != nil || first.BookingPaymentStatus != bookings.PaymentStatusPaid {
		t.Fatalf("got %+v, want the first balance credited", first)
	}

	second, err := f.svc.Verify(ctx, "khalti", redirectParams(t, viaKhalti.PaymentURL))
	if err != nil {
		t.Fatalf("Verify Khalti: %v", err)
	}
	if second.Status != StatusCompleted || second.RefundID == nil {
		t.Fatalf("got status %s refund %v, want COMPLETED with a refund raised", second.Status, second.RefundID)
	}

	got := f.reload(t, b.ID)
	if got.AdvancePaid != 40000 || got.BalanceAmount != 0 || got.PaymentStatus != bookings.PaymentStatusPaid {
		t.Fatalf("got advance %v balance %v %s, want 40000 0 PAID", got.AdvancePaid, got.BalanceAmount, got.PaymentStatus)
	}
	if got.TotalAmount-got.AdvancePaid != got.BalanceAmount {
		t.Fatalf("balance %v does not equal total %v minus paid %v", got.BalanceAmount, got.TotalAmount, got.AdvancePaid)
	}

	refund := f.liveRefund(t, viaKhalti.PaymentID)
	if refund.ID != *second.RefundID || refund.Amount != -32000 || refund.Status != StatusPending || refund.PaymentType != PaymentTypeRefund {
		t.Fatalf("got refund %+v, want PENDING -32000", refund)
	}

	again, err := f.svc.Verify(ctx, "khalti", redirectParams(t, viaKhalti.PaymentURL))
	if err != nil || !again.AlreadyProcessed {
		t.Fatalf("got %+v, %v, want already processed", again, err)
	}
	if items, _ := f.repo.ListByBooking(ctx, b.ID); len(items) != 4 {
		t.Fatalf("got %d payment rows, want advance, two balances and one refund", len(items))
	}
}

func TestSecondAdvanceIsRejectedAtInitiation(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, 40000)
	f.pay(t, b, "esewa", PaymentTypeAdvance, 8000)

	for _, pt := range []PaymentType{PaymentTypeAdvance, PaymentTypeFull} {
		amount := 10000.0
		if pt == PaymentTypeFull {
			amount = 40000
		}
		_, err := f.svc.Initiate(context.Background(), f.user, InitiatePaymentRequest{
			BookingID: b.ID.String(), Amount: amount, Gateway: "khalti", PaymentType: pt,
		})
		wantKind(t, err, apperrors.KindInvalidState)
	}
}

func TestPaymentForCancelledBookingIsRefunded(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, 40000)
	ctx := context.Background()
	init := f.initiate(t, b, "esewa", PaymentTypeAdvance, 10000)

	b.Status = bookings.StatusCancelled
	if err := f.bookings.Save(ctx, b); err != nil {
		t.Fatalf("Save: %v", err)
	}

	res, err := f.svc.Verify(ctx, "esewa", redirectParams(t, init.PaymentURL))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Status != StatusCompleted || res.RefundID == nil {
		t.Fatalf("got status %s refund %v, want COMPLETED with a refund raised", res.Status, res.RefundID)
	}

	got := f.reload(t, b.ID)
	if got.Status != bookings.StatusCancelled || got.AdvancePaid != 0 || got.PaymentStatus != bookings.PaymentStatusUnpaid {
		t.Fatalf("got %s advance %v %s, want the cancelled booking untouched", got.Status, got.AdvancePaid, got.PaymentStatus)
	}

	refund := f.liveRefund(t, init.PaymentID)
	if refund.Amount != -10000 || refund.Status != StatusPending {
		t.Fatalf("got refund %v %s, want -10000 PENDING", refund.Amount, refund.Status)
	}
	if _, err := f.svc.SettleRefund(ctx, refund.ID, uuid.New()); err != nil {
		t.Fatalf("SettleRefund: %v", err)
	}

	e, err := f.svc.OwnerEarnings(ctx, f.owner)
	if err != nil {
		t.Fatalf("OwnerEarnings: %v", err)
	}
	if e.TotalCompleted != 10000 || e.TotalRefunds != 10000 {
		t.Fatalf("got %+v, want the refund to offset the collected payment", e)
	}
}
