package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance for the given level name
func New(levelName string) *Logger {
	level := getLogLevel(levelName)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Text for development, JSON for everything shipped to a collector
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Nop discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithUserID adds user ID to logger context
func (l *Logger) WithUserID(userID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("user_id", userID))}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// WithComponent tags every record with the emitting component
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("component", name))}
}

func traceAttrs(ctx context.Context) []any {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []any{slog.String("trace_id", sc.TraceID().String())}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	ctx := c.Request.Context()
	args := []any{
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.String("user_agent", c.Request.UserAgent()),
		slog.Int("size", c.Writer.Size()),
	}
	args = append(args, traceAttrs(ctx)...)
	l.Logger.InfoContext(ctx, "HTTP Request", args...)
}

// Booking logging methods

func (l *Logger) LogBookingCreated(ctx context.Context, bookingID, venueID, userID string, total float64) {
	l.Logger.InfoContext(ctx,
		"Booking Created",
		slog.String("booking_id", bookingID),
		slog.String("venue_id", venueID),
		slog.String("user_id", userID),
		slog.Float64("total_amount", total),
	)
}

func (l *Logger) LogBookingStatusChanged(ctx context.Context, bookingID, from, to, actorID string) {
	l.Logger.InfoContext(ctx,
		"Booking Status Changed",
		slog.String("booking_id", bookingID),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("actor_id", actorID),
	)
}

func (l *Logger) LogBookingCancelled(ctx context.Context, bookingID, actorID string, refundAmount, refundPercentage float64) {
	l.Logger.InfoContext(ctx,
		"Booking Cancelled",
		slog.String("booking_id", bookingID),
		slog.String("actor_id", actorID),
		slog.Float64("refund_amount", refundAmount),
		slog.Float64("refund_percentage", refundPercentage),
	)
}

func (l *Logger) LogBookingRescheduled(ctx context.Context, bookingID, oldSlot, newSlot string) {
	l.Logger.InfoContext(ctx,
		"Booking Rescheduled",
		slog.String("booking_id", bookingID),
		slog.String("old_slot", oldSlot),
		slog.String("new_slot", newSlot),
	)
}

// Payment logging methods

func (l *Logger) LogPaymentInitiated(ctx context.Context, paymentID, referenceID, gateway string, amount float64) {
	l.Logger.InfoContext(ctx,
		"Payment Initiated",
		slog.String("payment_id", paymentID),
		slog.String("reference_id", referenceID),
		slog.String("gateway", gateway),
		slog.Float64("amount", amount),
	)
}

func (l *Logger) LogPaymentVerified(ctx context.Context, paymentID, referenceID, outcome string) {
	l.Logger.InfoContext(ctx,
		"Payment Verified",
		slog.String("payment_id", paymentID),
		slog.String("reference_id", referenceID),
		slog.String("outcome", outcome),
	)
}

func (l *Logger) LogGatewayFailure(ctx context.Context, gateway, operation, referenceID string, err error) {
	l.Logger.WarnContext(ctx,
		"Gateway Call Failed",
		slog.String("gateway", gateway),
		slog.String("operation", operation),
		slog.String("reference_id", referenceID),
		slog.String("error", err.Error()),
	)
}

// Security logging methods

// LogAuthSuccess logs successful authentication
func (l *Logger) LogAuthSuccess(ctx context.Context, userID, method string) {
	l.Logger.InfoContext(ctx,
		"Authentication Success",
		slog.String("user_id", userID),
		slog.String("method", method),
	)
}

// LogAuthFailure logs failed authentication
func (l *Logger) LogAuthFailure(ctx context.Context, reason, ip string) {
	l.Logger.WarnContext(ctx,
		"Authentication Failure",
		slog.String("reason", reason),
		slog.String("ip", ip),
	)
}

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2+2)
	args = append(args, slog.String("error", err.Error()))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.ErrorContext(ctx, msg, args...)
}

var defaultLogger = New(os.Getenv("LOG_LEVEL"))

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance and routes slog's package-level logger to it
func SetDefault(logger *Logger) {
	defaultLogger = logger
	slog.SetDefault(logger.Logger)
}
