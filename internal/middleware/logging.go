package middleware

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tontine/internal/apperr"
)

type loggingInterceptor struct{}

// LoggingInterceptor logs every RPC with its procedure, account and duration.
// Streams are logged once, when they end.
func LoggingInterceptor() connect.Interceptor {
	return loggingInterceptor{}
}

func (loggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		logCall(ctx, "RPC", req.Spec().Procedure, start, err)
		return resp, err
	}
}

func (loggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (loggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := time.Now()
		err := next(ctx, conn)
		logCall(ctx, "Stream", conn.Spec().Procedure, start, err)
		return err
	}
}

// logCall picks the level from the error class: client mistakes are
// warnings, internal failures are errors.
func logCall(ctx context.Context, kind, procedure string, start time.Time, err error) {
	attrs := []any{
		"procedure", procedure,
		"account_id", GetAccountID(ctx), // empty if pre-auth
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err == nil {
		slog.Info(kind+" ok", attrs...)
		return
	}

	code := apperr.Code(err)
	attrs = append(attrs, "code", code, "error", err)
	if code == connect.CodeInternal || code == connect.CodeUnknown {
		slog.Error(kind+" error", attrs...)
		return
	}
	slog.Warn(kind+" error", attrs...)
}
