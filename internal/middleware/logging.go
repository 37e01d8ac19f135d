package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"

	v1 "github.com/mmynk/cardscan/pkg/api/cardscanv1"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// with its owner, duration and outcome. Install it after RequireAuth so the
// owner id is known.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure
			ownerID := GetOwnerID(ctx)

			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", procedure,
				"owner_id", ownerID,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				code := connect.CodeOf(err)
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					attrs = append(attrs, "code", code, "error", connectErr.Message())
				} else {
					attrs = append(attrs, "code", code, "error", err)
				}
				slog.Log(ctx, levelFor(code), "RPC error", attrs...)
				return resp, err
			}

			if resp != nil {
				attrs = append(attrs, outcomeAttrs(resp.Any())...)
			}
			slog.Info("RPC ok", attrs...)
			return resp, err
		}
	}
}

// levelFor picks the log level of a failed call. Quota denials and auth
// failures are routine, caller mistakes are warnings, the rest are errors.
func levelFor(code connect.Code) slog.Level {
	switch code {
	case connect.CodeResourceExhausted, connect.CodeUnauthenticated, connect.CodeCanceled:
		return slog.LevelInfo
	case connect.CodeInvalidArgument, connect.CodeNotFound, connect.CodeDeadlineExceeded:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// outcomeAttrs adds the scan and quota outcome of responses that carry one.
func outcomeAttrs(msg any) []any {
	switch m := msg.(type) {
	case *v1.SaveScanResponse:
		attrs := []any{"used", m.Used, "limit", m.Limit}
		if m.Duplicate {
			attrs = append(attrs, "duplicate", true, "match_rule", m.MatchRule)
		}
		if m.QuotaWarning {
			attrs = append(attrs, "quota_warning", true)
		}
		return attrs
	case *v1.CheckQuotaResponse:
		attrs := []any{"allowed", m.Allowed, "used", m.Used, "limit", m.Limit}
		if m.Reason != "" {
			attrs = append(attrs, "reason", m.Reason)
		}
		return attrs
	}
	return nil
}

// LogRequests logs every HTTP request, including /metrics scrapes.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
