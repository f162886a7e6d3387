// Package interceptors holds the gRPC server interceptors: per-RPC logging and panic recovery.
package interceptors

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// LoggingUnary logs each unary RPC with its method, status code and duration.
// skipMethods are full method names that are not logged (e.g. health checks polled by probes).
func LoggingUnary(logger *slog.Logger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if !skipMethods[info.FullMethod] {
			logRPC(ctx, logger, info.FullMethod, err, time.Since(start))
		}
		return resp, err
	}
}

// LoggingStream logs each streaming RPC once it ends.
func LoggingStream(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logRPC(ss.Context(), logger, info.FullMethod, err, time.Since(start))
		return err
	}
}

// RecoveryUnary turns a handler panic into codes.Internal.
func RecoveryUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(ctx, "grpc panic recovered", "method", info.FullMethod, "panic", rec)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func logRPC(ctx context.Context, logger *slog.Logger, method string, err error, elapsed time.Duration) {
	code := status.Code(err)
	fields := []any{
		"method", method,
		"status_code", code.String(),
		"duration_ms", elapsed.Milliseconds(),
		"client_ip", ClientIP(ctx),
	}
	switch code {
	case codes.OK:
		logger.InfoContext(ctx, "grpc request", fields...)
	case codes.Internal, codes.Unknown, codes.DataLoss:
		logger.ErrorContext(ctx, "grpc request", append(fields, "error", err.Error())...)
	default:
		logger.WarnContext(ctx, "grpc request", append(fields, "error", err.Error())...)
	}
}

// ClientIP returns the peer's IP without the port, or "" when there is no peer.
func ClientIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}
