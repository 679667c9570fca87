package appcontext

import (
	"context"

	"github.com/sirupsen/logrus"
)

type contextId int

const (
	runIdKeyId contextId = iota
	backendKeyId
	stageKeyId
	requestIdKeyId
)

func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKeyId, requestId)
}

func WithRunId(ctx context.Context, runId string) context.Context {
	return context.WithValue(ctx, runIdKeyId, runId)
}

func WithBackend(ctx context.Context, backend string) context.Context {
	return context.WithValue(ctx, backendKeyId, backend)
}

func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKeyId, stage)
}

func LoggerFromContext(logger logrus.FieldLogger, ctx context.Context) logrus.FieldLogger {
	if ctx == nil {
		return logger
	}

	result := logger

	if ctxRunId, ok := ctx.Value(runIdKeyId).(string); ok && ctxRunId != "" {
		result = result.WithField("run_id", ctxRunId)
	}

	if ctxBackend, ok := ctx.Value(backendKeyId).(string); ok && ctxBackend != "" {
		result = result.WithField("backend", ctxBackend)
	}

	if ctxStage, ok := ctx.Value(stageKeyId).(string); ok && ctxStage != "" {
		result = result.WithField("stage", ctxStage)
	}

	if ctxRequestId, ok := ctx.Value(requestIdKeyId).(string); ok && ctxRequestId != "" {
		result = result.WithField("request_id", ctxRequestId)
	}

	return result
}
