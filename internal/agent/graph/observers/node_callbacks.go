package observers

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"

	"github.com/skyrag-assistant/server/internal/metrics"
	logx "github.com/skyrag-assistant/server/pkg/logger"
)

type nodeStartKey struct{}

// NewNodeTracer logs start, end and failure of every graph node with its
// duration, and observes the duration histogram when m is non-nil.
func NewNodeTracer(m *metrics.Metrics) einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			if !isNode(info) {
				return ctx
			}
			logx.Debug().Str("node", info.Name).Msg("Node started")
			return context.WithValue(ctx, nodeStartKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackOutput) context.Context {
			if !isNode(info) {
				return ctx
			}
			d := observe(ctx, m, info.Name)
			logx.Debug().Str("node", info.Name).Dur("duration", d).Msg("Node finished")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			if !isNode(info) {
				return ctx
			}
			d := observe(ctx, m, info.Name)
			logx.Error().Err(err).Str("node", info.Name).Dur("duration", d).Msg("Node failed")
			return ctx
		}).
		Build()
}

func isNode(info *einocb.RunInfo) bool {
	return info != nil && info.Component == compose.ComponentOfLambda
}

func observe(ctx context.Context, m *metrics.Metrics, node string) time.Duration {
	start, ok := ctx.Value(nodeStartKey{}).(time.Time)
	if !ok {
		return 0
	}
	d := time.Since(start)
	if m != nil {
		m.NodeDuration.WithLabelValues(node).Observe(d.Seconds())
	}
	return d
}
