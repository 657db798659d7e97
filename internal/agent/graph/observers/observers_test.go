package observers

import (
	"context"
	"errors"
	"testing"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/compose"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/skyrag-assistant/server/internal/metrics"
)

func TestNodeTracer_ObservesLambdaNodes(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := NewNodeTracer(m)

	info := &einocb.RunInfo{Name: "classify_intent", Component: compose.ComponentOfLambda}
	ctx := h.OnStart(context.Background(), info, nil)
	h.OnEnd(ctx, info, nil)

	failed := &einocb.RunInfo{Name: "generate_response", Component: compose.ComponentOfLambda}
	ctx = h.OnStart(context.Background(), failed, nil)
	h.OnError(ctx, failed, errors.New("boom"))

	require.Equal(t, 2, testutil.CollectAndCount(m.NodeDuration))
}

func TestNodeTracer_IgnoresOtherComponents(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := NewNodeTracer(m)

	info := &einocb.RunInfo{Name: "ResponseModel", Component: components.ComponentOfChatModel}
	ctx := h.OnStart(context.Background(), info, nil)
	h.OnEnd(ctx, info, nil)

	require.Equal(t, 0, testutil.CollectAndCount(m.NodeDuration))
}

func TestNodeTracer_NilMetrics(t *testing.T) {
	h := NewNodeTracer(nil)
	info := &einocb.RunInfo{Name: "fetch_weather", Component: compose.ComponentOfLambda}
	require.NotPanics(t, func() {
		h.OnEnd(h.OnStart(context.Background(), info, nil), info, nil)
	})
}

func TestNewAllCallbacks(t *testing.T) {
	require.Len(t, NewAllCallbacks(nil), 2)
}
