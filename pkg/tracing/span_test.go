package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "trace-1")
	_, child := StartChildSpan(ctx, "rank")
	child.SetAttr("matches", 3)
	child.End()
	root.End()

	require.Len(t, root.Children, 1)
	assert.Equal(t, "trace-1", child.TraceID)
	assert.Same(t, root, SpanFromContext(ctx))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	root.Log(logger)

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "msg=span"))
	assert.Contains(t, out, "span=rank")
	assert.Contains(t, out, "matches=3")
	assert.Contains(t, out, "depth=1")
}

func TestStartChildSpanWithoutParent(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.NotEmpty(t, span.TraceID)
	assert.Nil(t, SpanFromContext(context.Background()))
}
