package registry

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func toolNames(tools []mcp.Tool) []string {
	out := make([]string, len(tools))
	for i, t := range tools {
		out[i] = t.Name
	}
	return out
}

func TestWriteToolFilter_HidesApplyToolsByDefault(t *testing.T) {
	tools := []mcp.Tool{
		{Name: "open_dataset"},
		{Name: "apply_changes"},
		{Name: "apply_instruction"},
		{Name: "search_rows"},
	}

	f := NewWriteToolFilter(false)
	got := toolNames(f.FilterTools(context.Background(), tools))
	require.Equal(t, []string{"open_dataset", "search_rows"}, got)

	f = NewWriteToolFilter(true)
	got = toolNames(f.FilterTools(context.Background(), tools))
	require.Len(t, got, 4)
}

func TestWriteToolFilterFromEnv(t *testing.T) {
	t.Setenv("DATALOOM_ENABLE_WRITES", "true")
	f := NewWriteToolFilterFromEnv()
	tools := []mcp.Tool{{Name: "apply_changes"}}
	require.Len(t, f.FilterTools(context.Background(), tools), 1)

	t.Setenv("DATALOOM_ENABLE_WRITES", "")
	f = NewWriteToolFilterFromEnv()
	require.Empty(t, f.FilterTools(context.Background(), tools))
}
