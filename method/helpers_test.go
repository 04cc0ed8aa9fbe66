package method

import (
	"context"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vmethod/internal/testutil"
)

// mustCUE compiles src in a fresh context and fails the test on error.
func mustCUE(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err(), "compile %q", src)
	return v
}

// deterministic returns options that make CallID and timestamps reproducible.
func deterministic() []Option {
	return []Option{
		WithClock(testutil.NewFixedClock(testutil.DefaultStart, 0).Now),
		WithIDGenerator(testutil.NewFixedIDs("call-1").Next),
	}
}

func identity(_ context.Context, input any, _ *Call) (any, error) {
	return input, nil
}
