package method

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vmethod/internal/testutil"
	"github.com/roach88/vmethod/schema"
)

func TestDefine_RequiresHandler(t *testing.T) {
	_, err := Define(Definition{Name: "NoHandler"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler is required")
}

func TestDefine_UnsupportedDeclaration(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		want string
	}{
		{"input", Definition{Input: 42}, "input"},
		{"output", Definition{Output: "string"}, "output"},
		{"event", Definition{Events: map[string]any{"Ping": struct{}{}}}, `event "Ping"`},
		{"error", Definition{Errors: map[string]any{"Oops": []int{}}}, `error "Oops"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.def.Name = "Bad"
			tt.def.Handler = identity
			_, err := Define(tt.def)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var re *schema.ResolveError
			assert.True(t, errors.As(err, &re))
		})
	}
}

func TestMustDefine_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustDefine(Definition{})
	})
}

func TestMethod_Names(t *testing.T) {
	m := MustDefine(Definition{
		Name:    "Greet",
		Events:  map[string]any{"Waved": nil, "Greeted": nil},
		Errors:  map[string]any{"Rejected": nil},
		Handler: identity,
	})

	assert.Equal(t, "Greet", m.Name())
	assert.Equal(t, []string{"Greeted", "Waved"}, m.EventNames())
	assert.Equal(t, []string{"Rejected"}, m.ErrorNames())
}

func TestCall_PassThroughWithoutSchemas(t *testing.T) {
	m := MustDefine(Definition{Handler: identity})

	for _, in := range []any{nil, 1, "x", []any{1, "a"}, map[string]any{"k": true}} {
		res, err := m.Call(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, in, res.Input)
		assert.Equal(t, in, res.Result)
		assert.Equal(t, in, res.Output)
		assert.Empty(t, res.EventsEmitted)
		assert.Empty(t, res.ErrorsThrown)
	}
}

func TestCall_StringInputScenario(t *testing.T) {
	m := MustDefine(Definition{
		Name:    "Echo",
		Input:   mustCUE(t, "string"),
		Handler: identity,
	})

	res, err := m.Call(context.Background(), 1)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsInvalidInput(err))

	var me *Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, 1, me.Payload, "payload is the input as given")
	assert.Equal(t, "Echo", me.Method)

	var ve *schema.ValidationError
	require.True(t, errors.As(err, &ve), "schema engine failure is the cause")
	assert.Equal(t, schema.EngineCUE, ve.Engine)

	res, err = m.Call(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Result)
	assert.Equal(t, "ok", res.Output)
}

func TestCall_InvalidInputSkipsHandler(t *testing.T) {
	called := false
	m := MustDefine(Definition{
		Input: mustCUE(t, "int"),
		Handler: func(_ context.Context, input any, _ *Call) (any, error) {
			called = true
			return input, nil
		},
	})

	_, err := m.Call(context.Background(), "not an int")
	require.Error(t, err)
	assert.False(t, called)
}

func TestCall_InputCoercion(t *testing.T) {
	m := MustDefine(Definition{
		Input:   mustCUE(t, `{name: string, greeting: string | *"hello"}`),
		Handler: identity,
	})

	res, err := m.Call(context.Background(), map[string]any{"name": "ada"})
	require.NoError(t, err)

	want := map[string]any{"name": "ada", "greeting": "hello"}
	assert.Equal(t, want, res.Input)
	assert.Equal(t, want, res.Result, "handler sees the validated input")
}

func TestCall_InvalidOutput(t *testing.T) {
	m := MustDefine(Definition{
		Output: mustCUE(t, "string"),
		Handler: func(context.Context, any, *Call) (any, error) {
			return 42, nil
		},
	})

	res, err := m.Call(context.Background(), "fine")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsInvalidOutput(err))

	var me *Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, 42, me.Payload, "payload is the unvalidated result")
	assert.Contains(t, err.Error(), "invalid output")
}

func TestCall_OutputCoercion(t *testing.T) {
	m := MustDefine(Definition{
		Output: mustCUE(t, `{status: string | *"ok"}`),
		Handler: func(context.Context, any, *Call) (any, error) {
			return map[string]any{}, nil
		},
	})

	res, err := m.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, res.Result)
	assert.Equal(t, map[string]any{"status": "ok"}, res.Output)
}

func TestCall_PingScenario(t *testing.T) {
	m := MustDefine(Definition{
		Name:   "Ping",
		Events: map[string]any{"Ping": mustCUE(t, "{n: number}")},
		Handler: func(ctx context.Context, _ any, call *Call) (any, error) {
			if err := call.Emit(ctx, "Ping", map[string]any{"n": 1}); err != nil {
				return nil, err
			}
			return nil, nil
		},
	}, deterministic()...)

	res, err := m.Call(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.EventsEmitted, 1)

	ev := res.EventsEmitted[0]
	assert.Equal(t, "Ping", ev.Name)
	assert.Equal(t, map[string]any{"n": 1}, ev.Payload)
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, testutil.DefaultStart, ev.Timestamp)
	assert.Nil(t, res.Result)
	assert.Nil(t, res.Output)
	assert.Equal(t, "call-1", res.CallID)
}

func TestCall_EmitUndeclaredFailsCall(t *testing.T) {
	m := MustDefine(Definition{
		Name: "Loud",
		Handler: func(ctx context.Context, _ any, call *Call) (any, error) {
			if err := call.Emit(ctx, "Unknown", "payload"); err != nil {
				return nil, err
			}
			return "unreachable", nil
		},
	})

	res, err := m.Call(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsInvalidEvent(err))
	assert.ErrorIs(t, err, ErrEventNotFound)

	var me *Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "Unknown", me.Name)
	assert.Equal(t, "payload", me.Payload)
	assert.Equal(t, `Loud: invalid event "Unknown": event not found: "Unknown"`, err.Error())
}

func TestCall_EmitNonConformingPayload(t *testing.T) {
	m := MustDefine(Definition{
		Events: map[string]any{"Ping": mustCUE(t, "{n: number}")},
		Handler: func(ctx context.Context, _ any, call *Call) (any, error) {
			return nil, call.Emit(ctx, "Ping", map[string]any{"n": "one"})
		},
	})

	_, err := m.Call(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, IsInvalidEvent(err))

	var ve *schema.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "n", ve.Path)
}

func TestCall_EmitFailureHandledByHandler(t *testing.T) {
	m := MustDefine(Definition{
		Events: map[string]any{"Ping": nil},
		Handler: func(ctx context.Context, _ any, call *Call) (any, error) {
			emitErr := call.Emit(ctx, "Pong", nil)
			if !IsInvalidEvent(emitErr) {
				return nil, fmt.Errorf("expected invalid event, got %v", emitErr)
			}
			return "recovered", call.Emit(ctx, "Ping", nil)
		},
	})

	res, err := m.Call(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.EventsEmitted, 1, "rejected emits are not recorded")
	assert.Equal(t, "Ping", res.EventsEmitted[0].Name)
	assert.Equal(t, "recovered", res.Output)
}

func TestCall_RaiseDoesNotAbort(t *testing.T) {
	m := MustDefine(Definition{
		Events: map[string]any{"Done": nil},
		Errors: map[string]any{"Rejected": mustCUE(t, "{reason: string}")},
		Handler: func(ctx context.Context, _ any, call *Call) (any, error) {
			if err := call.Raise(ctx, "Rejected", map[string]any{"reason": "too late"}); err != nil {
				return nil, err
			}
			if err := call.Emit(ctx, "Done", true); err != nil {
				return nil, err
			}
			return "finished", nil
		},
	})

	res, err := m.Call(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, res.ErrorsThrown, 1)
	assert.Equal(t, "Rejected", res.ErrorsThrown[0].Name)
	assert.Equal(t, map[string]any{"reason": "too late"}, res.ErrorsThrown[0].Payload)
	assert.Equal(t, int64(1), res.ErrorsThrown[0].Seq)

	require.Len(t, res.EventsEmitted, 1)
	assert.Equal(t, int64(2), res.EventsEmitted[0].Seq, "seq is shared across events and errors")

	assert.Equal(t, "finished", res.Output)
	assert.True(t, res.HasErrors())
	assert.Len(t, res.Errors("Rejected"), 1)
	assert.Empty(t, res.Errors("Other"))
}

func TestCall_RaiseUndeclaredFailsCall(t *testing.T) {
	m := MustDefine(Definition{
		Handler: func(ctx context.Context, _ any, call *Call) (any, error) {
			return nil, call.Raise(ctx, "Nope", 1)
		},
	})

	_, err := m.Call(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, IsInvalidError(err))
	assert.ErrorIs(t, err, ErrErrorNotFound)

	var me *Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "Nope", me.Name)
	assert.Equal(t, 1, me.Payload)
}

func TestCall_RaiseNonConformingPayload(t *testing.T) {
	m := MustDefine(Definition{
		Errors: map[string]any{"Rejected": mustCUE(t, "{reason: string}")},
		Handler: func(ctx context.Context, _ any, call *Call) (any, error) {
			return nil, call.Raise(ctx, "Rejected", map[string]any{})
		},
	})

	_, err := m.Call(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, IsInvalidError(err))
}

func TestCall_HandlerError(t *testing.T) {
	boom := errors.New("boom")
	m := MustDefine(Definition{
		Name:  "Fail",
		Input: mustCUE(t, `{id: int, tag: string | *"none"}`),
		Handler: func(context.Context, any, *Call) (any, error) {
			return nil, boom
		},
	})

	res, err := m.Call(context.Background(), map[string]any{"id": 7})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsHandlerError(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Fail: boom", err.Error())

	var me *Error
	require.True(t, errors.As(err, &me))
	assert.Same(t, boom, me.Cause)
	assert.Equal(t, map[string]any{"id": 7, "tag": "none"}, me.Payload, "payload is the validated input")
}

func TestCall_HandlerPanic(t *testing.T) {
	m := MustDefine(Definition{
		Handler: func(context.Context, any, *Call) (any, error) {
			panic("kaboom")
		},
	})

	res, err := m.Call(context.Background(), "in")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsHandlerError(err))

	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Contains(t, err.Error(), "handler panicked: kaboom")
}

func TestCall_ClassifiedErrorsPropagateUnchanged(t *testing.T) {
	inner := MustDefine(Definition{
		Name:    "Inner",
		Input:   mustCUE(t, "int"),
		Handler: identity,
	})

	t.Run("direct", func(t *testing.T) {
		var innerErr error
		outer := MustDefine(Definition{
			Name: "Outer",
			Handler: func(ctx context.Context, input any, _ *Call) (any, error) {
				_, innerErr = inner.Call(ctx, input)
				return nil, innerErr
			},
		})

		_, err := outer.Call(context.Background(), "x")
		require.Error(t, err)
		assert.Same(t, innerErr, err)
		assert.True(t, IsInvalidInput(err))

		var me *Error
		require.True(t, errors.As(err, &me))
		assert.Equal(t, "Inner", me.Method)
	})

	t.Run("wrapped", func(t *testing.T) {
		outer := MustDefine(Definition{
			Handler: func(ctx context.Context, input any, _ *Call) (any, error) {
				if _, err := inner.Call(ctx, input); err != nil {
					return nil, fmt.Errorf("delegate: %w", err)
				}
				return nil, nil
			},
		})

		_, err := outer.Call(context.Background(), "x")
		require.Error(t, err)
		assert.True(t, IsInvalidInput(err))
		assert.False(t, IsHandlerError(err))
		assert.Contains(t, err.Error(), "delegate: Inner: invalid input")
	})
}

func TestCall_EmitAfterReturn(t *testing.T) {
	var leaked *Call
	m := MustDefine(Definition{
		Events: map[string]any{"Late": nil},
		Handler: func(_ context.Context, _ any, call *Call) (any, error) {
			leaked = call
			return nil, nil
		},
	})

	res, err := m.Call(context.Background(), nil)
	require.NoError(t, err)

	err = leaked.Emit(context.Background(), "Late", nil)
	require.Error(t, err)
	assert.True(t, IsInvalidEvent(err))
	assert.ErrorIs(t, err, ErrCallFinished)
	assert.Empty(t, res.EventsEmitted)

	assert.ErrorIs(t, leaked.Raise(context.Background(), "Late", nil), ErrErrorNotFound)
}

func TestCall_EntriesKeepHandlerOrder(t *testing.T) {
	m := MustDefine(Definition{
		Events: map[string]any{"A": nil, "B": nil},
		Errors: map[string]any{"E": nil},
		Handler: func(ctx context.Context, _ any, call *Call) (any, error) {
			steps := []struct {
				raise bool
				name  string
			}{{false, "B"}, {true, "E"}, {false, "A"}, {false, "B"}, {true, "E"}}
			for i, s := range steps {
				var err error
				if s.raise {
					err = call.Raise(ctx, s.name, i)
				} else {
					err = call.Emit(ctx, s.name, i)
				}
				if err != nil {
					return nil, err
				}
			}
			return nil, nil
		},
	}, WithClock(testutil.NewFixedClock(time.Time{}, time.Millisecond).Now))

	res, err := m.Call(context.Background(), nil)
	require.NoError(t, err)

	var events []string
	var payloads []any
	for _, e := range res.EventsEmitted {
		events = append(events, e.Name)
		payloads = append(payloads, e.Payload)
	}
	assert.Equal(t, []string{"B", "A", "B"}, events)
	assert.Equal(t, []any{0, 2, 3}, payloads)
	assert.Len(t, res.Events("B"), 2)

	require.Len(t, res.ErrorsThrown, 2)
	assert.Equal(t, int64(2), res.ErrorsThrown[0].Seq)
	assert.Equal(t, int64(5), res.ErrorsThrown[1].Seq)
	assert.True(t, res.ErrorsThrown[0].Timestamp.Before(res.ErrorsThrown[1].Timestamp))
}

func TestCall_Concurrent(t *testing.T) {
	m := MustDefine(Definition{
		Input:  mustCUE(t, "{n: int}"),
		Events: map[string]any{"Seen": mustCUE(t, "{n: int}")},
		Handler: func(ctx context.Context, input any, call *Call) (any, error) {
			n := input.(map[string]any)["n"].(int)
			for i := 0; i < n%5; i++ {
				if err := call.Emit(ctx, "Seen", map[string]any{"n": n}); err != nil {
					return nil, err
				}
			}
			return n, nil
		},
	})

	const calls = 64
	results := make([]*Result, calls)
	errs := make([]error, calls)

	var wg sync.WaitGroup
	wg.Add(calls)
	for i := 0; i < calls; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Call(context.Background(), map[string]any{"n": i})
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool)
	for i := 0; i < calls; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, i, results[i].Output)
		require.Len(t, results[i].EventsEmitted, i%5)
		for _, e := range results[i].EventsEmitted {
			assert.Equal(t, map[string]any{"n": i}, e.Payload)
		}
		ids[results[i].CallID] = true
	}
	assert.Len(t, ids, calls, "call IDs are unique")
}

func TestCall_FuncValidators(t *testing.T) {
	upper := func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		return s + "!", nil
	}
	m := MustDefine(Definition{
		Input:   upper,
		Output:  schema.Func(func(_ context.Context, v any) (any, error) { return []any{v}, nil }),
		Handler: identity,
	})

	res, err := m.Call(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi!", res.Input)
	assert.Equal(t, []any{"hi!"}, res.Output)

	_, err = m.Call(context.Background(), 3)
	assert.True(t, IsInvalidInput(err))
	assert.EqualError(t, err, "invalid input: want string, got int")
}

func TestCall_JSONSchemaValidators(t *testing.T) {
	in, err := schema.CompileJSONSchema([]byte(`{"type":"object","required":["id"],"properties":{"id":{"type":"integer"}}}`))
	require.NoError(t, err)

	m := MustDefine(Definition{Input: in, Handler: identity})

	_, err = m.Call(context.Background(), map[string]any{"id": 3})
	require.NoError(t, err)

	_, err = m.Call(context.Background(), map[string]any{"id": "three"})
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))

	var ve *schema.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, schema.EngineJSONSchema, ve.Engine)
	assert.Equal(t, "/id", ve.Path)
}

func TestCall_DefaultCallIDIsUUIDv7(t *testing.T) {
	m := MustDefine(Definition{Handler: identity})

	res, err := m.Call(context.Background(), nil)
	require.NoError(t, err)

	id, err := uuid.Parse(res.CallID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestCall_CallIDVisibleToHandler(t *testing.T) {
	var seen string
	m := MustDefine(Definition{
		Handler: func(_ context.Context, _ any, call *Call) (any, error) {
			seen = call.CallID()
			return nil, nil
		},
	}, WithIDGenerator(testutil.NewFixedIDs("fixed").Next))

	res, err := m.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "fixed", seen)
	assert.Equal(t, "fixed", res.CallID)
}

func TestCall_CancelledContext(t *testing.T) {
	m := MustDefine(Definition{Input: mustCUE(t, "string"), Handler: identity})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Call(ctx, "ok")
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
	assert.ErrorIs(t, err, context.Canceled)
}
