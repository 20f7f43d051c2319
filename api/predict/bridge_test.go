package predict

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"farmalytica/api/advice"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// fakeProc finishes with res immediately, or hangs until killed.
type fakeProc struct {
	res    Result
	hang   bool
	kills  atomic.Int32
	once   sync.Once
	killed chan struct{}
}

func newFakeProc(res Result, hang bool) *fakeProc {
	return &fakeProc{res: res, hang: hang, killed: make(chan struct{})}
}

func (p *fakeProc) Wait() (Result, error) {
	if p.hang {
		<-p.killed
		return Result{ExitCode: -1, Stdout: []byte(`{"prediction":"late"}`)}, nil
	}
	return p.res, nil
}

func (p *fakeProc) Kill() error {
	p.kills.Add(1)
	p.once.Do(func() { close(p.killed) })
	return nil
}

type fakeRunner struct {
	mu       sync.Mutex
	starts   int
	name     string
	args     []string
	proc     *fakeProc
	startErr error
}

func (r *fakeRunner) Start(_ context.Context, name string, args []string) (Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	r.name = name
	r.args = args
	if r.startErr != nil {
		return nil, r.startErr
	}
	return r.proc, nil
}

func req(n, p, k, ph string) Request {
	raw := func(s string) json.RawMessage {
		if s == "" {
			return nil
		}
		return json.RawMessage(s)
	}
	return Request{N: raw(n), P: raw(p), K: raw(k), PH: raw(ph)}
}

func newTestBridge(r Runner, timeout time.Duration) *Bridge {
	return New(Config{Python: "python3", Script: "scripts/predict_soil.py", Timeout: timeout}, r, zap.NewNop())
}

func TestPredict_MissingFieldNeverStartsProcess(t *testing.T) {
	r := &fakeRunner{proc: newFakeProc(Result{}, false)}
	b := newTestBridge(r, time.Second)

	_, err := b.Predict(context.Background(), req("20", "", "60", "6.5"))

	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "Missing or invalid fields", err.Error())
	assert.Zero(t, r.starts)
}

func TestValidate(t *testing.T) {
	lv, err := Validate(req(`20`, `"10.5"`, `60`, `6.5`))
	require.NoError(t, err)
	assert.Equal(t, advice.Levels{N: 20, P: 10.5, K: 60, PH: 6.5}, lv)

	for _, bad := range []Request{
		req(`null`, `1`, `1`, `1`),
		req(`"abc"`, `1`, `1`, `1`),
		req(`1`, `1`, `""`, `1`),
		req(`1`, `1`, `1`, `"NaN"`),
		req(`1`, `1`, `1`, `true`),
	} {
		_, err := Validate(bad)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestPredict_PassesFourPositionalArgs(t *testing.T) {
	r := &fakeRunner{proc: newFakeProc(Result{Stdout: []byte(`{"prediction":"Optimal"}`)}, false)}
	b := newTestBridge(r, time.Second)

	_, err := b.Predict(context.Background(), req(`20`, `10`, `60`, `6.5`))

	require.NoError(t, err)
	assert.Equal(t, "python3", r.name)
	assert.Equal(t, []string{"-u", "scripts/predict_soil.py", "20", "10", "60", "6.5"}, r.args)
}

func TestPredict_StructuredOutput(t *testing.T) {
	r := &fakeRunner{proc: newFakeProc(Result{Stdout: []byte("{\"prediction\":\"Optimal\"}\n")}, false)}

	out, err := newTestBridge(r, time.Second).Predict(context.Background(), req(`20`, `10`, `60`, `6.5`))

	require.NoError(t, err)
	assert.Equal(t, "Optimal", out.Prediction)
	assert.True(t, out.Structured)
}

func TestPredict_StructuredOutputWinsOverExitCode(t *testing.T) {
	r := &fakeRunner{proc: newFakeProc(Result{
		Stdout:   []byte(`{"prediction":"Poor"}`),
		Stderr:   []byte("UserWarning: sklearn version mismatch"),
		ExitCode: 1,
	}, false)}

	out, err := newTestBridge(r, time.Second).Predict(context.Background(), req(`1`, `1`, `1`, `1`))

	require.NoError(t, err)
	assert.Equal(t, "Poor", out.Prediction)
}

func TestPredict_ExitErrorDetail(t *testing.T) {
	cases := []struct {
		name string
		res  Result
		want string
	}{
		{"stderr", Result{Stderr: []byte("boom"), ExitCode: 1}, "boom"},
		{"stdout when stderr empty", Result{Stdout: []byte("Traceback ..."), ExitCode: 2}, "Traceback ..."},
		{"placeholder", Result{ExitCode: 1}, "Unknown error"},
		{"json without prediction", Result{Stdout: []byte(`{"error":"x"}`), Stderr: []byte("bad model"), ExitCode: 1}, "bad model"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRunner{proc: newFakeProc(tc.res, false)}

			_, err := newTestBridge(r, time.Second).Predict(context.Background(), req(`1`, `1`, `1`, `1`))

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, tc.want, exitErr.Detail)
			assert.Equal(t, tc.res.ExitCode, exitErr.Code)
		})
	}
}

func TestPredict_PlainTextFallback(t *testing.T) {
	r := &fakeRunner{proc: newFakeProc(Result{Stdout: []byte("  Average\n")}, false)}

	out, err := newTestBridge(r, time.Second).Predict(context.Background(), req(`1`, `1`, `1`, `1`))

	require.NoError(t, err)
	assert.Equal(t, "Average", out.Prediction)
	assert.False(t, out.Structured)
}

func TestPredict_TimeoutKillsOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	proc := newFakeProc(Result{}, true)
	r := &fakeRunner{proc: proc}
	b := newTestBridge(r, 30*time.Millisecond)

	out, err := b.Predict(context.Background(), req(`1`, `1`, `1`, `1`))

	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "Prediction timed out", err.Error())
	assert.Empty(t, out.Prediction, "output of a killed process is discarded")
	assert.Equal(t, int32(1), proc.kills.Load())
}

func TestPredict_CompletionDoesNotKill(t *testing.T) {
	defer goleak.VerifyNone(t)

	proc := newFakeProc(Result{Stdout: []byte(`{"prediction":"Average"}`)}, false)
	b := newTestBridge(&fakeRunner{proc: proc}, time.Second)

	_, err := b.Predict(context.Background(), req(`1`, `1`, `1`, `1`))

	require.NoError(t, err)
	assert.Zero(t, proc.kills.Load())
}

func TestPredict_ContextCancelKills(t *testing.T) {
	defer goleak.VerifyNone(t)

	proc := newFakeProc(Result{}, true)
	b := newTestBridge(&fakeRunner{proc: proc}, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Predict(ctx, req(`1`, `1`, `1`, `1`))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), proc.kills.Load())
}

func TestPredict_SpawnError(t *testing.T) {
	r := &fakeRunner{startErr: errors.New(`exec: "python9": executable file not found in $PATH`)}

	_, err := newTestBridge(r, time.Second).Predict(context.Background(), req(`1`, `1`, `1`, `1`))

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr))
	assert.Equal(t, `exec: "python9": executable file not found in $PATH`, err.Error())
}

func TestNew_Defaults(t *testing.T) {
	b := New(Config{}, nil, nil)
	assert.Equal(t, "python", b.cfg.Python)
	assert.Equal(t, DefaultTimeout, b.cfg.Timeout)
	assert.Equal(t, []string{"1", "2.5", "3", "7"}, b.Args(advice.Levels{N: 1, P: 2.5, K: 3, PH: 7}))
}
