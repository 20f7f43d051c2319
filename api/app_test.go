package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"farmalytica/api/predict"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubProc finishes with res, or blocks until killed.
type stubProc struct {
	res    predict.Result
	hang   bool
	once   sync.Once
	killed chan struct{}
}

func (p *stubProc) Wait() (predict.Result, error) {
	if p.hang {
		<-p.killed
		return predict.Result{ExitCode: -1}, nil
	}
	return p.res, nil
}

func (p *stubProc) Kill() error {
	p.once.Do(func() { close(p.killed) })
	return nil
}

// stubRunner hands out one stubProc per Start.
type stubRunner struct {
	res      predict.Result
	hang     bool
	startErr error
	starts   atomic.Int32
}

func (r *stubRunner) Start(_ context.Context, _ string, _ []string) (predict.Process, error) {
	r.starts.Add(1)
	if r.startErr != nil {
		return nil, r.startErr
	}
	return &stubProc{res: r.res, hang: r.hang, killed: make(chan struct{})}, nil
}

// newTestApp builds an App without Mongo. Only handlers that answer before
// touching a collection can be exercised with it.
func newTestApp(t *testing.T, runner predict.Runner) *App {
	t.Helper()
	cfg := defaultConfig()
	cfg.JWTSecret = "test-secret"
	if runner == nil {
		runner = &stubRunner{res: predict.Result{Stdout: []byte(`{"prediction":"Optimal"}`)}}
	}
	return &App{
		cfg:     cfg,
		log:     zap.NewNop(),
		metrics: newMetrics(),
		bridge:  predict.New(predict.Config{Script: "predict_soil.py"}, runner, nil),
		weather: newWeatherClient("", cfg.WeatherURL),
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
