// Package predict classifies soil health by delegating to an external
// classifier process (normally scripts/predict_soil.py).
//
// One process per call, four positional arguments N P K pH, a hard wall-clock
// deadline, and a lenient reading of the output: a structured
// {"prediction": ...} on stdout wins over the exit code.
package predict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"farmalytica/api/advice"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultTimeout = 15 * time.Second

var (
	// ErrInvalidInput means a field was missing or not a finite number.
	// The external process is never started in that case.
	ErrInvalidInput = errors.New("Missing or invalid fields")
	// ErrTimeout means the process outlived the deadline and was killed.
	ErrTimeout = errors.New("Prediction timed out")
)

// ExitError is a non-zero exit with no usable prediction on stdout.
type ExitError struct {
	Code   int
	Detail string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("classifier exited with code %d: %s", e.Code, e.Detail)
}

// SpawnError wraps a failure to start or wait for the process.
type SpawnError struct{ Err error }

func (e *SpawnError) Error() string { return e.Err.Error() }
func (e *SpawnError) Unwrap() error { return e.Err }

// Request carries the raw values as received. Each must be a JSON number or a
// numeric string.
type Request struct {
	N  json.RawMessage `json:"N"`
	P  json.RawMessage `json:"P"`
	K  json.RawMessage `json:"K"`
	PH json.RawMessage `json:"pH"`
}

// Outcome is a successful classification.
type Outcome struct {
	Prediction string
	// Structured is false when stdout was not JSON and the raw text was used.
	Structured bool
	Duration   time.Duration
}

type Config struct {
	Python  string // interpreter or executable, default "python"
	Script  string // script path; empty runs Python with only the four values
	Timeout time.Duration
}

// Bridge validates input, runs the classifier and normalizes its outcome.
// It holds no per-request state and is safe for concurrent use.
type Bridge struct {
	cfg    Config
	runner Runner
	log    *zap.Logger
}

func New(cfg Config, runner Runner, log *zap.Logger) *Bridge {
	if cfg.Python == "" {
		cfg.Python = "python"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{cfg: cfg, runner: runner, log: log}
}

// Validate coerces the four fields to finite numbers.
func Validate(req Request) (advice.Levels, error) {
	var (
		lv advice.Levels
		ok [4]bool
	)
	lv.N, ok[0] = Coerce(req.N)
	lv.P, ok[1] = Coerce(req.P)
	lv.K, ok[2] = Coerce(req.K)
	lv.PH, ok[3] = Coerce(req.PH)
	for _, v := range ok {
		if !v {
			return advice.Levels{}, ErrInvalidInput
		}
	}
	return lv, nil
}

// Coerce reads a JSON number or numeric string. Missing, null, non-numeric and
// non-finite values report false.
func Coerce(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return 0, false
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

// Args builds the argv for one prediction: [-u script] N P K pH.
func (b *Bridge) Args(lv advice.Levels) []string {
	var args []string
	if b.cfg.Script != "" {
		args = append(args, "-u", b.cfg.Script)
	}
	return append(args, format(lv.N), format(lv.P), format(lv.K), format(lv.PH))
}

// Predict validates req and classifies it.
func (b *Bridge) Predict(ctx context.Context, req Request) (Outcome, error) {
	lv, err := Validate(req)
	if err != nil {
		return Outcome{}, err
	}
	return b.Classify(ctx, lv)
}

// Classify runs the external process for already validated levels.
func (b *Bridge) Classify(ctx context.Context, lv advice.Levels) (Outcome, error) {
	if !finite(lv.N) || !finite(lv.P) || !finite(lv.K) || !finite(lv.PH) {
		return Outcome{}, ErrInvalidInput
	}

	runID := uuid.NewString()
	log := b.log.With(zap.String("run", runID))
	args := b.Args(lv)
	start := time.Now()

	proc, err := b.runner.Start(ctx, b.cfg.Python, args)
	if err != nil {
		log.Error("classifier spawn failed", zap.String("bin", b.cfg.Python), zap.Error(err))
		return Outcome{}, &SpawnError{Err: err}
	}
	log.Debug("classifier dispatched", zap.String("bin", b.cfg.Python), zap.Strings("args", args))

	type waited struct {
		res Result
		err error
	}
	done := make(chan waited, 1)
	go func() {
		res, err := proc.Wait()
		done <- waited{res, err}
	}()

	timer := time.NewTimer(b.cfg.Timeout)
	defer timer.Stop()

	select {
	case w := <-done:
		if w.err != nil {
			log.Error("classifier wait failed", zap.Error(w.err))
			return Outcome{}, &SpawnError{Err: w.err}
		}
		out, err := resolve(w.res)
		out.Duration = time.Since(start)
		if err != nil {
			log.Warn("classifier failed", zap.Int("exit", w.res.ExitCode), zap.Error(err))
			return Outcome{}, err
		}
		log.Info("classifier done",
			zap.String("prediction", out.Prediction),
			zap.Bool("structured", out.Structured),
			zap.Int("exit", w.res.ExitCode),
			zap.Duration("took", out.Duration))
		return out, nil
	case <-timer.C:
		_ = proc.Kill()
		<-done
		log.Error("prediction timed out, classifier killed", zap.Duration("timeout", b.cfg.Timeout))
		return Outcome{}, ErrTimeout
	case <-ctx.Done():
		_ = proc.Kill()
		<-done
		log.Warn("prediction cancelled, classifier killed", zap.Error(ctx.Err()))
		return Outcome{}, ctx.Err()
	}
}

// resolve applies the output precedence: structured stdout first, then exit
// code, then raw stdout text.
func resolve(res Result) (Outcome, error) {
	out := strings.TrimSpace(string(res.Stdout))

	var parsed struct {
		Prediction any `json:"prediction"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err == nil {
		if p := predictionText(parsed.Prediction); p != "" {
			return Outcome{Prediction: p, Structured: true}, nil
		}
	}

	if res.ExitCode != 0 {
		detail := strings.TrimSpace(string(res.Stderr))
		if detail == "" {
			detail = out
		}
		if detail == "" {
			detail = "Unknown error"
		}
		return Outcome{}, &ExitError{Code: res.ExitCode, Detail: detail}
	}
	return Outcome{Prediction: out}, nil
}

func predictionText(v any) string {
	switch p := v.(type) {
	case string:
		return p
	case float64:
		if p == 0 {
			return ""
		}
		return format(p)
	default:
		return ""
	}
}

func format(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
