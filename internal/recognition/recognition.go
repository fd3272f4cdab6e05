// Package recognition runs the external food recognition process and parses
// its report into detections.
//
// The process is started once per image with the absolute image path as its
// last argument. It must write a single JSON document of the form
//
//	{"detections": [{"label": "apple", "confidence": 0.93}, ...]}
//
// to stdout and exit 0. Output is buffered until the stream closes and is
// parsed exactly once.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"mealtrack/internal/domain"
	"mealtrack/internal/logging"
	"mealtrack/internal/metrics"
)

const (
	defaultMaxOutputBytes = 1 << 20
	maxStderrBytes        = 64 << 10
	waitDelay             = 2 * time.Second
)

// CommandFunc builds the child process for one run. It has the signature of
// exec.CommandContext.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Config describes how to launch the recognition process.
type Config struct {
	Command        string
	Args           []string
	Timeout        time.Duration
	MaxConcurrent  int
	MaxOutputBytes int64
}

// Invoker launches the recognition process. It holds no per-call state and
// is safe for concurrent use.
type Invoker struct {
	cfg     Config
	command CommandFunc
	sem     *semaphore.Weighted
	log     *zap.Logger
	metrics *metrics.Metrics
}

// Option customises an Invoker.
type Option func(*Invoker)

// WithCommandFunc replaces exec.CommandContext as the process launcher.
func WithCommandFunc(f CommandFunc) Option {
	return func(inv *Invoker) { inv.command = f }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(inv *Invoker) { inv.log = logging.OrNop(l) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(inv *Invoker) { inv.metrics = m }
}

// New validates cfg and returns an Invoker.
func New(cfg Config, opts ...Option) (*Invoker, error) {
	if cfg.Command == "" {
		return nil, errors.New("recognition command is required")
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaultMaxOutputBytes
	}
	inv := &Invoker{
		cfg:     cfg,
		command: exec.CommandContext,
		log:     zap.NewNop(),
	}
	if cfg.MaxConcurrent > 0 {
		inv.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv, nil
}

// RecognitionError describes a failed run. ExitCode is -1 when the process
// did not exit on its own.
type RecognitionError struct {
	ExitCode int
	Stderr   string
	ParseErr error
	Err      error
}

func (e *RecognitionError) Error() string {
	switch {
	case e.ParseErr != nil:
		return fmt.Sprintf("recognition output: %v", e.ParseErr)
	case e.Err != nil:
		return fmt.Sprintf("recognition process: %v", e.Err)
	case e.Stderr != "":
		return fmt.Sprintf("recognition process exited with code %d: %s", e.ExitCode, e.Stderr)
	default:
		return fmt.Sprintf("recognition process exited with code %d", e.ExitCode)
	}
}

func (e *RecognitionError) Unwrap() []error {
	errs := []error{domain.ErrRecognition}
	if e.ParseErr != nil {
		errs = append(errs, e.ParseErr)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Detect runs the recognition process on imagePath and returns its
// detections. An image with nothing recognised yields an empty slice.
func (inv *Invoker) Detect(ctx context.Context, imagePath string) ([]domain.Detection, error) {
	abs, err := filepath.Abs(imagePath)
	if err != nil {
		return nil, &RecognitionError{ExitCode: -1, Err: err}
	}

	if inv.sem != nil {
		if err := inv.sem.Acquire(ctx, 1); err != nil {
			return nil, &RecognitionError{ExitCode: -1, Err: err}
		}
		defer inv.sem.Release(1)
	}

	if inv.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.cfg.Timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	log := inv.log.With(zap.String("run_id", runID), zap.String("image", abs))
	start := time.Now()

	detections, err := inv.run(ctx, abs)
	elapsed := time.Since(start)
	if err != nil {
		inv.metrics.ObserveRecognition(elapsed, failureReason(err))
		log.Warn("recognition failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, err
	}
	inv.metrics.ObserveRecognition(elapsed, "")
	log.Debug("recognition finished",
		zap.Duration("elapsed", elapsed),
		zap.Int("detections", len(detections)),
	)
	return detections, nil
}

func (inv *Invoker) run(ctx context.Context, imagePath string) ([]domain.Detection, error) {
	args := append(slices.Clone(inv.cfg.Args), imagePath)
	cmd := inv.command(ctx, inv.cfg.Command, args...)

	stdout := &limitedBuffer{limit: inv.cfg.MaxOutputBytes, strict: true}
	stderr := &limitedBuffer{limit: maxStderrBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return nil, &RecognitionError{ExitCode: -1, Err: err}
	}
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &RecognitionError{ExitCode: -1, Stderr: stderr.String(), Err: ctxErr}
	}
	if stdout.overflow {
		return nil, &RecognitionError{
			ExitCode: -1,
			ParseErr: fmt.Errorf("output exceeds %d bytes", inv.cfg.MaxOutputBytes),
		}
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return nil, &RecognitionError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return nil, &RecognitionError{ExitCode: -1, Stderr: stderr.String(), Err: waitErr}
	}

	detections, err := parseReport(stdout.buf.Bytes())
	if err != nil {
		return nil, &RecognitionError{ExitCode: 0, ParseErr: err}
	}
	return detections, nil
}

type report struct {
	Detections *[]domain.Detection `json:"detections"`
}

// parseReport decodes exactly one JSON document from out.
func parseReport(out []byte) ([]domain.Detection, error) {
	dec := json.NewDecoder(bytes.NewReader(out))
	var r report
	if err := dec.Decode(&r); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty output")
		}
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON document")
	}
	if r.Detections == nil {
		return nil, errors.New(`missing "detections" array`)
	}
	if len(*r.Detections) == 0 {
		return []domain.Detection{}, nil
	}
	return *r.Detections, nil
}

func failureReason(err error) string {
	var re *RecognitionError
	if !errors.As(err, &re) {
		return "error"
	}
	switch {
	case errors.Is(re.Err, context.Canceled), errors.Is(re.Err, context.DeadlineExceeded):
		return "canceled"
	case re.ParseErr != nil:
		return "parse"
	case re.Err != nil:
		return "start"
	default:
		return "exit"
	}
}

var errOutputLimit = errors.New("output limit exceeded")

// limitedBuffer collects process output chunk by chunk up to limit bytes.
// Past the limit a strict buffer fails the write, which closes the pipe;
// a lenient one drops the excess.
type limitedBuffer struct {
	buf      bytes.Buffer
	limit    int64
	strict   bool
	overflow bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - int64(b.buf.Len())
	if int64(len(p)) <= room {
		return b.buf.Write(p)
	}
	var n int
	if room > 0 {
		n, _ = b.buf.Write(p[:room])
	}
	b.overflow = true
	if b.strict {
		return n, errOutputLimit
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return string(bytes.TrimSpace(b.buf.Bytes()))
}
