package exiftool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// session owns one exiftool process running in -stay_open mode and the
// pipes connected to it. Nothing outside session touches the pipes.
type session struct {
	cfg Config
	log *slog.Logger

	// mu serializes start, execute and terminate. exiftool answers one
	// batch at a time and the sentinel scan cannot tell overlapping
	// responses apart.
	mu      sync.Mutex
	running atomic.Bool

	id     string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func newSession(cfg Config) *session {
	return &session{
		cfg: cfg,
		log: cfg.logger(),
	}
}

// start launches exiftool. Starting a running session only logs a warning.
func (s *session) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		s.log.Warn("exiftool already running; doing nothing",
			slog.String("session", s.id),
			slog.Int("pid", s.pidLocked()))
		return nil
	}

	cmd := exec.Command(s.cfg.Executable, startArgs(s.cfg.CommonArgs)...)
	// nil discards stderr
	cmd.Stderr = s.cfg.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return fmt.Errorf("start %s: %w", s.cfg.Executable, err)
	}

	s.id = uuid.NewString()
	s.cmd = cmd
	s.stdin = stdin
	s.stdout = stdout
	s.running.Store(true)

	s.log.Debug("exiftool started",
		slog.String("session", s.id),
		slog.String("executable", s.cfg.Executable),
		slog.Int("pid", cmd.Process.Pid))

	return nil
}

// terminate asks exiftool to leave batch mode and waits for it to exit.
// It is a no-op on a stopped session and never fails; problems are logged.
func (s *session) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return
	}

	if _, err := s.stdin.Write(stopDirective); err != nil {
		s.log.Debug("write stay_open directive",
			slog.String("session", s.id),
			slog.Any("error", err))
	}
	s.release()
}

// execute sends one batch and returns its output without the sentinel.
// Cancelling ctx while the batch is written or its response read kills
// the process, since the rest of the response could not be told apart
// from the next one.
func (s *session) execute(ctx context.Context, tokens []string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return nil, ErrNotRunning
	}

	payload, err := EncodeBatch(tokens...)
	if err != nil {
		return nil, err
	}

	if s.cfg.ExecuteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ExecuteTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		out []byte
		err error
	}
	resultCh := make(chan result, 1)
	stdin, stdout := s.stdin, s.stdout

	go func() {
		if _, err := stdin.Write(payload); err != nil {
			resultCh <- result{err: fmt.Errorf("%w: write batch: %w", ErrProcessExited, err)}
			return
		}
		out, err := readResponse(stdout, []byte(s.cfg.Sentinel), s.cfg.ReadChunkSize)
		resultCh <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		s.log.Warn("batch cancelled; killing exiftool",
			slog.String("session", s.id),
			slog.Int("pid", s.pidLocked()),
			slog.Any("error", ctx.Err()))
		_ = s.cmd.Process.Kill()
		s.release()
		<-resultCh
		return nil, ctx.Err()
	case r := <-resultCh:
		if r.err != nil {
			s.release()
			return nil, r.err
		}
		return r.out, nil
	}
}

// readResponse reads chunks until the accumulated output ends with the
// sentinel.
func readResponse(r io.Reader, sentinel []byte, chunkSize int) ([]byte, error) {
	buf := make([]byte, chunkSize)
	var out []byte

	for !hasSentinel(out, sentinel) {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if hasSentinel(out, sentinel) {
				break
			}
			return nil, fmt.Errorf("%w: read response: %w", ErrProcessExited, err)
		}
	}

	return trimResponse(out, sentinel), nil
}

// release closes stdin, drains stdout and reaps the process, killing it
// after StopTimeout. Callers hold s.mu.
func (s *session) release() {
	cmd, stdin, stdout := s.cmd, s.stdin, s.stdout
	id := s.id
	s.cmd, s.stdin, s.stdout = nil, nil, nil
	s.running.Store(false)

	_ = stdin.Close()
	go func() {
		_, _ = io.Copy(io.Discard, stdout)
	}()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var exitErr error
	select {
	case exitErr = <-done:
	case <-time.After(s.cfg.StopTimeout):
		s.log.Warn("exiftool did not exit; killing",
			slog.String("session", id),
			slog.Int("pid", cmd.Process.Pid))
		_ = cmd.Process.Kill()
		exitErr = <-done
	}

	s.log.Debug("exiftool stopped",
		slog.String("session", id),
		slog.Int("pid", cmd.Process.Pid),
		slog.Any("exit", exitErr))
}

// pid returns the process ID, or 0 when not running.
func (s *session) pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pidLocked()
}

func (s *session) pidLocked() int {
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}
