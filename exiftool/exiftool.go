package exiftool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
)

// ExifTool runs one exiftool process in batch mode and sends command
// batches to it.
//
// Most methods need a running process: call Start, and make sure
// Terminate (or Close) runs when done, or use Do. A finalizer also
// terminates a leaked client when it is garbage collected, but finalizers
// may run late or never, and a process orphaned by the parent's exit keeps
// running. Do not rely on it.
//
// An ExifTool is safe for concurrent use. Batches from different
// goroutines are serialized.
type ExifTool struct {
	cfg  Config
	sess *session
}

// New creates a client. The process is not started until Start.
func New(opts ...Option) *ExifTool {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a client from a Config.
func NewWithConfig(cfg Config) *ExifTool {
	cfg = cfg.WithDefaults()
	t := &ExifTool{
		cfg:  cfg,
		sess: newSession(cfg),
	}
	runtime.SetFinalizer(t, (*ExifTool).finalize)
	return t
}

// Batch creates a client without starting it, for grouping several
// queries on one process:
//
//	et := exiftool.Batch()
//	err := et.Do(func(et *exiftool.ExifTool) error { ... })
func Batch(opts ...Option) *ExifTool {
	return New(opts...)
}

// Config returns the client's configuration.
func (t *ExifTool) Config() Config {
	return t.cfg
}

// Start launches exiftool with -stay_open True. The common arguments
// (-G -n by default) apply to every later batch. Calling Start on a
// running client logs a warning and does nothing.
func (t *ExifTool) Start() error {
	if err := t.cfg.Validate(); err != nil {
		return newError("start", err)
	}
	if err := t.sess.start(); err != nil {
		return newError("start", err)
	}
	return nil
}

// Terminate stops the exiftool process. It does nothing if the process
// is not running, and may be called any number of times.
func (t *ExifTool) Terminate() {
	t.sess.terminate()
}

// Close terminates the process. It implements io.Closer and always
// returns nil.
func (t *ExifTool) Close() error {
	t.Terminate()
	return nil
}

// Running reports whether the client has a live exiftool process.
func (t *ExifTool) Running() bool {
	return t.sess.running.Load()
}

// PID returns the exiftool process ID, or 0 when not running.
func (t *ExifTool) PID() int {
	return t.sess.pid()
}

// Do runs fn with a running client. If the client was not running, Do
// starts it and terminates it again when fn returns, fails or panics. A
// process that was already running is left running.
func (t *ExifTool) Do(fn func(*ExifTool) error) error {
	if !t.Running() {
		if err := t.Start(); err != nil {
			return err
		}
		defer t.Terminate()
	}
	return fn(t)
}

// Execute sends one batch of arguments and returns exiftool's raw output
// without the trailing sentinel. -execute is appended automatically.
//
// This is a low-level method. exiftool ignores arguments it does not
// understand, so nonsensical batches fail silently.
func (t *ExifTool) Execute(ctx context.Context, args ...string) ([]byte, error) {
	out, err := t.sess.execute(ctx, args)
	if err != nil {
		return nil, newError("execute", err)
	}
	return out, nil
}

// ExecuteJSON sends a batch with -j added and decodes the output. Each
// record carries the file it describes under SourceFile.
func (t *ExifTool) ExecuteJSON(ctx context.Context, args ...string) ([]Record, error) {
	raw, err := t.executeJSON(ctx, args)
	if err != nil {
		return nil, err
	}
	records, err := DecodeJSON(raw)
	if err != nil {
		return nil, newError("execute_json", err)
	}
	return records, nil
}

func (t *ExifTool) executeJSON(ctx context.Context, args []string) ([]byte, error) {
	return t.Execute(ctx, append([]string{jsonFlag}, args...)...)
}

// Metadata returns the metadata of files. A single existing regular file
// is queried immediately and returned as *FileMetadata. Anything else
// (several files, directories, patterns) returns a *MultiFileMetadata
// that queries when iterated.
func (t *ExifTool) Metadata(ctx context.Context, paths ...string) (View, error) {
	if len(paths) == 1 && isRegularFile(paths[0]) {
		raw, err := t.query(ctx, paths)
		if err != nil {
			return nil, err
		}
		for rec, err := range DecodeJSONStream(raw) {
			if err != nil {
				return nil, newError("metadata", err)
			}
			return NewFileMetadata(rec), nil
		}
		return nil, newError("metadata", fmt.Errorf("%w: no record for %s", ErrMalformedResponse, paths[0]))
	}

	return &MultiFileMetadata{
		paths: slices.Clone(paths),
		tool:  t,
	}, nil
}

// query runs one JSON batch on the running process or, when there is
// none, on a private process that lives for this call only.
func (t *ExifTool) query(ctx context.Context, args []string) ([]byte, error) {
	if t.Running() {
		raw, err := t.executeJSON(ctx, args)
		if !errors.Is(err, ErrNotRunning) {
			return raw, err
		}
	}

	var raw []byte
	private := NewWithConfig(t.cfg)
	err := private.Do(func(et *ExifTool) error {
		var err error
		raw, err = et.executeJSON(ctx, args)
		return err
	})
	return raw, err
}

func (t *ExifTool) finalize() {
	if !t.Running() {
		return
	}
	t.cfg.logger().Warn("exiftool client garbage collected while running; terminating",
		slog.Int("pid", t.PID()))
	t.Terminate()
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Metadata returns the metadata of files using a private client that is
// terminated before returning. A returned *MultiFileMetadata starts its
// own short-lived process each time it is iterated; use Batch to share one
// process across queries.
func Metadata(ctx context.Context, paths ...string) (View, error) {
	return New().Metadata(ctx, paths...)
}
