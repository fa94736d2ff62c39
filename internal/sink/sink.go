// Package sink provides commit destinations beyond the block store.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"

	"github.com/runger/spoiler/internal/logging"
	"github.com/runger/spoiler/internal/picker"
	"github.com/runger/spoiler/internal/sanitize"
)

// ErrEmptyCommand is returned when an exec command splits to nothing.
var ErrEmptyCommand = errors.New("exec sink: empty command")

// maxStderr bounds the stderr tail kept for error messages.
const maxStderr = 4 << 10

// Multi fans a commit out to each sink in order and stops at the first error.
type Multi []picker.CommitSink

var _ picker.CommitSink = Multi(nil)

// Commit implements picker.CommitSink.
func (m Multi) Commit(ctx context.Context, sel picker.Selection) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Commit(ctx, sel); err != nil {
			return err
		}
	}
	return nil
}

// Writer writes each selection as one JSON line.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

var _ picker.CommitSink = (*Writer)(nil)

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Commit implements picker.CommitSink.
func (s *Writer) Commit(_ context.Context, sel picker.Selection) error {
	data, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("writer sink: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("writer sink: %w", err)
	}
	return nil
}

// Exec runs a command for every commit. The selection JSON is written to
// its stdin and SPOILER_ID holds the option id. No shell is involved.
type Exec struct {
	argv    []string
	env     []string
	timeout time.Duration
	log     *logrus.Entry
}

var _ picker.CommitSink = (*Exec)(nil)

// ExecOption configures an Exec sink.
type ExecOption func(*Exec)

// WithTimeout bounds each run. Zero leaves only the commit context.
func WithTimeout(d time.Duration) ExecOption {
	return func(e *Exec) { e.timeout = d }
}

// WithEnv adds KEY=VALUE pairs to the inherited environment.
func WithEnv(kv ...string) ExecOption {
	return func(e *Exec) { e.env = append(e.env, kv...) }
}

// NewExec splits command with POSIX shell quoting rules.
func NewExec(command string, opts ...ExecOption) (*Exec, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("exec sink: splitting command: %w", err)
	}
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}

	e := &Exec{
		argv:    argv,
		timeout: 10 * time.Second,
		log:     logging.NewLogger("sink").WithField("command", argv[0]),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Argv returns the split command.
func (e *Exec) Argv() []string {
	return append([]string(nil), e.argv...)
}

// Commit implements picker.CommitSink.
func (e *Exec) Commit(ctx context.Context, sel picker.Selection) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	input, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("exec sink: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.argv[0], e.argv[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = io.Discard
	cmd.Stderr = &limitedBuffer{buf: &stderr, max: maxStderr}
	cmd.Env = append(os.Environ(), e.env...)
	cmd.Env = append(cmd.Env, "SPOILER_ID="+strconv.FormatInt(sel.ID, 10))
	// Orphaned grandchildren may hold stderr open after a kill.
	cmd.WaitDelay = time.Second

	start := time.Now()
	err = cmd.Run()
	e.log.WithFields(logrus.Fields{
		"option_id": sel.ID,
		"duration":  time.Since(start),
	}).Debug("exec sink ran")

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("exec sink: %w", ctxErr)
		}
		if msg := sanitize.Sanitize(strings.TrimSpace(stderr.String())); msg != "" {
			return fmt.Errorf("exec sink: %w: %s", err, msg)
		}
		return fmt.Errorf("exec sink: %w", err)
	}
	return nil
}

// limitedBuffer keeps the first max bytes and drops the rest.
type limitedBuffer struct {
	buf *bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}
