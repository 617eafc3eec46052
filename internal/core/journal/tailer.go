package journal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/waypoint/internal/core/fault"
)

// Defaults for Options.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultLocateInterval = 5 * time.Second
	DefaultRetryAttempts  = 3
	DefaultRetryBackoff   = 250 * time.Millisecond

	// maxChunk bounds a single read so a large backlog is consumed over
	// several ticks.
	maxChunk = 4 << 20
)

// State is the tailer's lifecycle state.
type State int32

const (
	StateLocating State = iota
	StateTailing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateLocating:
		return "locating"
	case StateTailing:
		return "tailing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures a Tailer. Zero durations and counts select defaults.
type Options struct {
	Dir       string
	Pattern   string
	Commander string
	Events    []string

	PollInterval   time.Duration
	LocateInterval time.Duration
	RetryAttempts  int
	RetryBackoff   time.Duration

	// DisableWatch turns off fsnotify wake-ups.
	DisableWatch bool
}

func (o Options) withDefaults() Options {
	if o.Pattern == "" {
		o.Pattern = DefaultPattern
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.LocateInterval <= 0 {
		o.LocateInterval = DefaultLocateInterval
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = DefaultRetryAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	return o
}

// cursor is the read position in the live journal file. Bytes before offset
// have been consumed; a trailing partial line is never consumed.
type cursor struct {
	path   string
	offset int64
}

// Tailer follows the newest journal file and posts arrivals to a Sink.
// Run owns the cursor; State and Cursor may be read from any goroutine.
type Tailer struct {
	opts    Options
	locator Locator
	parser  *Parser
	sink    Sink
	log     zerolog.Logger

	state atomic.Int32
	cur   cursor
	pos   atomic.Pointer[cursor]

	stat func(path string) (int64, error)
	read func(path string, offset, n int64) ([]byte, error)
}

// NewTailer creates a tailer in the Locating state. A nil sink is replaced by
// NopSink.
func NewTailer(opts Options, sink Sink, log zerolog.Logger) *Tailer {
	opts = opts.withDefaults()
	if sink == nil {
		sink = NopSink{}
	}
	t := &Tailer{
		opts:    opts,
		locator: Locator{Dir: opts.Dir, Pattern: opts.Pattern, Commander: opts.Commander},
		parser:  NewParser(opts.Events),
		sink:    sink,
		log:     log,
		stat:    fileSize,
		read:    readRange,
	}
	t.pos.Store(&cursor{})
	return t
}

// State returns the current lifecycle state.
func (t *Tailer) State() State {
	return State(t.state.Load())
}

// Cursor returns the file being tailed and the consumed byte offset.
func (t *Tailer) Cursor() (string, int64) {
	c := t.pos.Load()
	return c.path, c.offset
}

// Run drives the tailer until ctx is cancelled. It never returns an error
// for I/O problems; those are logged and retried on the next tick.
func (t *Tailer) Run(ctx context.Context) error {
	t.setState(StateLocating)
	defer t.setState(StateStopped)

	var watcher *dirWatcher
	if !t.opts.DisableWatch {
		w, err := watchDir(t.opts.Dir, t.opts.Pattern, t.log)
		if err != nil {
			t.log.Debug().Err(err).Str("dir", t.opts.Dir).Msg("journal watch unavailable, polling only")
		} else {
			watcher = w
			defer func() { _ = watcher.Close() }()
		}
	}

	for {
		wait := t.step(ctx)
		if ctx.Err() != nil {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		case <-watcher.Wake():
			timer.Stop()
		}
	}
}

// step performs one state-machine transition and returns how long to wait
// before the next one.
func (t *Tailer) step(ctx context.Context) time.Duration {
	switch t.State() {
	case StateLocating:
		t.locate(ctx)
	case StateTailing:
		t.poll(ctx)
	}

	if t.State() == StateTailing {
		return t.opts.PollInterval
	}
	return t.opts.LocateInterval
}

// locate attaches to the newest file at its end. Only lines written after
// attach are delivered.
func (t *Tailer) locate(ctx context.Context) {
	var found Candidate
	err := t.retry(ctx, "locate journal", func() error {
		c, err := t.locator.Latest()
		found = c
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNoJournal) {
			t.log.Warn().Err(err).Str("dir", t.opts.Dir).Msg("journal locate failed")
		}
		return
	}

	t.setCursor(cursor{path: found.Path, offset: found.Size})
	t.setState(StateTailing)
	t.log.Info().Str("file", found.Path).Int64("offset", found.Size).Msg("tailing journal")
}

func (t *Tailer) poll(ctx context.Context) {
	latest, err := t.locator.Latest()
	if err != nil || latest.Path == t.cur.path {
		t.advance(ctx)
		return
	}

	// lines written to the old file since the last tick still count
	for t.State() == StateTailing && t.advance(ctx) {
	}

	t.log.Info().
		Str("from", t.cur.path).
		Str("to", latest.Path).
		Msg("switching to newer journal")
	t.setCursor(cursor{path: latest.Path, offset: latest.Size})
	t.setState(StateTailing)
}

// advance consumes complete lines appended to the current file. It reports
// whether it stopped at the chunk limit with more data waiting. A failed tick
// leaves the cursor where it was.
func (t *Tailer) advance(ctx context.Context) bool {
	var size int64
	err := t.retry(ctx, "stat journal", func() error {
		var err error
		size, err = t.stat(t.cur.path)
		return err
	})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		t.log.Info().Str("file", t.cur.path).Msg("journal disappeared, locating")
		t.setCursor(cursor{})
		t.setState(StateLocating)
		return false
	case err != nil:
		t.log.Warn().Err(err).Str("file", t.cur.path).Msg("journal stat failed")
		return false
	}

	if size < t.cur.offset {
		t.log.Info().
			Str("file", t.cur.path).
			Int64("size", size).
			Int64("offset", t.cur.offset).
			Msg("journal truncated, rereading")
		t.setCursor(cursor{path: t.cur.path, offset: 0})
	}
	if size == t.cur.offset {
		return false
	}

	var chunk []byte
	err = t.retry(ctx, "read journal", func() error {
		var err error
		chunk, err = t.read(t.cur.path, t.cur.offset, min(size-t.cur.offset, maxChunk))
		return err
	})
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			t.log.Warn().Err(err).Str("file", t.cur.path).Msg("journal read failed")
		}
		return false
	}

	consumed := t.deliver(chunk)
	if consumed == 0 && len(chunk) == maxChunk {
		// a single line longer than maxChunk cannot be completed; drop it
		t.log.Warn().Str("file", t.cur.path).Int64("offset", t.cur.offset).Msg("skipping oversized journal line")
		consumed = len(chunk)
	}
	t.setCursor(cursor{path: t.cur.path, offset: t.cur.offset + int64(consumed)})

	return consumed > 0 && t.cur.offset < size
}

// deliver posts an arrival for every complete line in chunk and returns the
// number of bytes consumed.
func (t *Tailer) deliver(chunk []byte) int {
	end := bytes.LastIndexByte(chunk, '\n')
	if end < 0 {
		return 0
	}

	for line := range bytes.SplitSeq(chunk[:end], []byte{'\n'}) {
		a, ok := t.parser.Parse(line)
		if !ok {
			continue
		}
		a.File = t.cur.path
		t.log.Debug().Str("system", a.System).Msg("arrival")
		t.sink.Post(a)
	}
	return end + 1
}

// retry runs fn up to RetryAttempts times while it fails with a transient
// error. Missing files and ErrNoJournal are returned immediately.
func (t *Tailer) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= t.opts.RetryAttempts; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, ErrNoJournal) || errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if attempt == t.opts.RetryAttempts {
			break
		}

		t.log.Debug().Err(err).Str("op", op).Int("attempt", attempt).Msg("retrying")
		timer := time.NewTimer(t.opts.RetryBackoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fault.Transient(op, err)
		case <-timer.C:
		}
	}
	return fault.Transient(op, err)
}

func (t *Tailer) setState(s State) {
	t.state.Store(int32(s))
}

func (t *Tailer) setCursor(c cursor) {
	t.cur = c
	t.pos.Store(&c)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func readRange(path string, offset, n int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, n)
	read, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}
