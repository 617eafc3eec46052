package journal

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jumpLine(system string) string {
	return `{"timestamp":"2024-03-01T12:00:00Z","event":"FSDJump","StarSystem":"` + system + `"}` + "\n"
}

func appendTo(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func newTestTailer(t *testing.T, dir string) (*Tailer, chan Arrival) {
	t.Helper()
	ch := make(chan Arrival, 64)
	tl := NewTailer(Options{
		Dir:            dir,
		PollInterval:   10 * time.Millisecond,
		LocateInterval: 10 * time.Millisecond,
		RetryBackoff:   time.Millisecond,
		DisableWatch:   true,
	}, ChanSink(ch), zerolog.Nop())
	return tl, ch
}

func received(ch chan Arrival) []string {
	var out []string
	for {
		select {
		case a := <-ch:
			out = append(out, a.System)
		default:
			return out
		}
	}
}

func TestTailer_AttachesAtEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeJournal(t, dir, "Journal.2024-01-01T100000.01.log", jumpLine("Old"), time.Now())

	tl, ch := newTestTailer(t, dir)
	ctx := context.Background()

	assert.Equal(t, StateLocating, tl.State())
	tl.step(ctx)
	assert.Equal(t, StateTailing, tl.State())

	gotPath, offset := tl.Cursor()
	assert.Equal(t, path, gotPath)
	assert.Equal(t, int64(len(jumpLine("Old"))), offset)

	tl.step(ctx)
	assert.Empty(t, received(ch))

	appendTo(t, path, jumpLine("Sol")+`{"event":"Scan"}`+"\n"+jumpLine("Achenar"))
	tl.step(ctx)
	assert.Equal(t, []string{"Sol", "Achenar"}, received(ch))
}

func TestTailer_PartialLineRetained(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeJournal(t, dir, "Journal.2024-01-01T100000.01.log", "", time.Now())

	tl, ch := newTestTailer(t, dir)
	ctx := context.Background()
	tl.step(ctx)

	line := jumpLine("Sol")
	half := len(line) / 2

	appendTo(t, path, line[:half])
	tl.step(ctx)
	assert.Empty(t, received(ch))
	_, offset := tl.Cursor()
	assert.Equal(t, int64(0), offset, "partial line must not be consumed")

	appendTo(t, path, line[half:])
	tl.step(ctx)

	got := received(ch)
	assert.Equal(t, []string{"Sol"}, got)
	_, offset = tl.Cursor()
	assert.Equal(t, int64(len(line)), offset)
}

func TestTailer_ArrivalCarriesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeJournal(t, dir, "Journal.2024-01-01T100000.01.log", "", time.Now())

	tl, ch := newTestTailer(t, dir)
	tl.step(context.Background())
	appendTo(t, path, jumpLine("Sol"))
	tl.step(context.Background())

	select {
	case a := <-ch:
		assert.Equal(t, path, a.File)
	default:
		t.Fatal("no arrival")
	}
}

func TestTailer_Truncation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeJournal(t, dir, "Journal.2024-01-01T100000.01.log", jumpLine("Old")+jumpLine("Older"), time.Now())

	tl, ch := newTestTailer(t, dir)
	ctx := context.Background()
	tl.step(ctx)

	require.NoError(t, os.WriteFile(path, []byte(jumpLine("Sol")), 0o644))
	tl.step(ctx)

	assert.Equal(t, []string{"Sol"}, received(ch))
	_, offset := tl.Cursor()
	assert.Equal(t, int64(len(jumpLine("Sol"))), offset)
}

func TestTailer_Rotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Now()
	first := writeJournal(t, dir, "Journal.2024-01-01T100000.01.log", "", now.Add(-2*time.Hour))

	tl, ch := newTestTailer(t, dir)
	ctx := context.Background()
	tl.step(ctx)
	gotPath, _ := tl.Cursor()
	require.Equal(t, first, gotPath)

	second := writeJournal(t, dir, "Journal.2024-01-02T100000.01.log", jumpLine("Before"), now.Add(-time.Hour))
	tl.step(ctx)

	gotPath, offset := tl.Cursor()
	assert.Equal(t, second, gotPath)
	assert.Equal(t, int64(len(jumpLine("Before"))), offset)
	assert.Empty(t, received(ch), "content present at switch is skipped")

	appendTo(t, second, jumpLine("Sol"))
	require.NoError(t, os.Chtimes(first, now.Add(-3*time.Hour), now.Add(-3*time.Hour)))
	tl.step(ctx)
	assert.Equal(t, []string{"Sol"}, received(ch))
}

func TestTailer_RotationReadsRestOfOldFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Now()
	first := writeJournal(t, dir, "Journal.2024-01-01T100000.01.log", jumpLine("Old"), now.Add(-time.Hour))

	tl, ch := newTestTailer(t, dir)
	ctx := context.Background()
	tl.step(ctx)

	// the last jumps land in the old file before the game opens a new one
	appendTo(t, first, jumpLine("Sol")+jumpLine("Achenar")+`{"event":"FSDJump","StarSys`)
	second := writeJournal(t, dir, "Journal.2024-01-02T100000.01.log", jumpLine("Before"), now.Add(time.Hour))
	tl.step(ctx)

	assert.Equal(t, []string{"Sol", "Achenar"}, received(ch))
	gotPath, offset := tl.Cursor()
	assert.Equal(t, second, gotPath)
	assert.Equal(t, int64(len(jumpLine("Before"))), offset)
	assert.Equal(t, StateTailing, tl.State())
}

func TestTailer_RetriesThenKeepsCursor(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeJournal(t, dir, "Journal.2024-01-01T100000.01.log", "", time.Now())

	tl, ch := newTestTailer(t, dir)
	ctx := context.Background()
	tl.step(ctx)
	_, attached := tl.Cursor()

	var calls int
	failing := true
	tl.read = func(path string, offset, n int64) ([]byte, error) {
		calls++
		if failing {
			return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrPermission}
		}
		return readRange(path, offset, n)
	}

	appendTo(t, path, jumpLine("Sol"))
	tl.step(ctx)

	assert.Equal(t, DefaultRetryAttempts, calls, "every attempt is used before giving up")
	assert.Empty(t, received(ch))
	gotPath, offset := tl.Cursor()
	assert.Equal(t, path, gotPath)
	assert.Equal(t, attached, offset, "a failed tick does not move the cursor")
	assert.Equal(t, StateTailing, tl.State())

	failing = false
	tl.step(ctx)

	assert.Equal(t, []string{"Sol"}, received(ch))
	_, offset = tl.Cursor()
	assert.Equal(t, attached+int64(len(jumpLine("Sol"))), offset)
}

func TestTailer_RetryRecoversWithinTick(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeJournal(t, dir, "Journal.2024-01-01T100000.01.log", "", time.Now())

	tl, ch := newTestTailer(t, dir)
	ctx := context.Background()
	tl.step(ctx)

	var calls int
	tl.stat = func(path string) (int64, error) {
		calls++
		if calls == 1 {
			return 0, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrPermission}
		}
		return fileSize(path)
	}

	appendTo(t, path, jumpLine("Sol"))
	tl.step(ctx)

	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"Sol"}, received(ch))
}

func TestTailer_FileRemovedReturnsToLocating(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeJournal(t, dir, "Journal.2024-01-01T100000.01.log", "", time.Now())

	tl, _ := newTestTailer(t, dir)
	ctx := context.Background()
	tl.step(ctx)
	require.Equal(t, StateTailing, tl.State())

	require.NoError(t, os.Remove(path))
	tl.step(ctx)
	assert.Equal(t, StateLocating, tl.State())

	gotPath, _ := tl.Cursor()
	assert.Empty(t, gotPath)
}

func TestTailer_LocatingWaitsForDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "journals")
	tl, ch := newTestTailer(t, dir)
	ctx := context.Background()

	wait := tl.step(ctx)
	assert.Equal(t, StateLocating, tl.State())
	assert.Equal(t, 10*time.Millisecond, wait)

	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := writeJournal(t, dir, "Journal.2024-01-01T100000.01.log", "", time.Now())
	tl.step(ctx)
	require.Equal(t, StateTailing, tl.State())

	appendTo(t, path, jumpLine("Sol"))
	tl.step(ctx)
	assert.Equal(t, []string{"Sol"}, received(ch))
}

func TestTailer_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeJournal(t, dir, "Journal.2024-01-01T100000.01.log", "", time.Now())

	ch := make(chan Arrival, 8)
	tl := NewTailer(Options{
		Dir:            dir,
		PollInterval:   10 * time.Millisecond,
		LocateInterval: 10 * time.Millisecond,
	}, ChanSink(ch), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tl.Run(ctx) }()

	require.Eventually(t, func() bool { return tl.State() == StateTailing }, 2*time.Second, 5*time.Millisecond)

	appendTo(t, path, jumpLine("Sol"))
	select {
	case a := <-ch:
		assert.Equal(t, "Sol", a.System)
	case <-time.After(2 * time.Second):
		t.Fatal("arrival not delivered")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, StateStopped, tl.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "locating", StateLocating.String())
	assert.Equal(t, "tailing", StateTailing.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
