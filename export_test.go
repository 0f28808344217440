package ptrc_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/peterbourgon/ptrc"
)

func TestSaveFile(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, ptrc.DefaultOptions())
	AssertNoError(t, s.Mark("saved"))

	dir := t.TempDir()
	AssertNoError(t, s.SaveFile(ptrc.DirFS(dir), "traces/run.json", true))
	AssertEqual(t, false, s.Running())

	f, err := os.Open(filepath.Join(dir, "traces", "run.json"))
	AssertNoError(t, err)
	defer f.Close()

	doc, err := ptrc.DecodeChromeDocument(f)
	AssertNoError(t, err)
	AssertEqual(t, 1, len(eventsNamed(doc, "saved")))
}

func TestSaveFileErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("idle", func(t *testing.T) {
		err := ptrc.NewSession().SaveFile(ptrc.DirFS(dir), "idle.json", false)
		AssertErrorIs(t, err, ptrc.ErrInvalidState)
		_, err = os.Stat(filepath.Join(dir, "idle.json"))
		AssertEqual(t, true, errors.Is(err, os.ErrNotExist))
	})

	t.Run("invalid name", func(t *testing.T) {
		s, _, _ := newTestSession(t, ptrc.DefaultOptions())
		for _, name := range []string{"", "../escape.json", "/abs.json"} {
			AssertErrorIs(t, s.SaveFile(ptrc.DirFS(dir), name, true), ptrc.ErrNotWritable)
		}
		AssertEqual(t, true, s.Running())
	})

	t.Run("close", func(t *testing.T) {
		s, _, _ := newTestSession(t, ptrc.DefaultOptions())
		fsys := &failingCloseFS{}
		AssertErrorIs(t, s.SaveFile(fsys, "x.json", false), ptrc.ErrNotWritable)
		AssertEqual(t, "x.json", fsys.removed)
	})

	t.Run("flush", func(t *testing.T) {
		s, _, _ := newTestSession(t, ptrc.DefaultOptions())
		AssertNoError(t, s.AddMetadata("unencodable", make(chan int)))
		if err := s.SaveFile(ptrc.DirFS(dir), "partial.json", true); err == nil {
			t.Fatalf("want error, have none")
		}
		AssertEqual(t, true, s.Running())
		_, err := os.Stat(filepath.Join(dir, "partial.json"))
		AssertEqual(t, true, errors.Is(err, os.ErrNotExist))
	})
}

func TestCopyText(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, ptrc.DefaultOptions())
	AssertNoError(t, s.Mark("copied"))

	var dst textBuffer
	AssertNoError(t, s.CopyText(&dst, true))
	AssertEqual(t, false, s.Running())
	if len(dst.text) <= 0 {
		t.Fatalf("no text copied")
	}

	AssertErrorIs(t, s.CopyText(&dst, false), ptrc.ErrInvalidState)
}

func TestCopyTextErrors(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, ptrc.DefaultOptions())
	AssertErrorIs(t, s.CopyText(nil, true), ptrc.ErrNotWritable)
	AssertErrorIs(t, s.CopyText(&textBuffer{fail: true}, true), ptrc.ErrNotWritable)
	AssertEqual(t, true, s.Running())
}

//
//
//

type textBuffer struct {
	text string
	fail bool
}

func (b *textBuffer) SetText(text string) error {
	if b.fail {
		return errors.New("clipboard unavailable")
	}
	b.text = text
	return nil
}

type failingCloseFS struct {
	removed string
}

func (*failingCloseFS) Create(name string) (io.WriteCloser, error) {
	return failingCloser{}, nil
}

func (fsys *failingCloseFS) Remove(name string) error {
	fsys.removed = name
	return nil
}

type failingCloser struct{}

func (failingCloser) Write(p []byte) (int, error) { return len(p), nil }
func (failingCloser) Close() error                { return errors.New("close failed") }
