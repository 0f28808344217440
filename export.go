package ptrc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Flush serializes the running session to w, and optionally stops the
// session afterwards. It fails with ErrInvalidState if no session is running,
// ErrNotSupported if the sink isn't a StreamSink, and ErrNotWritable if w
// rejects writes. The session is only stopped if the flush succeeds.
//
// Flush may block on w, and shouldn't be called on latency-sensitive paths.
func (s *Session) Flush(w io.Writer, stop bool) error {
	ss, err := s.streamSink()
	if err != nil {
		return err
	}

	if err := ss.WriteStream(w); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	if st := s.state.Load(); st != nil {
		st.opts.Logger.Printf("session %s: flushed %d event(s)", st.id, st.events.Load())
	}

	if stop {
		s.Stop()
	}

	return nil
}

// Bytes returns the serialized session, and optionally stops the session
// afterwards. See Flush for details.
func (s *Session) Bytes(stop bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Flush(&buf, stop); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileSystem is a destination for serialized sessions. Remove is used to
// clean up after a failed write.
type FileSystem interface {
	Create(name string) (io.WriteCloser, error)
	Remove(name string) error
}

// DirFS is a FileSystem rooted at a directory of the host file system. Names
// are slash-separated paths relative to the root, and intermediate
// directories are created as needed.
type DirFS string

// Create implements FileSystem.
func (dir DirFS) Create(name string) (io.WriteCloser, error) {
	if !filepathIsLocal(name) {
		return nil, fmt.Errorf("%s: invalid name", name)
	}
	path := filepath.Join(string(dir), filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

// Remove implements FileSystem.
func (dir DirFS) Remove(name string) error {
	if !filepathIsLocal(name) {
		return fmt.Errorf("%s: invalid name", name)
	}
	return os.Remove(filepath.Join(string(dir), filepath.FromSlash(name)))
}

func filepathIsLocal(name string) bool {
	return name != "" && filepath.IsLocal(filepath.FromSlash(name))
}

// SaveFile serializes the running session to the named file in fsys, and
// optionally stops the session afterwards. If fsys is nil, the current
// working directory is used. If the write fails, the file is removed. See
// Flush for details.
func (s *Session) SaveFile(fsys FileSystem, name string, stop bool) (err error) {
	if _, err := s.streamSink(); err != nil {
		return err // don't create the file
	}

	if fsys == nil {
		fsys = DirFS(".")
	}

	f, err := fsys.Create(name)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrNotWritable, name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", ErrNotWritable, name, cerr)
		}
		if err != nil {
			fsys.Remove(name)
		}
	}()

	return s.Flush(f, stop)
}

// TextDestination receives a serialized session as text, e.g. a clipboard.
type TextDestination interface {
	SetText(text string) error
}

// CopyText serializes the running session to dst, and optionally stops the
// session afterwards. See Flush for details.
func (s *Session) CopyText(dst TextDestination, stop bool) error {
	if dst == nil {
		return fmt.Errorf("flush: %w: nil text destination", ErrNotWritable)
	}

	data, err := s.Bytes(false)
	if err != nil {
		return err
	}

	if err := dst.SetText(string(data)); err != nil {
		return fmt.Errorf("flush: %w: %w", ErrNotWritable, err)
	}

	if stop {
		s.Stop()
	}

	return nil
}

func (s *Session) streamSink() (StreamSink, error) {
	st := s.state.Load()
	if st == nil {
		return nil, fmt.Errorf("flush: %w", ErrInvalidState)
	}

	ss, ok := st.sink.(StreamSink)
	if !ok {
		return nil, fmt.Errorf("flush: %w (%T)", ErrNotSupported, st.sink)
	}

	return ss, nil
}
