package ptrc

import "fmt"

// Mark emits a marker event for the current point in time. If name is empty,
// it's derived from the calling function, per Options.SimpleNames.
//
// Markers are unpooled and have no handle, so there's nothing to silently
// discard when no session is running: in that case, Mark fails with
// ErrInvalidState.
func (s *Session) Mark(name string, categories ...string) error {
	st := s.state.Load()
	if st == nil {
		return fmt.Errorf("mark %q: %w", name, ErrInvalidState)
	}

	now := st.host.Now()
	name, loc, trace := st.describe(1, name)

	ev := NewMarkerEvent(name, categories, st.host.ThreadID(), st.since(now))
	ev.location = loc
	ev.stackTrace = trace
	st.submit(ev)

	return nil
}
