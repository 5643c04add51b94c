package process

// Terminator ends a dev-server process together with everything it forked.
// Terminate does not wait for the exit; Handle.Done reports it.
type Terminator interface {
	Terminate(h *Handle) error
}

// TerminatorFunc adapts a function to Terminator.
type TerminatorFunc func(h *Handle) error

func (f TerminatorFunc) Terminate(h *Handle) error { return f(h) }
