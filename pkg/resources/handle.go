package resources

import "errors"

// LoadHandle tracks one LoadObjectTextures request.
//
// The handle resolves on the render thread (inside Manager.Poll) once every
// texture of the request has been uploaded, has failed, or has been superseded
// by a newer request. Done returns a channel that is closed at that point.
type LoadHandle struct {
	blueType  string
	redType   string
	remaining int
	errs      []error
	done      chan struct{}
	resolved  bool
}

func newLoadHandle(blueType, redType string) *LoadHandle {
	return &LoadHandle{blueType: blueType, redType: redType, done: make(chan struct{})}
}

// Done returns a channel closed when the request has resolved.
func (h *LoadHandle) Done() <-chan struct{} {
	return h.done
}

// Resolved reports whether the request has resolved.
func (h *LoadHandle) Resolved() bool {
	return h.resolved
}

// Err returns the joined load errors, or nil if every texture loaded.
// Only meaningful after the handle has resolved.
func (h *LoadHandle) Err() error {
	return errors.Join(h.errs...)
}

// Types returns the requested object types.
func (h *LoadHandle) Types() (blueType, redType string) {
	return h.blueType, h.redType
}

func (h *LoadHandle) fail(err error) {
	h.errs = append(h.errs, err)
}

func (h *LoadHandle) settle() {
	h.remaining--
	if h.remaining <= 0 {
		h.resolve()
	}
}

func (h *LoadHandle) resolve() {
	if h.resolved {
		return
	}
	h.resolved = true
	close(h.done)
}
