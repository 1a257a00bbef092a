package surface

import (
	"sync"

	"github.com/kitchen360/catalog/pkg/streaming"
)

// Container is the presentation target a surface is mounted into. Only the
// surface renders into it.
type Container interface {
	// Attached reports whether the container is connected to a live viewer.
	Attached() bool
	// Render pushes one presentation update to the viewer.
	Render(env streaming.Envelope) error
	// Handle routes inbound viewer messages of msgType to h, replacing any
	// previous handler for that type.
	Handle(msgType string, h func(streaming.Envelope))
	// Unhandle detaches the handler for msgType.
	Unhandle(msgType string)
}

// Recorder is an in-process Container. It keeps every rendered envelope and lets
// callers inject viewer messages with Emit. Used for headless previews and tests.
type Recorder struct {
	mu       sync.Mutex
	attached bool
	rendered []streaming.Envelope
	handlers map[string]func(streaming.Envelope)
}

// NewRecorder creates an attached Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		attached: true,
		handlers: make(map[string]func(streaming.Envelope)),
	}
}

// Attached reports the attachment flag.
func (r *Recorder) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attached
}

// Detach marks the recorder as no longer connected.
func (r *Recorder) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = false
}

// Render records env.
func (r *Recorder) Render(env streaming.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, env)
	return nil
}

// Handle registers h for msgType.
func (r *Recorder) Handle(msgType string, h func(streaming.Envelope)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[msgType] = h
}

// Unhandle removes the handler for msgType.
func (r *Recorder) Unhandle(msgType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, msgType)
}

// Emit delivers a viewer message synchronously. It reports whether a handler
// was registered.
func (r *Recorder) Emit(msgType string, payload any) bool {
	env, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return false
	}
	r.mu.Lock()
	h := r.handlers[msgType]
	r.mu.Unlock()
	if h == nil {
		return false
	}
	h(env)
	return true
}

// Rendered returns a copy of every envelope rendered so far.
func (r *Recorder) Rendered() []streaming.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]streaming.Envelope, len(r.rendered))
	copy(out, r.rendered)
	return out
}

// RenderedTypes returns the message types rendered so far, in order.
func (r *Recorder) RenderedTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.rendered))
	for i, env := range r.rendered {
		out[i] = env.Type
	}
	return out
}

// Handled reports whether a handler is registered for msgType.
func (r *Recorder) Handled(msgType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handlers[msgType]
	return ok
}

// Reset drops the rendered history.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = nil
}
