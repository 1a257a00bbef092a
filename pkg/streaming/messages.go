package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/kitchen360/catalog/pkg/core"
)

// Outbound message types, server to viewer.
const (
	TypeMount             = "mount"
	TypeSetPosition       = "set_position"
	TypeAddMarker         = "add_marker"
	TypeRemoveMarker      = "remove_marker"
	TypeClearMarkers      = "clear_markers"
	TypeDestroy           = "destroy"
	TypeCreationRequested = "creation_requested"
	TypeEntitySelected    = "entity_selected"
	TypeFatalError        = "fatal_error"
	TypeViewOpened        = "view_opened"
	TypeEntityCreated     = "entity_created"
	TypeCreationFailed    = "creation_failed"
)

// Inbound message types, viewer to server.
const (
	TypeClick           = "click"
	TypePositionChanged = "position_changed"
	TypeSelectMarker    = "select_marker"
	TypeSubmitCreation  = "submit_creation"
	TypeCancelCreation  = "cancel_creation"
	TypeOpenView        = "open_view"
	TypeResize          = "resize"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an Envelope of the given type. A nil payload
// produces an envelope without one.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	env := Envelope{Type: msgType}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env.Payload = raw
	return env, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// MountPayload tells the viewer which panorama to show and how.
type MountPayload struct {
	ImageURL    string   `json:"imageUrl"`
	Navbar      []string `json:"navbar"`
	Plugins     []string `json:"plugins"`
	DefaultZoom float64  `json:"defaultZoom"`
}

// ClickPayload is a click on the panorama in the viewer's native radians.
// Zoom is present when the viewer reports its level alongside the click.
// X and Y are the pointer location in viewport pixels, when known.
type ClickPayload struct {
	Yaw   float64  `json:"yaw"`
	Pitch float64  `json:"pitch"`
	Zoom  *float64 `json:"zoom,omitempty"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
}

// ResizePayload reports the viewer's drawable size in pixels.
type ResizePayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MarkerIDPayload names a marker.
type MarkerIDPayload struct {
	ID string `json:"id"`
}

// OpenViewPayload asks the session to show another view.
type OpenViewPayload struct {
	ViewID string `json:"viewId"`
}

// EntitySelectedPayload carries the entity behind a selected marker.
type EntitySelectedPayload struct {
	Kind   core.EntityKind `json:"kind"`
	Entity core.Entity     `json:"entity"`
	// DetailURL is where the viewer can fetch the full record.
	DetailURL string `json:"detailUrl,omitempty"`
}

// FatalErrorPayload reports an error that stopped the viewer session.
type FatalErrorPayload struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// ViewOpenedPayload announces the view a session now shows.
type ViewOpenedPayload struct {
	Room core.Room `json:"room"`
	View core.View `json:"view"`
}

// CreationFailedPayload reports a rejected submit_creation. The creation stays
// pending, so the viewer can resubmit.
type CreationFailedPayload struct {
	Error string `json:"error"`
}
