// pkg/core/marker.go
package core

import (
	"encoding/json"
	"fmt"
	"html"
)

// ContentKind names the variant held by a Content value.
type ContentKind string

const (
	ContentPlainText ContentKind = "text"
	ContentMarkup    ContentKind = "html"
	ContentImage     ContentKind = "image"
)

// Content is what a marker renders. It is one of PlainText, Markup or ImageRef.
type Content interface {
	Kind() ContentKind
	// Value is the text, markup fragment or image URL.
	Value() string
	isContent()
}

// PlainText is rendered as escaped text.
type PlainText string

func (PlainText) Kind() ContentKind { return ContentPlainText }
func (t PlainText) Value() string   { return string(t) }
func (PlainText) isContent()        {}

// Markup is an HTML fragment rendered as-is.
type Markup string

func (Markup) Kind() ContentKind { return ContentMarkup }
func (m Markup) Value() string   { return string(m) }
func (Markup) isContent()        {}

// ImageRef points at an image shown as the marker.
type ImageRef string

func (ImageRef) Kind() ContentKind { return ContentImage }
func (r ImageRef) Value() string   { return string(r) }
func (ImageRef) isContent()        {}

// NewContent builds the variant for kind.
func NewContent(kind ContentKind, value string) (Content, error) {
	switch kind {
	case ContentPlainText:
		return PlainText(value), nil
	case ContentMarkup:
		return Markup(value), nil
	case ContentImage:
		return ImageRef(value), nil
	default:
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}
}

// StorageMarkerHTML is the label markup used for storage-area markers.
func StorageMarkerHTML(name string) Markup {
	return Markup(`<div class="storage-marker">` + html.EscapeString(name) + `</div>`)
}

// MarkerDescriptor is a marker as handed to the marker layer.
type MarkerDescriptor struct {
	ID       string
	Position Position
	Content  Content
}

type markerJSON struct {
	ID       string      `json:"id"`
	Position Position    `json:"position"`
	Kind     ContentKind `json:"kind"`
	Content  string      `json:"content"`
}

// MarshalJSON flattens the content variant into kind/content fields.
func (m MarkerDescriptor) MarshalJSON() ([]byte, error) {
	out := markerJSON{ID: m.ID, Position: m.Position}
	if m.Content != nil {
		out.Kind = m.Content.Kind()
		out.Content = m.Content.Value()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the content variant from kind/content fields.
func (m *MarkerDescriptor) UnmarshalJSON(data []byte) error {
	var in markerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.ID = in.ID
	m.Position = in.Position
	m.Content = nil
	if in.Kind != "" {
		c, err := NewContent(in.Kind, in.Content)
		if err != nil {
			return err
		}
		m.Content = c
	}
	return nil
}
