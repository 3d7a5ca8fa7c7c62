// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package whiteboard

import "encoding/json"

// Page is one whiteboard page. PageID is the page's key under
// whiteboard/pages.
type Page struct {
	PageID    string `json:"pageId"`
	PaperType int    `json:"paperType"`
}

// Metadata is the whiteboard's top-level record.
type Metadata struct {
	Pages        map[string]Page `json:"pages"`
	CanvasWidth  float64         `json:"canvasWidth"`
	CanvasHeight float64         `json:"canvasHeight"`
}

// Drawable is one item on a page: a path stroke when D3 is set, an
// image when ImageURL is set. Key is the item's key under its page.
//
// Fields holds the item's complete stored value, including fields the
// typed ones below do not name (an image's position and size, for
// instance). The typed fields are read from Fields leniently: a value of
// the wrong JSON type leaves the typed field zero and stays in Fields.
// Nested values in Fields are shared with the store and must not be
// modified.
type Drawable struct {
	Key    string
	Fields map[string]any

	Type          string
	IsEraser      bool
	PenType       int
	StrokeColor   string
	StrokeOpacity float64
	StrokeWidth   float64
	D3            string
	ImageURL      string
}

// newDrawable builds a Drawable from a child's stored object.
func newDrawable(key string, value map[string]any) Drawable {
	fields := make(map[string]any, len(value))
	for name, field := range value {
		fields[name] = field
	}
	stringField := func(name string) string {
		text, _ := fields[name].(string)
		return text
	}
	numberField := func(name string) float64 {
		number, _ := fields[name].(float64)
		return number
	}
	isEraser, _ := fields["isEraser"].(bool)
	return Drawable{
		Key:           key,
		Fields:        fields,
		Type:          stringField("type"),
		IsEraser:      isEraser,
		PenType:       int(numberField("penType")),
		StrokeColor:   stringField("strokeColor"),
		StrokeOpacity: numberField("strokeOpacity"),
		StrokeWidth:   numberField("strokeWidth"),
		D3:            stringField("d3"),
		ImageURL:      stringField("imageURL"),
	}
}

// MarshalJSON encodes the complete stored value with the item's key
// under ".key".
func (d Drawable) MarshalJSON() ([]byte, error) {
	record := make(map[string]any, len(d.Fields)+1)
	for name, field := range d.Fields {
		record[name] = field
	}
	record[".key"] = d.Key
	return json.Marshal(record)
}

// IsPath reports whether d is a path stroke.
func (d Drawable) IsPath() bool { return d.D3 != "" }

// IsImage reports whether d is an image.
func (d Drawable) IsImage() bool { return d.ImageURL != "" }
