// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package whiteboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/whiteboard-relay/lib/stream"
	"github.com/bureau-foundation/whiteboard-relay/store"
)

// Store paths.
const (
	MetadataPath  = "whiteboard"
	PagesPath     = "whiteboard/pages"
	DrawablesRoot = "drawablesData"
)

var (
	// ErrMalformed wraps decode failures of store values.
	ErrMalformed = errors.New("whiteboard: malformed value")

	// ErrNotFound is returned by GetMetadata when no whiteboard exists.
	ErrNotFound = errors.New("whiteboard: not found")
)

// Database is the part of the store a Retriever reads.
type Database interface {
	Reference(path string) store.Reference
}

// Retriever builds whiteboard views over a Database. It holds no state
// of its own; every call reads or subscribes afresh.
type Retriever struct {
	database Database
}

// NewRetriever returns a Retriever reading from database.
func NewRetriever(database Database) *Retriever {
	return &Retriever{database: database}
}

// GetMetadata reads the whiteboard record.
func (r *Retriever) GetMetadata(ctx context.Context) (Metadata, error) {
	snapshot, err := r.database.Reference(MetadataPath).Value(ctx)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading %s: %w", MetadataPath, err)
	}
	if !snapshot.Exists() {
		return Metadata{}, ErrNotFound
	}
	var metadata Metadata
	if err := snapshot.Decode(&metadata); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for key, page := range metadata.Pages {
		page.PageID = key
		metadata.Pages[key] = page
	}
	return metadata, nil
}

// ObserveDrawables streams the drawables of page pageID as they are
// added or changed. Children with neither d3 nor imageURL are skipped.
func (r *Retriever) ObserveDrawables(pageID string) stream.Source[Drawable] {
	reference := r.database.Reference(DrawablesRoot + "/" + pageID)
	if pageID == "" || reference.Key() != pageID {
		return stream.Fail[Drawable](fmt.Errorf("%w: page id %q", store.ErrInvalidPath, pageID))
	}

	changes := reference.Changes(store.Events(store.ChildAdded, store.ChildChanged))
	drawables := stream.Filter(changes, func(event store.ChangeEvent) bool {
		return event.Value.HasChild("d3") || event.Value.HasChild("imageURL")
	})
	return stream.Map(drawables, func(event store.ChangeEvent) (Drawable, error) {
		value, ok := event.Value.Value().(map[string]any)
		if !ok {
			return Drawable{}, fmt.Errorf("%w: drawable %q on page %q is not an object", ErrMalformed, event.Value.Key(), pageID)
		}
		return newDrawable(event.Value.Key(), value), nil
	})
}

// ObservePages streams the list of pages in arrival order, emitting
// the whole list each time a page is added. Emitted slices are never
// modified afterwards.
func (r *Retriever) ObservePages() stream.Source[[]Page] {
	changes := r.database.Reference(PagesPath).Changes(store.Events(store.ChildAdded))
	return stream.Scan(changes, []Page{}, func(pages []Page, event store.ChangeEvent) ([]Page, error) {
		var page Page
		if err := event.Value.Decode(&page); err != nil {
			return nil, fmt.Errorf("%w: page %q: %v", ErrMalformed, event.Value.Key(), err)
		}
		page.PageID = event.Value.Key()

		next := make([]Page, len(pages), len(pages)+1)
		copy(next, pages)
		return append(next, page), nil
	})
}
