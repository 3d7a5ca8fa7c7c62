// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package whiteboard derives typed views of a whiteboard from store
// change streams.
//
// The whiteboard lives under three store paths:
//
//	whiteboard                 metadata: pages, canvasWidth, canvasHeight
//	whiteboard/pages/<pageId>  one Page per child
//	drawablesData/<pageId>/<k> one Drawable per child
//
// [Retriever.GetMetadata] reads metadata once. [Retriever.ObserveDrawables]
// streams the drawables of one page as they are added or changed,
// skipping children that are neither a path stroke (d3) nor an image
// (imageURL). [Retriever.ObservePages] streams the growing list of
// pages, emitting the whole list after each addition. Pages are only
// ever appended; a removed page stays in the list.
//
// A [Drawable] carries the child's complete value in Fields, so fields
// the typed accessors do not name still reach the renderer. A page or
// metadata value that cannot be decoded, or a drawable that is not an
// object, ends that stream with an error wrapping [ErrMalformed].
// Other streams are unaffected.
package whiteboard
