// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"

	"github.com/bureau-foundation/whiteboard-relay/lib/stream"
	"github.com/bureau-foundation/whiteboard-relay/server"
	"github.com/bureau-foundation/whiteboard-relay/session"
	"github.com/bureau-foundation/whiteboard-relay/whiteboard"
)

// pagesActionType tags the action carrying the accumulated page list.
const pagesActionType = "pages"

// pageFeed subscribes every new session to the page projection. The
// session releases the subscription itself on teardown.
type pageFeed struct {
	server.NopHooks

	retriever   *whiteboard.Retriever
	logger      *slog.Logger
	onListening func(address string)
}

func (f *pageFeed) ServerOpened(address string) {
	f.logger.Info("accepting whiteboard clients", "address", address)
	if f.onListening != nil {
		f.onListening(address)
	}
}

func (f *pageFeed) SessionAdded(s *session.Session) {
	s.Subscribe(pagesActions(f.retriever.ObservePages()))
}

func pagesActions(pages stream.Source[[]whiteboard.Page]) stream.Source[session.Action] {
	return stream.Map(pages, func(list []whiteboard.Page) (session.Action, error) {
		return session.Action{Type: pagesActionType, Payload: list}, nil
	})
}
