// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bureau-foundation/whiteboard-relay/lib/testutil"
	"github.com/bureau-foundation/whiteboard-relay/relay"
	"github.com/bureau-foundation/whiteboard-relay/store"
)

// TestRedisFeedEndToEnd needs a reachable server named by REDIS_URL.
func TestRedisFeedEndToEnd(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	feed, err := relay.NewRedisFeed(ctx, url, discardLogger())
	if err != nil {
		t.Fatalf("NewRedisFeed: %v", err)
	}
	defer feed.Close()

	namespace := testutil.UniqueID("relaytest")
	intake := newRecordingIntake()
	r, err := relay.New(relay.Config{
		Feed:       feed,
		Intake:     intake,
		Pattern:    namespace + ":s*",
		HeaderSize: len(header),
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("relay.New: %v", err)
	}

	messages, err := feed.Subscribe(ctx, namespace+":*")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	go r.Run(ctx)

	// The direct subscription confirms delivery is flowing before the
	// relay's own messages are checked.
	if err := feed.Publish(ctx, namespace+":probe", []byte("probe")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	probe := testutil.RequireReceive(t, messages, timeout, "probe message")
	if probe.Channel != namespace+":probe" || string(probe.Payload) != "probe" {
		t.Errorf("probe: got %+v", probe)
	}

	// Run subscribes asynchronously and Redis drops messages published
	// before a subscription exists, so publish until one arrives.
	var m store.AttributedModification
	for received := false; !received; {
		if err := feed.Publish(ctx, namespace+":s1", jsonPayload(`{"a": 1}`)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		select {
		case m = <-intake.submitted:
			received = true
		case <-time.After(50 * time.Millisecond): //nolint:realclock retry interval
		case <-ctx.Done():
			t.Fatal("timed out waiting for relayed modification")
		}
	}
	if m.Source != store.Remote || string(m.Modification) != `{"a": 1}` {
		t.Errorf("relayed: got %v %s, want remote {\"a\": 1}", m.Source, m.Modification)
	}
}
