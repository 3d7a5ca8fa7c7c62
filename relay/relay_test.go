// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/whiteboard-relay/lib/codec"
	"github.com/bureau-foundation/whiteboard-relay/lib/testutil"
	"github.com/bureau-foundation/whiteboard-relay/relay"
	"github.com/bureau-foundation/whiteboard-relay/store"
)

const (
	timeout = 5 * time.Second
	header  = "\x00\x01\x02\x03"
)

// recordingIntake captures submitted modifications.
type recordingIntake struct {
	submitted chan store.AttributedModification
}

func newRecordingIntake() *recordingIntake {
	return &recordingIntake{submitted: make(chan store.AttributedModification, 256)}
}

func (r *recordingIntake) Submit(m store.AttributedModification) {
	r.submitted <- m
}

func (r *recordingIntake) assertNone(t *testing.T, context string) {
	t.Helper()
	select {
	case m := <-r.submitted:
		t.Errorf("%s: unexpected submission %s", context, m.Modification)
	default:
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRelay(t *testing.T, feed relay.Feed, intake store.Intake, format relay.Format) *relay.Relay {
	t.Helper()
	r, err := relay.New(relay.Config{
		Feed:       feed,
		Intake:     intake,
		Pattern:    "ns:*",
		HeaderSize: len(header),
		Format:     format,
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("relay.New: %v", err)
	}
	return r
}

func jsonPayload(data string) []byte {
	return []byte(header + `{"data": ` + data + `}`)
}

func TestRelayForwardsOnlyTheFirstChannel(t *testing.T) {
	t.Parallel()
	feed := relay.NewMemoryFeed()
	intake := newRecordingIntake()
	r := newRelay(t, feed, intake, relay.FormatJSON)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	result := make(chan error, 1)
	go func() { result <- r.Run(ctx) }()
	for feed.SubscriberCount() == 0 {
		time.Sleep(time.Millisecond) //nolint:realclock polling for subscription setup
	}

	feed.Publish("ns:s1", jsonPayload(`{"whiteboard/canvasWidth": 1}`))
	feed.Publish("ns:s2", jsonPayload(`{"whiteboard/canvasWidth": 2}`))
	feed.Publish("ns:s1", jsonPayload(`{"whiteboard/canvasWidth": 3}`))
	feed.Publish("other:s1", jsonPayload(`{"whiteboard/canvasWidth": 4}`))

	for _, want := range []string{`{"whiteboard/canvasWidth": 1}`, `{"whiteboard/canvasWidth": 3}`} {
		m := testutil.RequireReceive(t, intake.submitted, timeout, "forwarded modification")
		if m.Source != store.Remote {
			t.Errorf("source: got %v, want remote", m.Source)
		}
		if string(m.Modification) != want {
			t.Errorf("modification: got %s, want %s", m.Modification, want)
		}
	}

	cancel()
	if err := testutil.RequireReceive(t, result, timeout, "Run exit"); err != nil {
		t.Errorf("Run: got %v, want nil after cancel", err)
	}
	intake.assertNone(t, "after cancel")

	stats := r.Stats()
	if stats.Channel != "ns:s1" || stats.Forwarded != 2 || stats.Mismatched != 1 || stats.DecodeFaults != 0 {
		t.Errorf("stats: got %+v, want channel ns:s1, 2 forwarded, 1 mismatched", stats)
	}
}

func TestRelayLatchRaceHasOneWinner(t *testing.T) {
	t.Parallel()
	intake := newRecordingIntake()
	r := newRelay(t, relay.NewMemoryFeed(), intake, relay.FormatJSON)

	const channels, perChannel = 8, 10
	var start, wait sync.WaitGroup
	start.Add(1)
	for c := 0; c < channels; c++ {
		wait.Add(1)
		go func(channel string) {
			defer wait.Done()
			start.Wait()
			for i := 0; i < perChannel; i++ {
				r.Handle(relay.Message{Channel: channel, Payload: jsonPayload(fmt.Sprintf(`{"c": %q}`, channel))})
			}
		}(fmt.Sprintf("ns:s%d", c))
	}
	start.Done()
	wait.Wait()

	winner := r.Channel()
	if winner == "" {
		t.Fatal("no channel latched")
	}
	stats := r.Stats()
	if stats.Forwarded != perChannel {
		t.Errorf("forwarded: got %d, want %d", stats.Forwarded, perChannel)
	}
	if stats.Mismatched != (channels-1)*perChannel {
		t.Errorf("mismatched: got %d, want %d", stats.Mismatched, (channels-1)*perChannel)
	}
	want := fmt.Sprintf(`{"c": %q}`, winner)
	for i := 0; i < perChannel; i++ {
		m := testutil.RequireReceive(t, intake.submitted, timeout, "submission %d", i)
		if string(m.Modification) != want {
			t.Errorf("submission %d: got %s, want %s", i, m.Modification, want)
		}
	}
}

func TestRelayContinuesAfterDecodeFault(t *testing.T) {
	t.Parallel()
	intake := newRecordingIntake()
	r := newRelay(t, relay.NewMemoryFeed(), intake, relay.FormatJSON)

	r.Handle(relay.Message{Channel: "ns:s1", Payload: []byte(header + "not json")})
	r.Handle(relay.Message{Channel: "ns:s1", Payload: []byte("\x00")})
	r.Handle(relay.Message{Channel: "ns:s1", Payload: jsonPayload(`"hello"`)})
	r.Handle(relay.Message{Channel: "ns:s1", Payload: jsonPayload(`{"a": 1}`)})

	m := testutil.RequireReceive(t, intake.submitted, timeout, "modification after faults")
	if string(m.Modification) != `{"a": 1}` {
		t.Errorf("modification: got %s, want %s", m.Modification, `{"a": 1}`)
	}
	stats := r.Stats()
	if stats.Channel != "ns:s1" || stats.DecodeFaults != 3 || stats.Forwarded != 1 {
		t.Errorf("stats: got %+v, want channel ns:s1, 3 decode faults, 1 forwarded", stats)
	}
}

func TestRelayRunFailsWhenSubscribeFails(t *testing.T) {
	t.Parallel()
	r, err := relay.New(relay.Config{
		Feed:    relay.NewMemoryFeed(),
		Intake:  newRecordingIntake(),
		Pattern: "ns:[",
		Logger:  discardLogger(),
	})
	if err != nil {
		t.Fatalf("relay.New: %v", err)
	}
	if err := r.Run(context.Background()); err == nil {
		t.Error("Run with a malformed pattern: got nil, want error")
	}
}

func TestRelayRunReportsClosedFeed(t *testing.T) {
	t.Parallel()
	feed := relay.NewMemoryFeed()
	r := newRelay(t, feed, newRecordingIntake(), relay.FormatJSON)

	result := make(chan error, 1)
	go func() { result <- r.Run(context.Background()) }()
	for feed.SubscriberCount() == 0 {
		time.Sleep(time.Millisecond) //nolint:realclock polling for subscription setup
	}
	feed.Close()

	if err := testutil.RequireReceive(t, result, timeout, "Run exit"); !errors.Is(err, relay.ErrFeedClosed) {
		t.Errorf("Run: got %v, want ErrFeedClosed", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()
	feed := relay.NewMemoryFeed()
	intake := newRecordingIntake()
	tests := []struct {
		name   string
		config relay.Config
	}{
		{name: "no feed", config: relay.Config{Intake: intake, Pattern: "ns:*"}},
		{name: "no intake", config: relay.Config{Feed: feed, Pattern: "ns:*"}},
		{name: "no pattern", config: relay.Config{Feed: feed, Intake: intake}},
		{name: "negative header", config: relay.Config{Feed: feed, Intake: intake, Pattern: "ns:*", HeaderSize: -1}},
		{name: "unknown format", config: relay.Config{Feed: feed, Intake: intake, Pattern: "ns:*", Format: "xml"}},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if _, err := relay.New(test.config); err == nil {
				t.Error("got nil error, want error")
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	t.Parallel()
	cborEnvelope := func(data any) []byte {
		encoded, err := codec.Marshal(map[string]any{"data": data})
		if err != nil {
			t.Fatalf("codec.Marshal: %v", err)
		}
		return append([]byte(header), encoded...)
	}

	tests := []struct {
		name    string
		payload []byte
		format  relay.Format
		want    string
		wantErr error
	}{
		{name: "json object", payload: jsonPayload(`{"a/b": 1}`), format: relay.FormatJSON, want: `{"a/b": 1}`},
		{name: "json string", payload: jsonPayload(`"{\"a\": null}"`), format: relay.FormatJSON, want: `{"a": null}`},
		{name: "json null data", payload: jsonPayload(`null`), format: relay.FormatJSON, wantErr: relay.ErrMissingData},
		{name: "json string not json", payload: jsonPayload(`"hello"`), format: relay.FormatJSON, wantErr: relay.ErrInvalidData},
		{name: "json no data", payload: []byte(header + `{"other": 1}`), format: relay.FormatJSON, wantErr: relay.ErrMissingData},
		{name: "short", payload: []byte("\x00\x01"), format: relay.FormatJSON, wantErr: relay.ErrShortPayload},
		{name: "cbor object", payload: cborEnvelope(map[string]any{"a": 1}), format: relay.FormatCBOR, want: `{"a":1}`},
		{name: "cbor string", payload: cborEnvelope(`{"a":2}`), format: relay.FormatCBOR, want: `{"a":2}`},
		{name: "cbor string not json", payload: cborEnvelope("hello"), format: relay.FormatCBOR, wantErr: relay.ErrInvalidData},
		{name: "cbor null data", payload: cborEnvelope(nil), format: relay.FormatCBOR, wantErr: relay.ErrMissingData},
		{name: "cbor no data", payload: append([]byte(header), 0xa0), format: relay.FormatCBOR, wantErr: relay.ErrMissingData},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got, err := relay.DecodePayload(test.payload, len(header), test.format)
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Errorf("got %v, want %v", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodePayload: %v", err)
			}
			if string(got) != test.want {
				t.Errorf("got %s, want %s", got, test.want)
			}
		})
	}
}

func TestRelayIntoTree(t *testing.T) {
	t.Parallel()
	tree := store.NewTree(discardLogger())
	r := newRelay(t, relay.NewMemoryFeed(), tree, relay.FormatJSON)

	changes := tree.Reference("whiteboard/pages").Changes(store.Events(store.ChildAdded))
	defer changes.Close()
	testutil.RequireNoNext(t, changes, 20*time.Millisecond, "empty pages")

	r.Handle(relay.Message{Channel: "ns:s1", Payload: jsonPayload(`{"whiteboard/pages/p7": {"paperType": 2}}`)})

	event := testutil.RequireNext(t, changes, timeout, "page added")
	if event.Value.Key() != "p7" || event.Source != store.Remote {
		t.Errorf("event: got %q from %v, want p7 from remote", event.Value.Key(), event.Source)
	}
}
