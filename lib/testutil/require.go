// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/whiteboard-relay/lib/stream"
)

// TB is the subset of testing.TB the helpers need.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive reads one value from ch within timeout, or fails the
// test.
//
//	message := testutil.RequireReceive(t, messages, 5*time.Second, "waiting for feed message")
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed without sending a value: %s", formatMessage(msgAndArgs))
		}
		return v
	case <-time.After(timeout): //nolint:realclock test hang prevention
		t.Fatalf("timed out after %v: %s", timeout, formatMessage(msgAndArgs))
	}
	panic("unreachable")
}

// RequireClosed waits for ch to be closed (or receive a value) within
// timeout, or fails the test.
//
//	testutil.RequireClosed(t, session.Done(), 5*time.Second, "session teardown")
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout): //nolint:realclock test hang prevention
		t.Fatalf("timed out after %v waiting for channel close: %s", timeout, formatMessage(msgAndArgs))
	}
}

// RequireNext pulls one value from source within timeout, or fails the
// test if the source errors or stalls.
//
//	pages := testutil.RequireNext(t, retriever.ObservePages(), 5*time.Second, "first pages snapshot")
func RequireNext[T any](t TB, source stream.Source[T], timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout) //nolint:realclock test hang prevention
	defer cancel()
	value, err := source.Next(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("timed out after %v: %s", timeout, formatMessage(msgAndArgs))
		}
		t.Fatalf("Next failed: %v: %s", err, formatMessage(msgAndArgs))
	}
	return value
}

// RequireNextError pulls from source within timeout and returns the
// error it ends with. Fails the test if a value arrives instead.
func RequireNextError[T any](t TB, source stream.Source[T], timeout time.Duration, msgAndArgs ...any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout) //nolint:realclock test hang prevention
	defer cancel()
	value, err := source.Next(ctx)
	if err == nil {
		t.Fatalf("expected an error, got value %+v: %s", value, formatMessage(msgAndArgs))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("timed out after %v waiting for an error: %s", timeout, formatMessage(msgAndArgs))
	}
	return err
}

// RequireNoNext fails the test if source delivers a value or an error
// within window.
func RequireNoNext[T any](t TB, source stream.Source[T], window time.Duration, msgAndArgs ...any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), window) //nolint:realclock bounded negative check
	defer cancel()
	value, err := source.Next(ctx)
	if err == nil {
		t.Fatalf("unexpected value %+v: %s", value, formatMessage(msgAndArgs))
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected error %v: %s", err, formatMessage(msgAndArgs))
	}
}

// formatMessage formats optional message arguments into a string.
// Accepts either a single string or a format string followed by args.
func formatMessage(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return "(no message)"
	}
	if len(msgAndArgs) == 1 {
		if s, ok := msgAndArgs[0].(string); ok {
			return s
		}
		return fmt.Sprintf("%v", msgAndArgs[0])
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprintf("%v", msgAndArgs)
}
