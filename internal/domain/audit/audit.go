// Package audit defines the change log written for every document mutation.
package audit

import (
	"context"
	"fmt"
	"reflect"

	"procura/internal/core/id"
)

// Action names the audited operation.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionSubmit    Action = "submit"
	ActionApprove   Action = "approve"
	ActionReview    Action = "review"
	ActionReject    Action = "reject"
	ActionSplit     Action = "split"
	ActionDuplicate Action = "duplicate"
)

// Entry is one audit record.
type Entry struct {
	EntityType string
	EntityID   id.ID
	Action     Action
	Changes    map[string]any
	Metadata   map[string]any
}

// Recorder persists audit entries in the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, entry Entry) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, entry Entry) error {
	return f(ctx, entry)
}

// Nop discards entries.
var Nop Recorder = RecorderFunc(func(context.Context, Entry) error { return nil })

// Diff returns {field: {old, new}} for every field that differs between the two states.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)

	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists || !reflect.DeepEqual(normalize(oldVal), normalize(newVal)) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}
	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}
	return changes
}

// normalize makes Stringers (decimals, ids) compare by value.
func normalize(v any) any {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return v
}
