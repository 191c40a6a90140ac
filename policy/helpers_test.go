package policy_test

import (
	"fmt"
	"time"

	"github.com/pithecene-io/stitch/types"
)

var testTs = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func event(kind types.EventKind, i int) *types.Event {
	return &types.Event{
		Kind:      kind,
		MessageID: fmt.Sprintf("m-%d", i),
		Ts:        testTs,
	}
}

func archived(i int, size int) *types.ArchivedMessage {
	return &types.ArchivedMessage{
		MessageID:  fmt.Sprintf("m-%d", i),
		OriginalID: fmt.Sprintf("o-%d", i),
		Type:       types.MessageTypeParameterDelta,
		Size:       size,
		Data:       make([]byte, size),
		Ts:         testTs,
	}
}
