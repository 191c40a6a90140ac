package dispatch

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/pithecene-io/stitch/adapter"
	"github.com/pithecene-io/stitch/types"
)

// Archiver persists reassembled messages.
type Archiver interface {
	Archive(ctx context.Context, msg *types.ArchivedMessage) error
}

// NotifyHandler publishes a MessageReassembledEvent for every message.
func NotifyHandler(a adapter.Adapter, nodeID, cluster string) Handler {
	return HandlerFunc(func(ctx context.Context, msg *Message) error {
		ev := adapter.NewMessageReassembledEvent(
			nodeID, msg.MessageID, msg.OriginalID, string(msg.Type), len(msg.Data), receivedAt(msg),
		)
		ev.Cluster = cluster
		return a.Publish(ctx, ev)
	})
}

// ArchiveHandler writes the full reassembled bytes to the archiver.
func ArchiveHandler(archiver Archiver) Handler {
	return HandlerFunc(func(ctx context.Context, msg *Message) error {
		return archiver.Archive(ctx, &types.ArchivedMessage{
			MessageID:  msg.MessageID,
			OriginalID: msg.OriginalID,
			Type:       msg.Type,
			Size:       len(msg.Data),
			Data:       msg.Data,
			Ts:         receivedAt(msg),
		})
	})
}

// Chain runs every handler in order, even after a failure, and combines
// their errors. Nil handlers are skipped.
func Chain(handlers ...Handler) Handler {
	return HandlerFunc(func(ctx context.Context, msg *Message) error {
		var err error
		for _, h := range handlers {
			if h != nil {
				err = multierr.Append(err, h.Handle(ctx, msg))
			}
		}
		return err
	})
}

func receivedAt(msg *Message) time.Time {
	if msg.ReceivedAt.IsZero() {
		return time.Now()
	}
	return msg.ReceivedAt
}
