// Package stream produces lazy, restartable message sequences from a DAO
// for a single chat (spec §4.2). Sources never eagerly materialize a whole
// chat: they rebatch from the DAO on demand and stop as soon as a
// consumer stops pulling.
package stream

import (
	"context"
	"iter"

	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/storage"
)

// DefaultBatchSize is the batch size used when none is configured,
// matching spec §4.2.
const DefaultBatchSize = 1000

// Source is a lazy message stream over one chat of one DAO.
type Source struct {
	dao       storage.DAO
	chat      storage.ChatRef
	batchSize int
}

// New creates a Source. batchSize <= 0 falls back to DefaultBatchSize.
func New(dao storage.DAO, chat storage.ChatRef, batchSize int) *Source {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Source{dao: dao, chat: chat, batchSize: batchSize}
}

// Batches iterates whole batches from the beginning of the chat, as
// returned by the DAO (bulk-copy friendly: no flattening).
func (s *Source) Batches(ctx context.Context) iter.Seq2[[]model.Message, error] {
	return func(yield func([]model.Message, error) bool) {
		if ctx.Err() != nil {
			yield(nil, ctx.Err())
			return
		}
		first, err := s.dao.ScrollMessages(ctx, s.chat, 0, s.batchSize)
		if err != nil {
			yield(nil, err)
			return
		}
		if len(first) == 0 {
			return
		}
		if !yield(first, nil) {
			return
		}
		if len(first) < s.batchSize {
			return
		}
		s.drainFrom(ctx, first[len(first)-1], yield)
	}
}

// BatchesFrom iterates whole batches starting immediately after anchor
// (exclusive of anchor itself).
func (s *Source) BatchesFrom(ctx context.Context, anchor model.Message) iter.Seq2[[]model.Message, error] {
	return func(yield func([]model.Message, error) bool) {
		if ctx.Err() != nil {
			yield(nil, ctx.Err())
			return
		}
		s.drainFrom(ctx, anchor, yield)
	}
}

// drainFrom repeatedly fetches messages_after(anchor, batchSize+1).drop(1)
// until a short batch terminates the stream, per spec §4.2.
func (s *Source) drainFrom(ctx context.Context, anchor model.Message, yield func([]model.Message, error) bool) {
	cur := anchor
	for {
		if ctx.Err() != nil {
			yield(nil, ctx.Err())
			return
		}
		withAnchor, err := s.dao.MessagesAfter(ctx, s.chat, cur, s.batchSize+1)
		if err != nil {
			yield(nil, err)
			return
		}
		if len(withAnchor) == 0 {
			return
		}
		batch := withAnchor[1:] // drop the anchor itself
		if len(batch) == 0 {
			return
		}
		if !yield(batch, nil) {
			return
		}
		if len(batch) < s.batchSize {
			return
		}
		cur = batch[len(batch)-1]
	}
}

// Messages flattens Batches into a per-message sequence.
func (s *Source) Messages(ctx context.Context) iter.Seq2[model.Message, error] {
	return flatten(s.Batches(ctx))
}

// MessagesFrom flattens BatchesFrom into a per-message sequence.
func (s *Source) MessagesFrom(ctx context.Context, anchor model.Message) iter.Seq2[model.Message, error] {
	return flatten(s.BatchesFrom(ctx, anchor))
}

func flatten(batches iter.Seq2[[]model.Message, error]) iter.Seq2[model.Message, error] {
	return func(yield func(model.Message, error) bool) {
		for batch, err := range batches {
			if err != nil {
				yield(model.Message{}, err)
				return
			}
			for _, m := range batch {
				if !yield(m, nil) {
					return
				}
			}
		}
	}
}
