package repositories

import (
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"styx-chat/domain/chat"
)

// BlugeSearchIndex is a full-text index over message content, scoped per
// room. Documents are keyed by message id so reindexing the same message
// is an upsert and room deletion can purge by id list.
type BlugeSearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewBlugeSearchIndex(writer *bluge.Writer, log *slog.Logger) *BlugeSearchIndex {
	return &BlugeSearchIndex{writer: writer, log: log}
}

func (s *BlugeSearchIndex) Index(message chat.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField("room", message.RoomID).StoreValue()).
		AddField(bluge.NewKeywordField("sender", message.SenderID)).
		AddField(bluge.NewTextField("content", message.Content))
	return s.writer.Update(doc.ID(), doc)
}

func (s *BlugeSearchIndex) Remove(ids []uuid.UUID) error {
	batch := bluge.NewBatch()
	for _, id := range ids {
		batch.Delete(bluge.Identifier(id.String()))
	}
	return s.writer.Batch(batch)
}

// Search returns the ids of the best matching messages in a room, most
// relevant first.
func (s *BlugeSearchIndex) Search(ctx context.Context, roomID, query string, limit int) ([]uuid.UUID, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("content")).
		AddMust(bluge.NewTermQuery(roomID).SetField("room"))
	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, err := uuid.Parse(string(value)); err == nil {
					ids = append(ids, id)
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}
