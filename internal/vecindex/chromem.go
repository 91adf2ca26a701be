package vecindex

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/verso-app/verso/internal/logging"
)

const collectionName = "messages"

// ChromemIndex implements Index over chromem-go, an embedded pure-Go
// vector database persisted to its own directory. One collection holds
// every message, tagged with its owner in metadata, so retagging a
// message does not have to move it between collections.
type ChromemIndex struct {
	db       *chromem.DB
	embedder *Embedder

	mu  sync.Mutex
	col *chromem.Collection
}

// OpenChromem opens or creates a persistent chromem index at path.
func OpenChromem(path string, embedder *Embedder) (*ChromemIndex, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	idx := &ChromemIndex{db: db, embedder: embedder}
	if _, err := idx.collection(); err != nil {
		return nil, err
	}
	return idx, nil
}

// NewMemoryChromem creates an in-memory index, used by tests.
func NewMemoryChromem(embedder *Embedder) (*ChromemIndex, error) {
	idx := &ChromemIndex{db: chromem.NewDB(), embedder: embedder}
	if _, err := idx.collection(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (x *ChromemIndex) collection() (*chromem.Collection, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.col != nil {
		return x.col, nil
	}
	var embed chromem.EmbeddingFunc
	if x.embedder != nil {
		embed = func(ctx context.Context, text string) ([]float32, error) {
			return x.embedder.Embed(ctx, text)
		}
	}
	col, err := x.db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	x.col = col
	return col, nil
}

// Add stores a message's content under its id, tagged with its owner.
func (x *ChromemIndex) Add(ctx context.Context, ownerID, messageID, content string) error {
	col, err := x.collection()
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:       messageID,
		Content:  content,
		Metadata: map[string]string{"user_id": ownerID},
	}
	if x.embedder != nil {
		emb, err := x.embedder.Embed(ctx, content)
		if err != nil {
			return fmt.Errorf("embed message %s: %w", messageID, err)
		}
		doc.Embedding = emb
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	logging.Debug("vecindex", "indexed message %s for user %s", messageID, ownerID)
	return nil
}

// Query returns the ids of the messages most similar to the query text,
// restricted to one owner.
func (x *ChromemIndex) Query(ctx context.Context, ownerID, query string, limit int) ([]string, error) {
	col, err := x.collection()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if n := col.Count(); n < limit {
		limit = n
	}
	if limit == 0 {
		return nil, nil
	}

	where := map[string]string{"user_id": ownerID}
	results, err := col.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// DeleteMessages removes the entries for the given message ids.
func (x *ChromemIndex) DeleteMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	col, err := x.collection()
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, messageIDs...); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	logging.Debug("vecindex", "deleted %d messages", len(messageIDs))
	return nil
}

// RetagMessages reassigns the owner tag on the given message ids by
// re-adding each document with updated metadata. Ids with no entry are
// skipped.
func (x *ChromemIndex) RetagMessages(ctx context.Context, messageIDs []string, newOwner string) error {
	col, err := x.collection()
	if err != nil {
		return err
	}

	for _, id := range messageIDs {
		doc, err := col.GetByID(ctx, id)
		if err != nil {
			// Never indexed (or already gone); nothing to retag.
			continue
		}
		doc.Metadata = map[string]string{"user_id": newOwner}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("retag document %s: %w", id, err)
		}
	}
	logging.Debug("vecindex", "retagged %d messages to user %s", len(messageIDs), newOwner)
	return nil
}
