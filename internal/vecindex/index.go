// Package vecindex is the boundary to the vector embedding index. The
// index is a separate, independently-available store: relational
// transactions never block on it. Instead, mutations that obligate index
// cleanup enqueue durable outbox rows in the same relational transaction,
// and a processor drains them afterwards with retry.
package vecindex

import "context"

// Index is the contract this core holds the vector store to. Its own
// storage format is out of scope; only these lifecycle obligations are.
type Index interface {
	// Add stores a message's content under its id, tagged with its owner.
	Add(ctx context.Context, ownerID, messageID, content string) error

	// DeleteMessages removes the entries for the given message ids.
	// Missing ids are not an error.
	DeleteMessages(ctx context.Context, messageIDs []string) error

	// RetagMessages reassigns the owner tag on the given message ids.
	// Missing ids are skipped.
	RetagMessages(ctx context.Context, messageIDs []string, newOwner string) error
}

// Action names the pending index operation an outbox row carries.
type Action string

const (
	ActionDelete Action = "delete"
	ActionRetag  Action = "retag"
)
