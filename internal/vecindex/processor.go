package vecindex

import (
	"context"

	"github.com/verso-app/verso/internal/logging"
)

// Processor drains the outbox against the index. It runs as the second,
// uncoordinated phase of deletion and claim: if the process dies between
// the relational commit and a drain, the rows are still there next run.
type Processor struct {
	queue       *Queue
	index       Index
	maxAttempts int
}

// NewProcessor creates a processor. maxAttempts <= 0 means 5.
func NewProcessor(queue *Queue, index Index, maxAttempts int) *Processor {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Processor{queue: queue, index: index, maxAttempts: maxAttempts}
}

// Drain applies every pending operation once, settling each row as done
// or recording the failure for a later retry. It returns the number of
// operations applied.
func (p *Processor) Drain(ctx context.Context) (int, error) {
	ops, err := p.queue.Pending(0)
	if err != nil {
		return 0, err
	}
	if len(ops) == 0 {
		return 0, nil
	}

	applied := 0
	for _, op := range ops {
		if ctx.Err() != nil {
			return applied, ctx.Err()
		}

		var opErr error
		switch op.Action {
		case ActionDelete:
			opErr = p.index.DeleteMessages(ctx, []string{op.MessageID})
		case ActionRetag:
			opErr = p.index.RetagMessages(ctx, []string{op.MessageID}, op.NewOwner)
		default:
			// Unknown action: settle it so it cannot wedge the queue.
			logging.Info("vecindex", "dropping outbox op %d with unknown action %q", op.ID, op.Action)
			p.queue.MarkDone(op.ID)
			continue
		}

		if opErr != nil {
			logging.Info("vecindex", "op %d (%s %s) failed attempt %d: %v",
				op.ID, op.Action, op.MessageID, op.Attempts+1, opErr)
			if err := p.queue.RecordFailure(op.ID, op.Attempts+1, p.maxAttempts, opErr); err != nil {
				return applied, err
			}
			continue
		}

		if err := p.queue.MarkDone(op.ID); err != nil {
			return applied, err
		}
		applied++
	}

	logging.Debug("vecindex", "drained %d/%d outbox ops", applied, len(ops))
	return applied, nil
}
