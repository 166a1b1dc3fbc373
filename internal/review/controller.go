// Package review implements the approval workflow over ingested news items.
//
// Each item holds a tri-state: unreviewed, approved, or rejected. The initial
// state is unreviewed; a reviewer decision moves it to approved or rejected,
// both terminal. A skip decision leaves the item unchanged so it is offered
// again on the next review pass.
package review

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jiwelabs/threatwatch/internal/observability"
	db "github.com/jiwelabs/threatwatch/internal/storage"
)

// Decision is a reviewer's verdict on one news item.
type Decision string

const (
	DecisionSkip    Decision = "skip"
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

const logKeyItemID = "item_id"

// Entry pairs an item id with the reviewer's decision.
type Entry struct {
	ItemID   string
	Decision Decision
}

// Store is the persistence surface the controller needs.
type Store interface {
	ListUnreviewedNews(ctx context.Context, limit int) ([]db.NewsItem, error)
	SetNewsApproval(ctx context.Context, id string, approved bool) (bool, error)
}

// Surface collects decisions from a reviewer. It must return the full batch
// before any mutation is applied.
type Surface interface {
	Collect(ctx context.Context, items []db.NewsItem) ([]Entry, error)
}

// Result counts the outcomes of one applied batch.
type Result struct {
	Approved  int
	Rejected  int
	Skipped   int
	Unchanged int
	Failed    int
}

// Controller applies reviewer decisions to stored news items.
type Controller struct {
	store  Store
	logger *zerolog.Logger
}

func NewController(store Store, logger *zerolog.Logger) *Controller {
	return &Controller{store: store, logger: logger}
}

// Apply persists every non-skip decision in the batch, each as an independent
// write. A failure on one row is logged and counted without blocking the
// others. Rows already in a terminal state are left untouched and counted as
// unchanged.
func (c *Controller) Apply(ctx context.Context, batch []Entry) Result {
	var result Result

	for _, entry := range batch {
		switch entry.Decision {
		case DecisionSkip:
			result.Skipped++
			observability.ReviewDecisions.WithLabelValues(string(DecisionSkip)).Inc()

			continue
		case DecisionApprove, DecisionReject:
		default:
			c.logger.Warn().
				Str(logKeyItemID, entry.ItemID).
				Str("decision", string(entry.Decision)).
				Msg("Ignoring unknown review decision")
			result.Failed++

			continue
		}

		applied, err := c.store.SetNewsApproval(ctx, entry.ItemID, entry.Decision == DecisionApprove)
		if err != nil {
			result.Failed++
			c.logger.Error().
				Err(err).
				Str(logKeyItemID, entry.ItemID).
				Msg("Failed to apply review decision")

			continue
		}

		if !applied {
			// Missing row or already decided; terminal states stay terminal.
			result.Unchanged++

			continue
		}

		observability.ReviewDecisions.WithLabelValues(string(entry.Decision)).Inc()

		if entry.Decision == DecisionApprove {
			result.Approved++
		} else {
			result.Rejected++
		}
	}

	return result
}

// RunPass offers the current unreviewed items to the surface, then applies
// the collected batch.
func (c *Controller) RunPass(ctx context.Context, surface Surface, limit int) (Result, error) {
	items, err := c.store.ListUnreviewedNews(ctx, limit)
	if err != nil {
		return Result{}, fmt.Errorf("list unreviewed news: %w", err)
	}

	if len(items) == 0 {
		return Result{}, nil
	}

	batch, err := surface.Collect(ctx, items)
	if err != nil {
		return Result{}, fmt.Errorf("collect review decisions: %w", err)
	}

	return c.Apply(ctx, batch), nil
}
