package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/itsneelabh/actionagent/catalog"
	"github.com/itsneelabh/actionagent/core"
)

// keywordWeight is the score of one word of a matched keyword phrase
const keywordWeight = 10

// Resolver maps (app, instruction) to an action id. Local keyword scoring
// is tried first; the connector's action search is the fallback.
type Resolver struct {
	catalog  *catalog.Catalog
	searcher ActionSearcher
	logger   core.Logger
}

// NewResolver creates a resolver. searcher may be nil to disable the
// remote fallback.
func NewResolver(cat *catalog.Catalog, searcher ActionSearcher, logger core.Logger) *Resolver {
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Resolver{catalog: cat, searcher: searcher, logger: logger}
}

// ScoreActions scores each candidate by summing words(phrase)*10 over the
// keyword phrases contained in the instruction (case-insensitive), and
// returns the best. Ties keep the earlier candidate. A zero score means no
// match.
func ScoreActions(actions []catalog.KeywordAction, instruction string) (string, int) {
	text := strings.ToLower(instruction)
	best, bestScore := "", 0

	for _, a := range actions {
		score := 0
		for _, kw := range a.Keywords {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				score += len(strings.Fields(kw)) * keywordWeight
			}
		}
		if score > bestScore {
			best, bestScore = a.ActionID, score
		}
	}
	return best, bestScore
}

// Resolve returns the canonical action id for the instruction
func (r *Resolver) Resolve(ctx context.Context, app, instruction string) (string, error) {
	appName := r.catalog.AppName(app)

	if actionID, score := ScoreActions(r.catalog.Actions(appName), instruction); score > 0 {
		r.logger.DebugWithContext(ctx, "Action resolved from keyword table", map[string]interface{}{
			"operation": "resolve_action",
			"app":       appName,
			"action_id": actionID,
			"score":     score,
			"source":    "local",
		})
		return actionID, nil
	}

	if r.searcher == nil {
		return "", notFound(instruction, nil)
	}

	r.logger.DebugWithContext(ctx, "No keyword match, searching connector actions", map[string]interface{}{
		"operation":   "resolve_action",
		"app":         appName,
		"instruction": core.TruncateForLog(instruction, core.InstructionLogLimit),
	})

	items, err := r.searcher.SearchActions(ctx, instruction, appName)
	if err != nil {
		r.logger.WarnWithContext(ctx, "Remote action search failed", map[string]interface{}{
			"operation": "resolve_action",
			"app":       appName,
			"error":     err.Error(),
		})
		return "", notFound(instruction, err)
	}
	if len(items) > 0 {
		if name := strings.TrimSpace(items[0].Name); name != "" {
			actionID := strings.ToUpper(name)
			r.logger.DebugWithContext(ctx, "Action resolved from connector search", map[string]interface{}{
				"operation": "resolve_action",
				"app":       appName,
				"action_id": actionID,
				"source":    "remote",
			})
			return actionID, nil
		}
	}
	return "", notFound(instruction, nil)
}

func notFound(instruction string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w for: %s: %w", core.ErrActionNotFound, instruction, cause)
	}
	return fmt.Errorf("%w for: %s", core.ErrActionNotFound, instruction)
}
