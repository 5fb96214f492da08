package agent

import (
	"context"

	"github.com/itsneelabh/actionagent/catalog"
	"github.com/itsneelabh/actionagent/core"
)

// Executor runs an action through the connector with normalised parameters
type Executor struct {
	runner  ActionRunner
	catalog *catalog.Catalog
	logger  core.Logger
}

// NewExecutor creates an executor
func NewExecutor(runner ActionRunner, cat *catalog.Catalog, logger core.Logger) *Executor {
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Executor{runner: runner, catalog: cat, logger: logger}
}

// Execute remaps params through the action's synonyms, checks the local
// required fields and runs the action. The connector's result is returned
// untouched. Failures are classified with ClassifyExecutionError.
func (e *Executor) Execute(ctx context.Context, userID, actionID string, params map[string]interface{}) (map[string]interface{}, error) {
	if local, ok := e.catalog.Params(actionID); ok {
		params = RemapParameters(local.Synonyms, params)
		if err := ValidateRequired(local.Required, params); err != nil {
			return nil, err
		}
	}

	result, err := e.runner.ExecuteAction(ctx, userID, actionID, params)
	if err != nil {
		classified := ClassifyExecutionError(actionID, err)
		e.logger.ErrorWithContext(ctx, "Action execution failed", map[string]interface{}{
			"operation":  "execute_action",
			"action_id":  actionID,
			"error":      err.Error(),
			"error_type": errorKind(classified),
		})
		return nil, classified
	}

	e.logger.InfoWithContext(ctx, "Action executed", map[string]interface{}{
		"operation":   "execute_action",
		"action_id":   actionID,
		"param_count": len(params),
	})
	return result, nil
}

func errorKind(err error) string {
	if ee, ok := err.(*ExecutionError); ok {
		switch ee.Kind {
		case core.ErrRecipientInvalid:
			return "recipient"
		case core.ErrAuthenticationRequired:
			return "authentication"
		}
		return "execution"
	}
	return "other"
}
