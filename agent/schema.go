package agent

import (
	"context"
	"fmt"
	"sort"

	"github.com/itsneelabh/actionagent/catalog"
	"github.com/itsneelabh/actionagent/core"
	"github.com/itsneelabh/actionagent/telemetry"
)

// SchemaFetcher builds ActionSchemas from the connector's description of
// an action merged with the local parameter table.
//
// When the catalog has a table for the action it decides required,
// optional and synonym fields; the remote description supplies the
// parameter shape and description. Without a local table the remote
// required list is used and every other property is optional.
type SchemaFetcher struct {
	describer ActionDescriber
	catalog   *catalog.Catalog
	cache     core.SchemaCache
	logger    core.Logger
	metrics   *telemetry.Metrics
}

// NewSchemaFetcher creates a fetcher. cache and metrics may be nil.
func NewSchemaFetcher(describer ActionDescriber, cat *catalog.Catalog, cache core.SchemaCache, logger core.Logger, metrics *telemetry.Metrics) *SchemaFetcher {
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &SchemaFetcher{
		describer: describer,
		catalog:   cat,
		cache:     cache,
		logger:    logger,
		metrics:   metrics,
	}
}

// Fetch returns the schema for actionID as seen by userID
func (f *SchemaFetcher) Fetch(ctx context.Context, actionID, userID string) (*ActionSchema, error) {
	if f.cache != nil {
		var cached ActionSchema
		hit := f.cache.Get(ctx, actionID, userID, &cached)
		f.metrics.ObserveCacheLookup(hit)
		if hit {
			f.logger.DebugWithContext(ctx, "Action schema served from cache", map[string]interface{}{
				"operation": "fetch_schema",
				"action_id": actionID,
				"source":    "cache",
			})
			return &cached, nil
		}
	}

	desc, err := f.describer.DescribeAction(ctx, actionID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w for action %s: %w", core.ErrSchemaUnavailable, actionID, err)
	}

	schema := f.merge(actionID, desc.Description, desc.Properties, desc.Required)

	if f.cache != nil {
		if err := f.cache.Set(ctx, actionID, userID, schema); err != nil {
			f.logger.WarnWithContext(ctx, "Failed to cache action schema", map[string]interface{}{
				"operation": "fetch_schema",
				"action_id": actionID,
				"error":     err.Error(),
			})
		}
	}

	f.logger.DebugWithContext(ctx, "Action schema loaded", map[string]interface{}{
		"operation":       "fetch_schema",
		"action_id":       actionID,
		"required_fields": schema.RequiredFields,
		"parameter_count": len(schema.ParameterNames),
		"source":          "remote",
	})
	return schema, nil
}

func (f *SchemaFetcher) merge(actionID, description string, properties map[string]interface{}, remoteRequired []string) *ActionSchema {
	if description == "" {
		description = actionID
	}
	if properties == nil {
		properties = map[string]interface{}{}
	}

	schema := &ActionSchema{
		ActionID:    actionID,
		Description: description,
		Properties:  properties,
	}

	names := make(map[string]bool, len(properties))
	for name := range properties {
		names[name] = true
	}

	if local, ok := f.catalog.Params(actionID); ok {
		schema.RequiredFields = local.Required
		schema.OptionalFields = local.Optional
		schema.SynonymMap = local.Synonyms
	} else {
		schema.RequiredFields = append([]string(nil), remoteRequired...)
		required := make(map[string]bool, len(remoteRequired))
		for _, r := range remoteRequired {
			required[r] = true
		}
		for name := range properties {
			if !required[name] {
				schema.OptionalFields = append(schema.OptionalFields, name)
			}
		}
		sort.Strings(schema.OptionalFields)
	}

	for _, name := range schema.RequiredFields {
		names[name] = true
	}
	for _, name := range schema.OptionalFields {
		names[name] = true
	}
	schema.ParameterNames = make([]string, 0, len(names))
	for name := range names {
		schema.ParameterNames = append(schema.ParameterNames, name)
	}
	sort.Strings(schema.ParameterNames)

	return schema
}
