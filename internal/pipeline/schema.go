package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"hoppscotch-backup/internal/graphql"
	"hoppscotch-backup/internal/logger"

	"go.uber.org/zap"
)

// SchemaFileName is where explore-schema persists the introspection
// result, relative to the repository path.
const SchemaFileName = "hoppscotch-schema.json"

// SchemaExplorer is a diagnostic entry point: it fetches the GraphQL
// schema, writes it to a file and summarizes the available top-level
// query operations for the operator.
type SchemaExplorer struct {
	client         *graphql.Client
	repositoryPath string
}

// NewSchemaExplorer creates a SchemaExplorer.
func NewSchemaExplorer(client *graphql.Client, repositoryPath string) *SchemaExplorer {
	return &SchemaExplorer{client: client, repositoryPath: repositoryPath}
}

// Explore runs the introspection query once.
func (s *SchemaExplorer) Explore(ctx context.Context) error {
	resp, err := s.client.Do(ctx, graphql.OpIntrospection, graphql.QueryIntrospection, nil)
	if err != nil {
		return fmt.Errorf("schema introspection failed: %w", err)
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("schema introspection returned GraphQL errors: %s", resp.ErrorMessages())
	}
	if !resp.HasData() {
		return fmt.Errorf("schema introspection returned no data")
	}

	schemaPath := filepath.Join(s.repositoryPath, SchemaFileName)
	pretty, err := prettySchema(resp.Data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(schemaPath, pretty, 0o644); err != nil {
		return fmt.Errorf("failed to write schema to %s: %w", schemaPath, err)
	}
	logger.Log.Info("Persisted GraphQL schema", zap.String("path", schemaPath))

	var data graphql.IntrospectionData
	if err := resp.DecodeData(&data); err != nil {
		return fmt.Errorf("failed to decode introspection result: %w", err)
	}
	s.summarize(data.Schema)
	return nil
}

func prettySchema(raw json.RawMessage) ([]byte, error) {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("introspection data is not valid JSON: %w", err)
	}
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to format schema: %w", err)
	}
	return append(out, '\n'), nil
}

// summarize logs each top-level query operation with its argument
// types in SDL notation.
func (s *SchemaExplorer) summarize(schema graphql.IntrospectionSchema) {
	if schema.QueryType == nil {
		logger.Log.Warn("Schema has no query type")
		return
	}

	for _, t := range schema.Types {
		if t.Name != schema.QueryType.Name {
			continue
		}
		logger.Log.Info("Top-level query operations", zap.Int("count", len(t.Fields)))
		for _, field := range t.Fields {
			args := make([]string, 0, len(field.Args))
			for _, arg := range field.Args {
				args = append(args, arg.Name+": "+arg.Type.String())
			}
			logger.Log.Info("Query operation",
				zap.String("name", field.Name),
				zap.Strings("args", args),
				zap.String("returns", field.Type.String()),
			)
		}
		return
	}
	logger.Log.Warn("Query type not found in schema types", zap.String("queryType", schema.QueryType.Name))
}
