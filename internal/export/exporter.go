package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hoppscotch-backup/internal/graphql"
	"hoppscotch-backup/internal/logger"
	"hoppscotch-backup/internal/model"

	"go.uber.org/zap"
)

// ErrNoTeamFound is returned when no team id is configured and the
// account's team list is empty.
var ErrNoTeamFound = errors.New("no team found for this account")

// Error is a fatal export failure with the step it occurred in.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string { return "export failed during " + e.Step + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Events receives per-file notifications during an export. Aggregate
// failures abort the run; per-collection failures only produce a
// FileSkipped notification.
type Events interface {
	FileWritten(path string)
	FileSkipped(name string, reason error)
}

// Exporter resolves the target team, runs the bulk export query and
// writes the result to the run's backup directory.
type Exporter struct {
	client        *graphql.Client
	teamID        string
	workspaceName string
	events        Events
}

// NewExporter creates an Exporter. teamID may be empty, in which case
// the first team returned by the API is used. The API documents no
// ordering for that list, so accounts with several teams should pin
// team_id in the configuration.
func NewExporter(client *graphql.Client, teamID, workspaceName string, events Events) *Exporter {
	return &Exporter{
		client:        client,
		teamID:        teamID,
		workspaceName: workspaceName,
		events:        events,
	}
}

// Export performs the export pipeline stage: team resolution, bulk
// export, aggregate write, and best-effort per-collection writes. On
// success run.TeamID and run.ExportedFiles are populated.
func (e *Exporter) Export(ctx context.Context, run *model.ExportRun) error {
	teamID, err := e.resolveTeam(ctx)
	if err != nil {
		return err
	}
	run.TeamID = teamID

	payload, err := e.fetchExport(ctx, teamID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(run.BackupDirectory, 0o755); err != nil {
		return &Error{Step: "directory creation", Err: fmt.Errorf("failed to create backup directory %s: %w", run.BackupDirectory, err)}
	}

	// The aggregate file is the authoritative artifact: the string the
	// API returned, byte for byte.
	aggregatePath := filepath.Join(run.BackupDirectory, SanitizeFilename(e.workspaceName)+"_collections_export.json")
	if err := os.WriteFile(aggregatePath, []byte(payload), 0o644); err != nil {
		return &Error{Step: "aggregate write", Err: fmt.Errorf("failed to write %s: %w", aggregatePath, err)}
	}
	run.ExportedFiles = append(run.ExportedFiles, aggregatePath)
	e.events.FileWritten(aggregatePath)

	e.writeCollections(run, payload)

	logger.Log.Info("Export completed",
		zap.String("teamID", teamID),
		zap.String("directory", run.BackupDirectory),
		zap.Int("filesWritten", len(run.ExportedFiles)),
	)
	return nil
}

// resolveTeam returns the configured team id, or the first team the
// API lists for the account.
func (e *Exporter) resolveTeam(ctx context.Context) (string, error) {
	if e.teamID != "" {
		logger.Log.Debug("Using configured team id", zap.String("teamID", e.teamID))
		return e.teamID, nil
	}

	resp, err := e.client.Do(ctx, graphql.OpMyTeams, graphql.QueryMyTeams, nil)
	if err != nil {
		return "", &Error{Step: "team resolution", Err: err}
	}
	if len(resp.Errors) > 0 {
		return "", &Error{Step: "team resolution", Err: fmt.Errorf("GraphQL errors: %s", resp.ErrorMessages())}
	}

	var data graphql.MyTeamsData
	if err := resp.DecodeData(&data); err != nil {
		return "", &Error{Step: "team resolution", Err: err}
	}
	if len(data.MyTeams) == 0 {
		return "", &Error{Step: "team resolution", Err: ErrNoTeamFound}
	}

	team := data.MyTeams[0]
	logger.Log.Info("Resolved team from API list order",
		zap.String("teamID", team.ID),
		zap.String("teamName", team.Name),
		zap.Int("teamCount", len(data.MyTeams)),
	)
	return team.ID, nil
}

// fetchExport runs the bulk export query. The data field holds a
// JSON-encoded string, so the serialized collections arrive already
// escaped inside the envelope.
func (e *Exporter) fetchExport(ctx context.Context, teamID string) (string, error) {
	resp, err := e.client.Do(ctx, graphql.OpExportCollections, graphql.QueryExportCollections,
		map[string]interface{}{"teamID": teamID})
	if err != nil {
		return "", &Error{Step: "bulk export", Err: err}
	}
	if len(resp.Errors) > 0 {
		return "", &Error{Step: "bulk export", Err: fmt.Errorf("GraphQL errors: %s", resp.ErrorMessages())}
	}

	var data graphql.ExportData
	if err := resp.DecodeData(&data); err != nil {
		return "", &Error{Step: "bulk export", Err: err}
	}
	return data.ExportCollectionsToJSON, nil
}

// collectionName extracts the display name of a top-level collection.
type collectionName struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// writeCollections decodes the exported payload a second time and
// writes one pretty-printed file per named top-level collection.
// Nothing here fails the run: a payload that is not an array is
// skipped entirely, and individual write failures are reported and
// ignored. Collections whose names sanitize to the same filename
// overwrite each other, last write wins.
func (e *Exporter) writeCollections(run *model.ExportRun, payload string) {
	var collections []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &collections); err != nil {
		logger.Log.Warn("Export payload is not a JSON array, skipping per-collection files", zap.Error(err))
		return
	}
	if len(collections) == 0 {
		logger.Log.Info("Export payload contains no collections")
		return
	}

	for i, raw := range collections {
		var names collectionName
		if err := json.Unmarshal(raw, &names); err != nil {
			logger.Log.Debug("Skipping non-object collection entry", zap.Int("index", i), zap.Error(err))
			continue
		}
		name := names.Name
		if name == "" {
			name = names.Title
		}
		if name == "" {
			logger.Log.Debug("Skipping collection without a name", zap.Int("index", i))
			continue
		}

		pretty, err := prettyPrint(raw)
		if err != nil {
			e.events.FileSkipped(name, err)
			continue
		}

		path := filepath.Join(run.BackupDirectory, SanitizeFilename(name)+".json")
		if err := os.WriteFile(path, pretty, 0o644); err != nil {
			e.events.FileSkipped(name, fmt.Errorf("failed to write %s: %w", path, err))
			continue
		}
		run.ExportedFiles = append(run.ExportedFiles, path)
		e.events.FileWritten(path)
	}
}

func prettyPrint(raw json.RawMessage) ([]byte, error) {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("collection entry is not valid JSON: %w", err)
	}
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to pretty-print collection: %w", err)
	}
	return append(out, '\n'), nil
}
