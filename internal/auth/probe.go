package auth

import (
	"context"

	"hoppscotch-backup/internal/graphql"
	"hoppscotch-backup/internal/logger"

	"go.uber.org/zap"
)

// Error indicates the bearer credential was rejected or the endpoint
// answered with something other than a well-formed data envelope.
type Error struct {
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return "authentication failed: " + e.Reason + ": " + e.Cause.Error()
	}
	return "authentication failed: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Cause }

// Probe verifies a bearer credential against the GraphQL endpoint.
type Probe struct {
	client *graphql.Client
}

// NewProbe creates a Probe on top of the given transport.
func NewProbe(client *graphql.Client) *Probe {
	return &Probe{client: client}
}

// Validate sends the team-membership query once and fails fast. The
// credential is accepted only when the response is 2xx and carries a
// top-level data field; a GraphQL errors array, a non-2xx status, or
// an unexpectedly shaped body all reject it.
func (p *Probe) Validate(ctx context.Context) error {
	resp, err := p.client.Do(ctx, graphql.OpMyTeams, graphql.QueryMyTeams, nil)
	if err != nil {
		return &Error{Reason: "request failed", Cause: err}
	}

	if len(resp.Errors) > 0 {
		return &Error{Reason: "GraphQL errors: " + resp.ErrorMessages()}
	}
	if !resp.HasData() {
		return &Error{Reason: "response contained no data field"}
	}

	logger.Log.Info("Bearer token validated against GraphQL endpoint")
	var data graphql.MyTeamsData
	if err := resp.DecodeData(&data); err == nil {
		logger.Log.Debug("Team memberships visible to credential", zap.Int("teamCount", len(data.MyTeams)))
	}
	return nil
}
