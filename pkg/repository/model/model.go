package model

import (
	"context"
)

// SessionData is the persisted form of a dialog session: a state name plus the
// flow payload (booking draft, payment draft, pending delete id).
type SessionData struct {
	State   string
	Payload map[string]any
}

// Repo persists dialog sessions so a restart does not drop users mid-flow.
// Appointment data itself lives behind the clinic REST API and is never
// stored locally.
type Repo interface {
	LoadSession(ctx context.Context, userID int64) (*SessionData, error)
	SaveSession(ctx context.Context, userID int64, s SessionData) error
}
