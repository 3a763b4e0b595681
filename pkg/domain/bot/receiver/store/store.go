package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
)

// db is the slice of pgxpool.Pool the repo needs; tests substitute a mock.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGRepo struct {
	pool db
	c    *pgxpool.Pool
}

func NewRepo(ctx context.Context, dsn string) (*PGRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PGRepo{pool: pool, c: pool}, nil
}

func (r *PGRepo) Close() {
	if r.c != nil {
		r.c.Close()
	}
}

func (r *PGRepo) LoadSession(ctx context.Context, userID int64) (*model.SessionData, error) {
	var s model.SessionData
	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT state, payload FROM user_session WHERE user_id=$1`, userID).Scan(&s.State, &payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.SessionData{State: "main", Payload: map[string]any{}}, nil
		}
		return nil, err
	}
	_ = json.Unmarshal(payload, &s.Payload)
	return &s, nil
}

func (r *PGRepo) SaveSession(ctx context.Context, userID int64, s model.SessionData) error {
	pb, _ := json.Marshal(s.Payload)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_session (user_id, state, payload, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (user_id) DO UPDATE
		   SET state=EXCLUDED.state, payload=EXCLUDED.payload, updated_at=now()
	`, userID, s.State, pb)
	return err
}
