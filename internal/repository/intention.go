package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/ressona/internal/model"
)

var (
	ErrIntentionNotFound = errors.New("intention not found")
)

type IntentionRepository interface {
	Create(ctx context.Context, intention *model.IntentionRecord) error
	SetManifested(ctx context.Context, appID, userID, id string, manifested bool) error
	// Window returns the limit most recent intentions of one user as raw
	// documents. Callers must not rely on the row order.
	Window(ctx context.Context, appID, userID string, limit int) ([]model.Document, error)
	Ping(ctx context.Context) error
}

type intentionRepository struct {
	db *sqlx.DB
}

func NewIntentionRepository(db *sqlx.DB) IntentionRepository {
	return &intentionRepository{db: db}
}

// serverNow is the database clock expression for created_at.
func (r *intentionRepository) serverNow() string {
	if r.db.DriverName() == "sqlite" {
		return "strftime('%Y-%m-%d %H:%M:%f', 'now')"
	}
	return "CURRENT_TIMESTAMP"
}

func (r *intentionRepository) Create(ctx context.Context, intention *model.IntentionRecord) error {
	args := []any{
		intention.ID,
		intention.AppID,
		intention.UserID,
		intention.Text,
		intention.AudioRecorded,
		intention.AudioDuration,
		intention.ImageURL,
		intention.IsManifested,
	}

	createdAt := r.serverNow()
	if intention.CreatedAt != nil {
		createdAt = "$9"
		args = append(args, intention.CreatedAt.UTC())
	}

	query := `INSERT INTO intentions (id, app_id, user_id, text, audio_recorded, audio_duration, image_url, is_manifested, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, ` + createdAt + `)`

	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *intentionRepository) SetManifested(ctx context.Context, appID, userID, id string, manifested bool) error {
	query := `UPDATE intentions SET is_manifested = $1 WHERE id = $2 AND app_id = $3 AND user_id = $4`

	result, err := r.db.ExecContext(ctx, query, manifested, id, appID, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrIntentionNotFound
	}

	return nil
}

// windowColumns maps SQL columns onto document fields.
var windowColumns = map[string]string{
	"text":           model.FieldText,
	"audio_recorded": model.FieldAudioRecorded,
	"audio_duration": model.FieldAudioDuration,
	"image_url":      model.FieldImageURL,
	"is_manifested":  model.FieldIsManifested,
	"created_at":     model.FieldCreatedAt,
}

func (r *intentionRepository) Window(ctx context.Context, appID, userID string, limit int) ([]model.Document, error) {
	query := `SELECT id, text, audio_recorded, audio_duration, image_url, is_manifested, created_at
	          FROM intentions
	          WHERE app_id = $1 AND user_id = $2
	          ORDER BY created_at DESC
	          LIMIT $3`

	rows, err := r.db.QueryxContext(ctx, query, appID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan intention: %w", err)
		}

		id, _ := row["id"].(string)
		if b, ok := row["id"].([]byte); ok {
			id = string(b)
		}

		doc := model.Document{ID: id, Data: make(map[string]any, len(windowColumns))}
		for column, field := range windowColumns {
			if v, ok := row[column]; ok && v != nil {
				doc.Data[field] = v
			}
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (r *intentionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
