package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/myrjola/sleuth/internal/sqlite"
)

// SessionRepository stores every investigation as one JSON document alongside the columns needed for listing.
type SessionRepository struct {
	reader *sqlx.DB
	writer *sqlx.DB
	now    func() time.Time
	logger *slog.Logger
}

func NewSessionRepository(db *sqlite.Database, logger *slog.Logger) *SessionRepository {
	return &SessionRepository{
		reader: sqlx.NewDb(db.ReadOnly, "sqlite3"),
		writer: sqlx.NewDb(db.ReadWrite, "sqlite3"),
		now:    time.Now,
		logger: logger.With("source", "SessionRepository"),
	}
}

type sessionRow struct {
	ID           string `db:"id"`
	IncidentName string `db:"incident_name"`
	Status       string `db:"status"`
	CreatedAt    int64  `db:"created_at"`
	Document     []byte `db:"document"`
}

// Create constructs a new active session. It is not persisted until Save so that an investigation whose
// initialization fails leaves no record behind.
func (r *SessionRepository) Create(
	incidentName string,
	participant models.Participant,
	threshold int,
) (*models.Session, error) {
	if err := models.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	return &models.Session{
		ID:                  uuid.NewString(),
		IncidentName:        incidentName,
		CreatedAt:           r.now().UTC(),
		Status:              models.SessionStatusActive,
		Report:              "",
		ExtractedSummary:    nil,
		Participant:         participant,
		ConfidenceThreshold: threshold,
		Goals:               nil,
		Facts:               nil,
		Messages:            nil,
		Answers:             nil,
		CurrentQuestion:     "",
		TurnCount:           0,
		Analysis:            nil,
	}, nil
}

// Save inserts the session or replaces the stored document.
func (r *SessionRepository) Save(ctx context.Context, s *models.Session) error {
	document, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshal session", slog.String("id", s.ID))
	}
	row := sessionRow{
		ID:           s.ID,
		IncidentName: s.IncidentName,
		Status:       string(s.Status),
		CreatedAt:    s.CreatedAt.UnixNano(),
		Document:     document,
	}
	stmt := `INSERT INTO investigations (id, incident_name, status, created_at, document)
VALUES (:id, :incident_name, :status, :created_at, :document)
ON CONFLICT (id) DO UPDATE SET incident_name = excluded.incident_name,
                               status        = excluded.status,
                               document      = excluded.document`
	if _, err = r.writer.NamedExecContext(ctx, stmt, row); err != nil {
		return errors.Wrap(err, "upsert session", slog.String("id", s.ID))
	}
	return nil
}

// Load returns models.ErrSessionNotFound when no session has the given id.
func (r *SessionRepository) Load(ctx context.Context, id string) (*models.Session, error) {
	var row sessionRow
	stmt := `SELECT id, incident_name, status, created_at, document FROM investigations WHERE id = ?`
	if err := r.reader.GetContext(ctx, &row, stmt, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrap(models.ErrSessionNotFound, "load session", slog.String("id", id))
		}
		return nil, errors.Wrap(err, "query session", slog.String("id", id))
	}
	s, err := decodeSession(row)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List returns every session, newest first. Sessions whose document cannot be decoded are logged and skipped.
func (r *SessionRepository) List(ctx context.Context) ([]*models.Session, error) {
	var rows []sessionRow
	stmt := `SELECT id, incident_name, status, created_at, document
FROM investigations
ORDER BY created_at DESC, id`
	if err := r.reader.SelectContext(ctx, &rows, stmt); err != nil {
		return nil, errors.Wrap(err, "query sessions")
	}
	sessions := make([]*models.Session, 0, len(rows))
	for _, row := range rows {
		s, err := decodeSession(row)
		if err != nil {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "skipping corrupt session", errors.SlogError(err))
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func decodeSession(row sessionRow) (*models.Session, error) {
	var s models.Session
	if err := json.Unmarshal(row.Document, &s); err != nil {
		return nil, errors.Wrap(err, "decode session", slog.String("id", row.ID))
	}
	if s.ID != row.ID {
		return nil, errors.New("session document does not match its record",
			slog.String("id", row.ID), slog.String("document_id", s.ID))
	}
	return &s, nil
}
