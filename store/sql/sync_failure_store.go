package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-crm-sync/core"
)

// SyncFailureStore is the durable parking lot for records that will not sync
// without manual intervention.
type SyncFailureStore struct {
	db   *bun.DB
	repo repository.Repository[*syncFailureRecord]
}

func NewSyncFailureStore(db *bun.DB) (*SyncFailureStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*syncFailureRecord](db, syncFailureHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync failure repository wiring: %w", err)
		}
	}
	return &SyncFailureStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *SyncFailureStore) Record(ctx context.Context, failure core.SyncFailure) (core.SyncFailure, error) {
	if s == nil || s.db == nil {
		return core.SyncFailure{}, fmt.Errorf("sqlstore: sync failure store is not configured")
	}
	failure.EntityName = strings.ToLower(strings.TrimSpace(failure.EntityName))
	failure.Reference = strings.TrimSpace(failure.Reference)
	if failure.EntityName == "" || failure.Reference == "" {
		return core.SyncFailure{}, fmt.Errorf("sqlstore: entity name and reference are required")
	}
	if failure.Kind == "" {
		return core.SyncFailure{}, fmt.Errorf("sqlstore: failure kind is required")
	}
	if failure.Status == "" {
		failure.Status = core.SyncFailureOpen
	}
	now := time.Now().UTC()

	var out core.SyncFailure
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findOpenFailureTx(ctx, tx, failure.EntityName, failure.Reference, string(failure.Kind))
		if err != nil {
			return err
		}
		if record == nil {
			record = &syncFailureRecord{
				ID:         uuid.NewString(),
				EntityName: failure.EntityName,
				Reference:  failure.Reference,
				Kind:       string(failure.Kind),
				Status:     string(failure.Status),
				Message:    failure.Message,
				Metadata:   copyAnyMap(failure.Metadata),
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				return insertErr
			}
			out = record.toDomain()
			return nil
		}

		// Re-parking the same stuck item refreshes the message instead of
		// piling up duplicate rows.
		record.Message = failure.Message
		record.Metadata = copyAnyMap(failure.Metadata)
		record.UpdatedAt = now
		if _, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.SyncFailure{}, err
	}
	return out, nil
}

func (s *SyncFailureStore) CountOpen(ctx context.Context, entityName string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: sync failure store is not configured")
	}

	query := s.db.NewSelect().
		Model((*syncFailureRecord)(nil)).
		Where("?TableAlias.status = ?", string(core.SyncFailureOpen))
	if entityName = strings.ToLower(strings.TrimSpace(entityName)); entityName != "" {
		query = query.Where("?TableAlias.entity_name = ?", entityName)
	}
	return query.Count(ctx)
}

func (s *SyncFailureStore) ListOpen(ctx context.Context, entityName string, limit int) ([]core.SyncFailure, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: sync failure store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	var records []*syncFailureRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", string(core.SyncFailureOpen)).
		OrderExpr("?TableAlias.created_at ASC").
		Limit(limit)
	if entityName = strings.ToLower(strings.TrimSpace(entityName)); entityName != "" {
		query = query.Where("?TableAlias.entity_name = ?", entityName)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	failures := make([]core.SyncFailure, 0, len(records))
	for _, record := range records {
		failures = append(failures, record.toDomain())
	}
	return failures, nil
}

func (s *SyncFailureStore) Resolve(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: sync failure store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: failure id is required")
	}

	result, err := s.db.NewUpdate().
		Model((*syncFailureRecord)(nil)).
		Set("status = ?", string(core.SyncFailureResolved)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affectedErr := result.RowsAffected(); affectedErr == nil && affected == 0 {
		return fmt.Errorf("sqlstore: sync failure %q not found", id)
	}
	return nil
}

func findOpenFailureTx(ctx context.Context, tx bun.Tx, entityName, reference, kind string) (*syncFailureRecord, error) {
	record := &syncFailureRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.entity_name = ?", entityName).
		Where("?TableAlias.reference = ?", reference).
		Where("?TableAlias.kind = ?", kind).
		Where("?TableAlias.status = ?", string(core.SyncFailureOpen)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

var _ core.SyncFailureStore = (*SyncFailureStore)(nil)
