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

// LinkedEntityStore persists correlation links keyed by
// (entity_name, remote_reference). Upserts run inside a transaction and
// tolerate concurrent inserts by re-reading on unique violations.
type LinkedEntityStore struct {
	db   *bun.DB
	repo repository.Repository[*linkedEntityRecord]
}

func NewLinkedEntityStore(db *bun.DB) (*LinkedEntityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*linkedEntityRecord](db, linkedEntityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid linked entity repository wiring: %w", err)
		}
	}
	return &LinkedEntityStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *LinkedEntityStore) Upsert(ctx context.Context, in core.UpsertLinkedEntityInput) (core.LinkedEntity, error) {
	if s == nil || s.db == nil {
		return core.LinkedEntity{}, fmt.Errorf("sqlstore: linked entity store is not configured")
	}
	in.EntityName = strings.ToLower(strings.TrimSpace(in.EntityName))
	in.LocalID = strings.TrimSpace(in.LocalID)
	in.RemoteReference = strings.TrimSpace(in.RemoteReference)
	in.SalesUnitID = strings.TrimSpace(in.SalesUnitID)
	if err := in.Validate(); err != nil {
		return core.LinkedEntity{}, err
	}
	now := time.Now().UTC()

	var out core.LinkedEntity
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findLinkedEntityTx(ctx, tx, in.EntityName, in.RemoteReference)
		if err != nil {
			return err
		}
		if record == nil {
			record = newLinkedEntityRecord(in, now)
			record.ID = uuid.NewString()
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				if isUniqueViolation(insertErr) {
					record, err = findLinkedEntityTx(ctx, tx, in.EntityName, in.RemoteReference)
					if err != nil {
						return err
					}
					if record == nil {
						return insertErr
					}
				} else {
					return insertErr
				}
			} else {
				out = record.toDomain()
				return nil
			}
		}

		record.LocalID = in.LocalID
		record.IsValid = in.Validity.Bool()
		if in.Validity != core.LinkInvalid {
			record.InvalidReason = ""
		}
		if in.RevisionSeen > record.RevisionSeen {
			record.RevisionSeen = in.RevisionSeen
		}
		if in.SalesUnitID != "" {
			record.SalesUnitID = in.SalesUnitID
		}
		record.UpdatedAt = now
		if _, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.LinkedEntity{}, err
	}
	return out, nil
}

func (s *LinkedEntityStore) GetByReference(ctx context.Context, entityName string, reference string) (core.LinkedEntity, error) {
	if s == nil || s.db == nil {
		return core.LinkedEntity{}, fmt.Errorf("sqlstore: linked entity store is not configured")
	}
	entityName = strings.ToLower(strings.TrimSpace(entityName))
	reference = strings.TrimSpace(reference)
	if entityName == "" || reference == "" {
		return core.LinkedEntity{}, fmt.Errorf("sqlstore: entity name and reference are required")
	}

	record := &linkedEntityRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.entity_name = ?", entityName).
		Where("?TableAlias.remote_reference = ?", reference).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.LinkedEntity{}, core.ErrLinkedEntityNotFound
		}
		return core.LinkedEntity{}, err
	}
	return record.toDomain(), nil
}

func (s *LinkedEntityStore) GetByLocalID(ctx context.Context, entityName string, localID string) (core.LinkedEntity, error) {
	if s == nil || s.db == nil {
		return core.LinkedEntity{}, fmt.Errorf("sqlstore: linked entity store is not configured")
	}
	entityName = strings.ToLower(strings.TrimSpace(entityName))
	localID = strings.TrimSpace(localID)
	if entityName == "" || localID == "" {
		return core.LinkedEntity{}, fmt.Errorf("sqlstore: entity name and local id are required")
	}

	record := &linkedEntityRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.entity_name = ?", entityName).
		Where("?TableAlias.local_id = ?", localID).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.LinkedEntity{}, core.ErrLinkedEntityNotFound
		}
		return core.LinkedEntity{}, err
	}
	return record.toDomain(), nil
}

func (s *LinkedEntityStore) Invalidate(ctx context.Context, entityName string, reference string, reason string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: linked entity store is not configured")
	}
	entityName = strings.ToLower(strings.TrimSpace(entityName))
	reference = strings.TrimSpace(reference)
	if entityName == "" || reference == "" {
		return fmt.Errorf("sqlstore: entity name and reference are required")
	}

	result, err := s.db.NewUpdate().
		Model((*linkedEntityRecord)(nil)).
		Set("is_valid = ?", false).
		Set("invalid_reason = ?", strings.TrimSpace(reason)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("entity_name = ?", entityName).
		Where("remote_reference = ?", reference).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affectedErr := result.RowsAffected(); affectedErr == nil && affected == 0 {
		return core.ErrLinkedEntityNotFound
	}
	return nil
}

func (s *LinkedEntityStore) MaxRevisionSeen(ctx context.Context, entityName string, salesUnitIDs []string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: linked entity store is not configured")
	}
	entityName = strings.ToLower(strings.TrimSpace(entityName))
	if entityName == "" {
		return 0, fmt.Errorf("sqlstore: entity name is required")
	}

	query := s.db.NewSelect().
		Model((*linkedEntityRecord)(nil)).
		ColumnExpr("COALESCE(MAX(?TableAlias.revision_seen), 0)").
		Where("?TableAlias.entity_name = ?", entityName)
	if units := trimAll(salesUnitIDs); len(units) > 0 {
		query = query.Where("?TableAlias.sales_unit_id IN (?)", bun.In(units))
	}

	var watermark int64
	if err := query.Scan(ctx, &watermark); err != nil {
		return 0, err
	}
	return watermark, nil
}

func newLinkedEntityRecord(in core.UpsertLinkedEntityInput, now time.Time) *linkedEntityRecord {
	return &linkedEntityRecord{
		EntityName:      in.EntityName,
		LocalID:         in.LocalID,
		RemoteReference: in.RemoteReference,
		IsValid:         in.Validity.Bool(),
		RevisionSeen:    in.RevisionSeen,
		SalesUnitID:     in.SalesUnitID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func findLinkedEntityTx(ctx context.Context, tx bun.Tx, entityName string, reference string) (*linkedEntityRecord, error) {
	record := &linkedEntityRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.entity_name = ?", strings.TrimSpace(entityName)).
		Where("?TableAlias.remote_reference = ?", strings.TrimSpace(reference)).
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

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var _ core.LinkedEntityStore = (*LinkedEntityStore)(nil)
