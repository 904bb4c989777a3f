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

type SalesUnitStore struct {
	db   *bun.DB
	repo repository.Repository[*salesUnitRecord]
}

func NewSalesUnitStore(db *bun.DB) (*SalesUnitStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*salesUnitRecord](db, salesUnitHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sales unit repository wiring: %w", err)
		}
	}
	return &SalesUnitStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *SalesUnitStore) Get(ctx context.Context, id string) (core.SalesUnit, error) {
	if s == nil || s.db == nil {
		return core.SalesUnit{}, fmt.Errorf("sqlstore: sales unit store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.SalesUnit{}, fmt.Errorf("sqlstore: sales unit id is required")
	}

	record := &salesUnitRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.SalesUnit{}, core.ErrSalesUnitNotFound
		}
		return core.SalesUnit{}, err
	}
	return record.toDomain(), nil
}

func (s *SalesUnitStore) ListEnabled(ctx context.Context) ([]core.SalesUnit, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: sales unit store is not configured")
	}

	var records []*salesUnitRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.enabled = ?", true).
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	units := make([]core.SalesUnit, 0, len(records))
	for _, record := range records {
		units = append(units, record.toDomain())
	}
	return units, nil
}

// Save upserts one sales unit; wiring code uses it to seed and toggle scope.
func (s *SalesUnitStore) Save(ctx context.Context, unit core.SalesUnit) (core.SalesUnit, error) {
	if s == nil || s.db == nil {
		return core.SalesUnit{}, fmt.Errorf("sqlstore: sales unit store is not configured")
	}
	unit.ID = strings.TrimSpace(unit.ID)
	unit.Name = strings.TrimSpace(unit.Name)
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	if err := unit.Validate(); err != nil {
		return core.SalesUnit{}, err
	}
	now := time.Now().UTC()

	record := &salesUnitRecord{
		ID:        unit.ID,
		Name:      unit.Name,
		Enabled:   unit.Enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("enabled = EXCLUDED.enabled").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return core.SalesUnit{}, err
	}
	return record.toDomain(), nil
}

var _ core.SalesUnitStore = (*SalesUnitStore)(nil)
