package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-crm-sync/core"
)

type RepositoryFactory struct {
	db *bun.DB

	linkedEntityStore   *LinkedEntityStore
	salesUnitStore      *SalesUnitStore
	syncFailureStore    *SyncFailureStore
	rateLimitStateStore *RateLimitStateStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.linkedEntityStore != nil && f.salesUnitStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) LinkedEntityStore() core.LinkedEntityStore {
	if f == nil {
		return nil
	}
	return f.linkedEntityStore
}

func (f *RepositoryFactory) SalesUnitStore() core.SalesUnitStore {
	if f == nil {
		return nil
	}
	return f.salesUnitStore
}

func (f *RepositoryFactory) SyncFailureStore() core.SyncFailureStore {
	if f == nil {
		return nil
	}
	return f.syncFailureStore
}

func (f *RepositoryFactory) RateLimitStateStore() *RateLimitStateStore {
	if f == nil {
		return nil
	}
	return f.rateLimitStateStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	linkedEntityStore, err := NewLinkedEntityStore(f.db)
	if err != nil {
		return err
	}
	f.linkedEntityStore = linkedEntityStore

	salesUnitStore, err := NewSalesUnitStore(f.db)
	if err != nil {
		return err
	}
	f.salesUnitStore = salesUnitStore

	syncFailureStore, err := NewSyncFailureStore(f.db)
	if err != nil {
		return err
	}
	f.syncFailureStore = syncFailureStore

	rateLimitStateStore, err := NewRateLimitStateStore(f.db)
	if err != nil {
		return err
	}
	f.rateLimitStateStore = rateLimitStateStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var _ core.StoreProvider = (*RepositoryFactory)(nil)
