// Package db implements the transactional store on PostgreSQL through
// GORM. Each repository translates driver errors into the domain's
// sentinel errors; the audit repository additionally maintains the
// per-document hash chain.
package db

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"signet/internal/usecase"
)

type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{db: gdb}, nil
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// Migrate creates the schema: the model tables, the partial unique
// index that admits one active signature per (document, signer) while
// letting revoked rows pile up, and the trigger that keeps the audit
// ledger append-only at the database level.
func (s *Store) Migrate(ctx context.Context) error {
	gdb := s.db.WithContext(ctx)
	if err := gdb.AutoMigrate(
		&DocumentModel{},
		&SignatureModel{},
		&RequestModel{},
		&AuditEventModel{},
		&DocumentAuditSeqModel{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	statements := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_signatures_active_signer
			ON signatures (signed_document_id, signer_id) WHERE NOT revoked`,
		`CREATE OR REPLACE FUNCTION audit_events_append_only() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'audit_events is append-only';
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS audit_events_append_only ON audit_events`,
		`CREATE TRIGGER audit_events_append_only
			BEFORE UPDATE OR DELETE ON audit_events
			FOR EACH ROW EXECUTE FUNCTION audit_events_append_only()`,
	}
	for _, stmt := range statements {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Documents() usecase.DocumentRepository {
	return &documentRepo{db: s.db}
}

func (s *Store) Signatures() usecase.SignatureRepository {
	return &signatureRepo{db: s.db}
}

func (s *Store) Requests() usecase.RequestRepository {
	return &requestRepo{db: s.db}
}

func (s *Store) AuditEvents() usecase.AuditEventRepository {
	return &auditEventRepo{db: s.db}
}

// WithTx hands fn a store bound to one transaction. Nested calls join
// via savepoints, which GORM manages.
func (s *Store) WithTx(ctx context.Context, fn func(store usecase.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

var _ usecase.Store = (*Store)(nil)
