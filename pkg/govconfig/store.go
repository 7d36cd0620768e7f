package govconfig

import (
	"context"
	"database/sql"
	"time"

	"github.com/kikokikok/aeterna-sub000/internal/store"
)

// Store persists Config rows in cli_governance_config.
type Store struct {
	dbtx store.DBTX
}

func NewStore(dbtx store.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

// Get returns tenantID's stored config, or Default(tenantID) if none has
// been set yet.
func (s *Store) Get(ctx context.Context, tenantID string) (Config, error) {
	var cfg Config
	var autoApprove int
	var contact sql.NullString
	row := s.dbtx.QueryRowContext(ctx, `
		SELECT tenant_id, approval_mode, min_approvers, timeout_hours, auto_approve, escalation_contact
		FROM cli_governance_config WHERE tenant_id = ?`, tenantID)
	err := row.Scan(&cfg.TenantID, &cfg.ApprovalMode, &cfg.MinApprovers, &cfg.TimeoutHours, &autoApprove, &contact)
	if err == sql.ErrNoRows {
		return Default(tenantID), nil
	}
	if err != nil {
		return Config{}, err
	}
	cfg.AutoApprove = autoApprove != 0
	cfg.EscalationContact = contact.String
	return cfg, nil
}

// Upsert replaces tenantID's stored config.
func (s *Store) Upsert(ctx context.Context, cfg Config) error {
	autoApprove := 0
	if cfg.AutoApprove {
		autoApprove = 1
	}
	_, err := s.dbtx.ExecContext(ctx, `
		INSERT INTO cli_governance_config (tenant_id, approval_mode, min_approvers, timeout_hours, auto_approve, escalation_contact, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			approval_mode = excluded.approval_mode,
			min_approvers = excluded.min_approvers,
			timeout_hours = excluded.timeout_hours,
			auto_approve = excluded.auto_approve,
			escalation_contact = excluded.escalation_contact,
			updated_at = excluded.updated_at`,
		cfg.TenantID, string(cfg.ApprovalMode), cfg.MinApprovers, cfg.TimeoutHours, autoApprove,
		nullableString(cfg.EscalationContact), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
