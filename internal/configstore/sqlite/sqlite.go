package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aperture-ai/gateway/internal/configstore"
	"github.com/aperture-ai/gateway/internal/tenant"
)

// Store is a sqlite-backed configstore.Store for local development and
// tests. Production deployments point at the platform config service.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type branchModelRow struct {
	Alias       string         `db:"alias"`
	ModelType   string         `db:"model_type"`
	RoutingOnly sql.NullString `db:"routing_only"`
}

func (s *Store) GetModelConfig(ctx context.Context, agentSlug, branchSlug string) (*configstore.BranchModels, error) {
	var rows []branchModelRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT alias, model_type, routing_only
		 FROM branch_models
		 WHERE agent_slug = ? AND branch_slug = ?
		 ORDER BY alias`,
		agentSlug, branchSlug)
	if err != nil {
		return nil, fmt.Errorf("branch model query failed: %w", err)
	}

	if len(rows) == 0 {
		return nil, configstore.ErrNotFound
	}

	out := &configstore.BranchModels{}
	for _, row := range rows {
		mc := configstore.ModelConfig{Alias: row.Alias, Type: row.ModelType}
		if row.RoutingOnly.Valid && row.RoutingOnly.String != "" {
			var only []string
			if err := json.Unmarshal([]byte(row.RoutingOnly.String), &only); err != nil {
				return nil, fmt.Errorf("bad routing_only for alias %s: %w", row.Alias, err)
			}
			mc.Routing = &configstore.Routing{Only: only}
		}
		out.Models = append(out.Models, mc)
	}
	return out, nil
}

func (s *Store) GetUnredactedProviderConfig(ctx context.Context, providerSlug string) (*configstore.ProviderConfig, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		`SELECT value FROM provider_configs WHERE slug = ? AND tenant_id = ?`,
		providerSlug, tenant.FromContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, configstore.ErrNotFound
		}
		return nil, fmt.Errorf("provider config query failed: %w", err)
	}

	var cfg configstore.ProviderConfig
	if err := json.Unmarshal([]byte(value), &cfg); err != nil {
		return nil, fmt.Errorf("bad provider config payload: %w", err)
	}
	return &cfg, nil
}

// UpsertModel writes one alias binding. Used by cmd/seed and tests.
func (s *Store) UpsertModel(ctx context.Context, agentSlug, branchSlug string, mc configstore.ModelConfig) error {
	var routingOnly interface{}
	if mc.Routing != nil && len(mc.Routing.Only) > 0 {
		data, err := json.Marshal(mc.Routing.Only)
		if err != nil {
			return err
		}
		routingOnly = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO branch_models (id, agent_slug, branch_slug, alias, model_type, routing_only)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (agent_slug, branch_slug, alias)
		 DO UPDATE SET model_type = excluded.model_type, routing_only = excluded.routing_only`,
		uuid.NewString(), agentSlug, branchSlug, mc.Alias, mc.Type, routingOnly)
	return err
}

// UpsertProviderConfig writes one tenant-scoped credential payload.
func (s *Store) UpsertProviderConfig(ctx context.Context, tenantID string, cfg configstore.ProviderConfig) error {
	value, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO provider_configs (slug, tenant_id, value)
		 VALUES (?, ?, ?)
		 ON CONFLICT (slug, tenant_id) DO UPDATE SET value = excluded.value`,
		cfg.Provider, tenantID, string(value))
	return err
}
