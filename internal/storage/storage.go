package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"aegisguard/internal/rules"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// GetRuleConfig returns the stored config for (guildID, rule), falling back
// to the rule's defaults when no row exists. A missing row is not an error;
// only a broken read surfaces one.
func (s *Store) GetRuleConfig(ctx context.Context, guildID string, rule rules.Type) (rules.Config, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT config_json FROM rule_configs WHERE guild_id = ? AND rule_type = ?`,
		guildID, string(rule))

	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rules.Defaults(rule), nil
		}
		return rules.Config{}, err
	}

	// Unmarshal over the defaults so fields added after the row was written
	// pick up their default value instead of zeroes.
	cfg := rules.Defaults(rule)
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return rules.Config{}, fmt.Errorf("rule config %s/%s corrupt: %w", guildID, rule, err)
	}
	return cfg, nil
}

// UpsertRuleConfig applies a partial patch over the current config (stored or
// defaults) and writes the merged result back as a single row replace. The
// read and write share a transaction so concurrent patches do not clobber
// each other's fields.
func (s *Store) UpsertRuleConfig(ctx context.Context, guildID string, rule rules.Type, patch rules.Patch) (rules.Config, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rules.Config{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	cfg := rules.Defaults(rule)
	var raw string
	err = tx.QueryRowContext(ctx, `
		SELECT config_json FROM rule_configs WHERE guild_id = ? AND rule_type = ?`,
		guildID, string(rule)).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return rules.Config{}, err
	default:
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return rules.Config{}, fmt.Errorf("rule config %s/%s corrupt: %w", guildID, rule, err)
		}
	}

	patch.ApplyTo(&cfg)
	if err := rules.Validate(rule, cfg); err != nil {
		return rules.Config{}, err
	}

	encoded, err := json.Marshal(cfg)
	if err != nil {
		return rules.Config{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rule_configs (guild_id, rule_type, config_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id, rule_type) DO UPDATE SET
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`, guildID, string(rule), string(encoded), time.Now().Unix()); err != nil {
		return rules.Config{}, err
	}

	if err := tx.Commit(); err != nil {
		return rules.Config{}, err
	}
	return cfg, nil
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
