package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/EdgeAdaptics/triage/internal/model"
)

var ErrNotFound = errors.New("resource not found")

// StaticTeam serves a fixed member list.
type StaticTeam struct {
	members []model.TeamMember
}

func NewStaticTeam(members ...model.TeamMember) *StaticTeam {
	return &StaticTeam{members: append([]model.TeamMember(nil), members...)}
}

// Members returns a copy of the configured members.
func (t *StaticTeam) Members(context.Context) ([]model.TeamMember, error) {
	return append([]model.TeamMember(nil), t.members...), nil
}

// Config defines PostgresTeam connection settings.
type Config struct {
	DSN string
}

// PostgresTeam reads team members from the platform database.
type PostgresTeam struct {
	db *sqlx.DB
}

// NewPostgresTeam opens the database pool.
func NewPostgresTeam(cfg Config) (*PostgresTeam, error) {
	db, err := sqlx.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &PostgresTeam{db: db}, nil
}

// Close releases database resources.
func (t *PostgresTeam) Close() error {
	return t.db.Close()
}

// EnsureSchema creates the team_members table if it is missing.
func (t *PostgresTeam) EnsureSchema(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, `
		create table if not exists team_members (
			id text primary key,
			name text not null,
			email text not null unique,
			role text not null default '',
			capacity integer not null default 0
		)
	`)
	return err
}

// Members lists every member ordered by name.
func (t *PostgresTeam) Members(ctx context.Context) ([]model.TeamMember, error) {
	members := []model.TeamMember{}
	err := t.db.SelectContext(ctx, &members, `
		select id, name, email, role, capacity from team_members order by name
	`)
	return members, err
}

// Member fetches one member by email.
func (t *PostgresTeam) Member(ctx context.Context, email string) (model.TeamMember, error) {
	var member model.TeamMember
	err := t.db.GetContext(ctx, &member, `
		select id, name, email, role, capacity from team_members where email = $1
	`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TeamMember{}, ErrNotFound
	}
	return member, err
}

// Upsert inserts or updates a member keyed by email.
func (t *PostgresTeam) Upsert(ctx context.Context, m model.TeamMember) (model.TeamMember, error) {
	var member model.TeamMember
	err := t.db.GetContext(ctx, &member, `
		insert into team_members (id, name, email, role, capacity)
		values ($1, $2, $3, $4, $5)
		on conflict (email) do update set
			name = excluded.name,
			role = excluded.role,
			capacity = excluded.capacity
		returning id, name, email, role, capacity
	`, m.ID, m.Name, m.Email, m.Role, m.Capacity)
	return member, err
}
