package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"auth-gate/internal/config"
)

// NewPool construye y devuelve un pool de conexiones configurado.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// Ping verifica conectividad con la base de datos.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}

// usersSchema crea la tabla de usuarios si no existe. No es un sistema de
// migraciones: solo deja la tabla lista para entornos nuevos.
const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id                            TEXT PRIMARY KEY,
	name                          TEXT NOT NULL,
	email                         TEXT NOT NULL UNIQUE,
	password_hash                 TEXT NOT NULL,
	email_verified_at             TIMESTAMPTZ NULL,
	verification_code_hash        TEXT NULL,
	verification_code_expires_at  TIMESTAMPTZ NULL,
	two_factor_code_hash          TEXT NULL,
	two_factor_code_expires_at    TIMESTAMPTZ NULL,
	two_factor_verified           BOOLEAN NOT NULL DEFAULT FALSE,
	two_factor_session_expires_at TIMESTAMPTZ NULL,
	created_at                    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema aplica el esquema mínimo requerido por el repositorio de usuarios.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, usersSchema)
	return err
}
