package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dispatch-api/internal/repository"
)

type providerRepository struct {
	db *sqlx.DB
}

type historyRepository struct {
	db *sqlx.DB
}

type outboxRepository struct {
	db *sqlx.DB
}

func NewProviderRepository(db *sqlx.DB) repository.ProviderRepository {
	return &providerRepository{db: db}
}

func NewHistoryRepository(db *sqlx.DB) repository.HistoryRepository {
	return &historyRepository{db: db}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{db: db}
}
