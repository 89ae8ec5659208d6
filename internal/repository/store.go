// Package repository holds the persistence adapters. Every adapter satisfies
// Store; handlers and services never see driver specifics.
package repository

import (
	"context"

	"restaurant-ordering/internal/domain"
)

type MenuFilter struct {
	Category      string
	AvailableOnly bool
}

type OrderFilter struct {
	Status domain.OrderStatus
	Limit  int
	Offset int
}

type MenuRepository interface {
	ListMenu(ctx context.Context, f MenuFilter) ([]domain.MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (domain.MenuItem, error)
	// GetMenuItems returns the found items keyed by id; missing ids are simply absent.
	GetMenuItems(ctx context.Context, ids []string) (map[string]domain.MenuItem, error)
	CreateMenuItem(ctx context.Context, item domain.MenuItem) error
	UpdateMenuItem(ctx context.Context, item domain.MenuItem) error
	DeleteMenuItem(ctx context.Context, id string) error
}

type MemberRepository interface {
	GetMember(ctx context.Context, phone string) (domain.Member, error)
	// GetMemberForUpdate reads the member and, inside Atomic, holds the row
	// until the unit ends so concurrent settlements see each other's balance.
	GetMemberForUpdate(ctx context.Context, phone string) (domain.Member, error)
	ListMembers(ctx context.Context) ([]domain.Member, error)
	CreateMember(ctx context.Context, m domain.Member) error
	// AddMemberPoints applies delta and fails with a validation error if the balance would go negative.
	AddMemberPoints(ctx context.Context, phone string, delta int64) (domain.Member, error)
}

type OrderRepository interface {
	// CreateOrder stores the order with its lines and the initial status change.
	CreateOrder(ctx context.Context, o domain.Order, changedBy string) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error)
	// UpdateOrderStatus returns the previous status and the updated order.
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, changedBy string) (domain.OrderStatus, domain.Order, error)
	StatusHistory(ctx context.Context, id string) ([]domain.StatusChange, error)
}

type WorkerRepository interface {
	// RegisterWorker marks name online; ErrConflict if it is already online.
	RegisterWorker(ctx context.Context, name string) error
	WorkerHeartbeat(ctx context.Context, name string, processed int) error
	SetWorkerOffline(ctx context.Context, name string) error
	ListWorkers(ctx context.Context) ([]domain.Worker, error)
}

type Store interface {
	MenuRepository
	MemberRepository
	OrderRepository
	WorkerRepository

	// Atomic runs fn against a store view whose writes commit together or not at all.
	Atomic(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
	Close() error
}
