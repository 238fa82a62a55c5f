// Package storage declares the persistent store contracts used by the bookstore engines.
package storage

import (
	"context"

	"github.com/m3rciful/bookbot/bookstore/domain"
)

// Catalog holds purchasable items.
type Catalog interface {
	CreateItem(ctx context.Context, item *domain.Item) error
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
	// FindByTitle returns items whose title equals title, ignoring case.
	FindByTitle(ctx context.Context, title string) ([]domain.Item, error)
	// SearchTitle returns items whose title contains fragment, ignoring case.
	SearchTitle(ctx context.Context, fragment string) ([]domain.Item, error)
	ListByLanguage(ctx context.Context, lang domain.Language) ([]domain.Item, error)
	SetContent(ctx context.Context, id int64, ref string) error
	SetCover(ctx context.Context, id int64, ref string) error
}

// Settings holds the singleton key/value configuration.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	AllSettings(ctx context.Context) (domain.Settings, error)
}

// Users is the buyer registry.
type Users interface {
	// Register creates the profile on first interaction and returns the stored one otherwise.
	Register(ctx context.Context, id int64, username string) (*domain.UserProfile, error)
	GetUser(ctx context.Context, id int64) (*domain.UserProfile, error)
}

// Ledger holds orders. Every state-changing read-modify-write runs inside InTx.
type Ledger interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error)
	// ListOpen returns non-terminal orders, oldest first.
	ListOpen(ctx context.Context) ([]domain.Order, error)
	InTx(ctx context.Context, fn func(tx OrderTx) error) error
}

// OrderTx is the transactional view of the ledger and the user counters it updates.
// Rows read through it stay locked until the transaction ends.
type OrderTx interface {
	OrderForUpdate(id string) (*domain.Order, error)
	// LatestOpenForBuyer locks and returns the most recently created non-terminal order.
	LatestOpenForBuyer(buyerID int64) (*domain.Order, error)
	SaveOrder(o *domain.Order) error
	IncrementPurchases(userID int64) error
}

// Admins stores the versioned administrator identity.
type Admins interface {
	CurrentAdmin(ctx context.Context) (domain.AdminRecord, error)
	// CompareAndSwapAdmin installs actorID only if the stored version equals expected.
	// It returns domain.ErrConflict when another writer got there first.
	CompareAndSwapAdmin(ctx context.Context, expected int64, actorID int64) (domain.AdminRecord, error)
}

// Store bundles every contract so a single backend can be passed around.
type Store interface {
	Catalog
	Settings
	Users
	Ledger
	Admins
	Close() error
}
