package service

import (
	"context"
	"time"

	"github.com/GTDGit/menu_api/internal/models"
)

// MenuCache stores the latest ranked menu.
type MenuCache interface {
	SetMenu(ctx context.Context, items []models.MenuItem) error
	GetMenu(ctx context.Context) ([]models.MenuItem, error)
}

// CartKeyCache maps anonymous cart keys to session ids.
type CartKeyCache interface {
	Lookup(ctx context.Context, cartKey string) (int, bool, error)
	Remember(ctx context.Context, cartKey string, sessionID int) error
	Forget(ctx context.Context, cartKey string) error
}

// Clock returns the current instant. Tests pin it.
type Clock func() time.Time
