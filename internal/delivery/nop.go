package delivery

import (
	"context"

	"github.com/nhle/cfish-notify/internal/model"
)

// NopSound never plays anything.
type NopSound struct{}

func (NopSound) Play(context.Context) error { return nil }

// NopDesktop reports a fixed permission and shows nothing. The zero
// value denies permission.
type NopDesktop struct {
	Perm Permission
}

func (d NopDesktop) Permission(context.Context) Permission {
	if d.Perm == "" {
		return PermissionDenied
	}
	return d.Perm
}

func (d NopDesktop) RequestPermission(ctx context.Context) (Permission, error) {
	return d.Permission(ctx), nil
}

func (NopDesktop) Show(context.Context, model.Notification) error { return nil }
