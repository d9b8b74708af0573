package core

import (
	"context"

	"github.com/dkeye/jukebox/internal/domain"
)

// QueueStore is the part of persistence the playback core consumes.
type QueueStore interface {
	Load(ctx context.Context, key domain.PlaylistKey) ([]domain.QueueItem, error)
	Save(ctx context.Context, key domain.PlaylistKey, items []domain.QueueItem) error
}

// LibraryStore is the full keyed CRUD surface behind the library commands.
type LibraryStore interface {
	QueueStore
	SaveShared(ctx context.Context, key domain.PlaylistKey, by domain.UserID, items []domain.QueueItem) error
	Append(ctx context.Context, key domain.PlaylistKey, items []domain.QueueItem) (int, error)
	List(ctx context.Context, room domain.RoomID, owner domain.UserID) ([]domain.PlaylistInfo, error)
	Delete(ctx context.Context, key domain.PlaylistKey) error

	AddFavorite(ctx context.Context, fav domain.Favorite) error
	Favorites(ctx context.Context, owner domain.UserID) ([]domain.Favorite, error)

	RoomConfig(ctx context.Context, room domain.RoomID) (domain.Room, error)
	SetNotifyChannel(ctx context.Context, room domain.RoomID, channel domain.ChannelID) error
}
