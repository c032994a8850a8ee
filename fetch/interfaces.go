package fetch

import (
	"context"

	"github.com/radatool/radatool/ra"
)

// API is the remote-service surface the orchestrator drives. Satisfied by
// *ra.Client; narrowed to an interface so tests can script responses.
type API interface {
	GetGameList(ctx context.Context, consoleID int) ([]ra.GameListEntry, error)
	GetGameHashes(ctx context.Context, gameID int) ([]ra.GameHash, error)
	GetGameExtended(ctx context.Context, gameID int) (*ra.GameExtended, error)
}

// Store is the cache surface the orchestrator finalizes into. Satisfied by
// *cache.Store.
type Store interface {
	Load(consoleID int) ([]ra.TitleRecord, bool)
	Save(consoleID int, records []ra.TitleRecord) error
}
