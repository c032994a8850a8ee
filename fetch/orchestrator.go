// Package fetch drives the multi-step retrieval pipeline for one console:
// cache check, game list, per-game detail calls, validation, and the final
// cache write. One fetch runs on one background goroutine at a time.
package fetch

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/radatool/radatool/ra"
)

// DefaultItemDelay is the pause between per-game detail calls. This is a
// cooperative measure to stay under the service's abuse threshold; it is
// independent of the client's reactive 429 backoff and shares no budget
// with it.
const DefaultItemDelay = 600 * time.Millisecond

// Options controls what a fetch retrieves per game
type Options struct {
	// IncludeAchievements merges achievement counts into the records
	IncludeAchievements bool
	// IncludePatchURLs merges patch locations into the records
	IncludePatchURLs bool
	// ItemDelay overrides the inter-game pause; zero means DefaultItemDelay,
	// negative disables the pause
	ItemDelay time.Duration
}

func (o Options) wantExtended() bool {
	return o.IncludeAchievements || o.IncludePatchURLs
}

func (o Options) itemDelay() time.Duration {
	if o.ItemDelay == 0 {
		return DefaultItemDelay
	}
	if o.ItemDelay < 0 {
		return 0
	}
	return o.ItemDelay
}

// Result is the terminal outcome of one fetch
type Result struct {
	ConsoleID int
	Records   []ra.TitleRecord
	// FromCache is true when the cache short-circuited the network pipeline
	FromCache bool
	// Cancelled is true when the fetch stopped early; Records then holds the
	// work completed before cancellation, which has still been persisted
	Cancelled bool
	// ItemErrors lists games that were skipped due to per-item failures
	ItemErrors []*ItemError
}

// Orchestrator runs the fetch pipeline for a single console id. An
// instance is single-use: create a new one for every fetch.
type Orchestrator struct {
	client API
	store  Store
	obs    Observer
	opts   Options
	logger zerolog.Logger

	used      atomic.Bool
	cancelled atomic.Bool
}

// NewOrchestrator creates a single-use fetch orchestrator
func NewOrchestrator(client API, store Store, obs Observer, opts Options, logger zerolog.Logger) *Orchestrator {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Orchestrator{
		client: client,
		store:  store,
		obs:    obs,
		opts:   opts,
		logger: logger.With().Str("component", "fetch").Logger(),
	}
}

// Cancel requests a cooperative stop. The flag is polled before each game's
// first network call; the current game is finished or abandoned whole,
// never aborted mid-request. Work completed so far is kept and persisted.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

// Run executes the pipeline and returns the authoritative record sequence
// for the console. Per-game failures are recorded and skipped; an
// unauthorized response or an exhausted rate-limit budget aborts the whole
// fetch.
func (o *Orchestrator) Run(ctx context.Context, consoleID int) (*Result, error) {
	if !o.used.CompareAndSwap(false, true) {
		return nil, ErrOrchestratorUsed
	}

	result := &Result{ConsoleID: consoleID}

	o.obs.Status("Checking cache...")
	if records, ok := o.store.Load(consoleID); ok {
		o.logger.Info().Int("console_id", consoleID).Int("records", len(records)).Msg("Serving from cache")
		result.Records = records
		result.FromCache = true
		return result, nil
	}

	o.obs.Status("Requesting game list...")
	list, err := o.client.GetGameList(ctx, consoleID)
	if err != nil {
		return nil, fmt.Errorf("game list for console %d: %w", consoleID, err)
	}

	eligible := eligibleGames(list)
	o.logger.Info().
		Int("console_id", consoleID).
		Int("listed", len(list)).
		Int("eligible", len(eligible)).
		Msg("Game list retrieved")

	records := make([]ra.TitleRecord, 0, len(eligible))
	total := len(eligible)

	for i, game := range eligible {
		if o.cancelled.Load() {
			o.logger.Info().Int("processed", i).Int("total", total).Msg("Fetch cancelled, keeping partial results")
			result.Cancelled = true
			break
		}

		if i > 0 {
			if delay := o.opts.itemDelay(); delay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}
		}

		o.obs.Progress(i+1, total, game.Title)

		record, err := o.fetchGame(ctx, game)
		if err != nil {
			if ra.IsFatal(err) {
				return nil, fmt.Errorf("fetch aborted at game %d: %w", game.ID, err)
			}
			itemErr := &ItemError{GameID: game.ID, Title: game.Title, Err: err}
			result.ItemErrors = append(result.ItemErrors, itemErr)
			o.logger.Warn().Err(err).Int("game_id", game.ID).Str("title", game.Title).Msg("Skipping game")
			continue
		}
		if record != nil {
			records = append(records, *record)
		}
	}

	result.Records = records

	// persist even when empty or cancelled so the next fetch can
	// short-circuit; a failed save does not invalidate the in-memory result
	if err := o.store.Save(consoleID, records); err != nil {
		o.obs.Status(fmt.Sprintf("Warning: cache save failed: %v", err))
		o.logger.Warn().Err(err).Int("console_id", consoleID).Msg("Cache save failed, results not persisted")
	}

	o.logger.Info().
		Int("console_id", consoleID).
		Int("records", len(records)).
		Int("skipped", len(result.ItemErrors)).
		Bool("cancelled", result.Cancelled).
		Msg("Fetch finished")

	return result, nil
}

// fetchGame performs the detail calls for one game and builds its record.
// Returns (nil, nil) when the game has no usable hashes and is dropped.
func (o *Orchestrator) fetchGame(ctx context.Context, game ra.GameListEntry) (*ra.TitleRecord, error) {
	hashes, err := o.client.GetGameHashes(ctx, game.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]ra.HashEntry, 0, len(hashes))
	for _, h := range hashes {
		entry, err := ra.NewHashEntry(h.MD5, h.Name, h.Labels, h.Status)
		if err != nil {
			o.logger.Debug().Int("game_id", game.ID).Str("digest", h.MD5).Msg("Rejecting invalid hash")
			continue
		}
		if entry.Digest == ra.ZeroDigest {
			continue
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		o.logger.Debug().Int("game_id", game.ID).Str("title", game.Title).Msg("No valid hashes, dropping game")
		return nil, nil
	}

	record := &ra.TitleRecord{
		ID:     strconv.Itoa(game.ID),
		Title:  game.Title,
		Hashes: entries,
	}

	if o.opts.wantExtended() {
		extended, err := o.client.GetGameExtended(ctx, game.ID)
		if err != nil {
			return nil, err
		}
		info := &ra.ExtendedInfo{}
		if o.opts.IncludeAchievements {
			info.AchievementCount = extended.NumAchievements
			info.Points = extended.Points
		}
		if o.opts.IncludePatchURLs {
			info.PatchURL = extended.PatchURL
			info.PatchDigest = extended.PatchDigest
		}
		record.Extended = info
	}

	return record, nil
}

// eligibleGames drops list entries without an identifier and entries whose
// only known hash is the all-zero sentinel.
func eligibleGames(list []ra.GameListEntry) []ra.GameListEntry {
	eligible := make([]ra.GameListEntry, 0, len(list))
	for _, game := range list {
		if game.ID == 0 {
			continue
		}
		if game.Hash == ra.ZeroDigest {
			continue
		}
		eligible = append(eligible, game)
	}
	return eligible
}
