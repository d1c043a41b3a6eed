// Package keeper is the periodic upkeep trigger that drives raffle draws.
package keeper

import (
	"context"
	"errors"
	"time"

	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
	"github.com/frankieli/raffle_engine/pkg/logger"
)

// UpkeepTarget is implemented by the raffle use case.
type UpkeepTarget interface {
	CheckUpkeep(ctx context.Context) domain.UpkeepStatus
	PerformUpkeep(ctx context.Context) (string, error)
}

type Keeper struct {
	target   UpkeepTarget
	interval time.Duration
}

func New(target UpkeepTarget, interval time.Duration) *Keeper {
	if interval <= 0 {
		interval = time.Second
	}
	return &Keeper{target: target, interval: interval}
}

// Run checks upkeep every interval until ctx is done. It matches
// routine.Handler.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	logger.Info(ctx).Dur("interval", k.interval).Msg("keeper started")
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx).Msg("keeper stopped")
			return nil
		case <-ticker.C:
			k.Tick(ctx)
		}
	}
}

// Tick performs upkeep once if it is due and reports the started request id.
// Losing a race to another trigger is not an error.
func (k *Keeper) Tick(ctx context.Context) (string, bool) {
	if !k.target.CheckUpkeep(ctx).Needed {
		return "", false
	}

	requestID, err := k.target.PerformUpkeep(ctx)
	switch {
	case err == nil:
		logger.Info(ctx).Str("request_id", requestID).Msg("keeper started draw")
		return requestID, true
	case errors.Is(err, domain.ErrDrawAlreadyInProgress), errors.Is(err, domain.ErrUpkeepNotNeeded):
		logger.Debug(ctx).Err(err).Msg("keeper lost upkeep race")
	default:
		logger.Error(ctx).Err(err).Msg("keeper upkeep failed")
	}
	return "", false
}
