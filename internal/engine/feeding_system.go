package engine

import (
	"fmt"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/zoo"
	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/metrics"
)

// FeedingService gives every living animal the same health boost.
type FeedingService struct {
	zoo      *zoo.Zoo
	boost    float64
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
}

// NewFeedingService creates a feeding service with a fixed boost.
func NewFeedingService(z *zoo.Zoo, boost float64, eventLog *events.EventLog, log *logger.Logger) *FeedingService {
	return &FeedingService{
		zoo:      z,
		boost:    boost,
		eventLog: eventLog,
		logger:   log,
		metrics:  metrics.Get(),
	}
}

// Boost returns the health added per feeding.
func (fs *FeedingService) Boost() float64 {
	return fs.boost
}

// Feed boosts every animal in the zoo. Dead animals are skipped.
// An empty zoo is a no-op.
func (fs *FeedingService) Feed() {
	if fs.zoo.Len() == 0 {
		return
	}

	fed := 0
	for a := range fs.zoo.All() {
		if a.Feed(fs.boost) {
			fed++
		}
	}

	fs.metrics.RecordFeed(fed)
	fs.eventLog.Append(events.GameEvent{
		Type:       events.EventTypeAnimalsFed,
		ActorID:    events.ActorFeeding,
		Generation: fs.zoo.Generation(),
		Payload:    events.FeedPayload{Fed: fed, Boost: fs.boost},
	})
	fs.logger.Event(string(events.EventTypeAnimalsFed), events.ActorFeeding,
		fmt.Sprintf("%d of %d animals fed (+%.2f)", fed, fs.zoo.Len(), fs.boost))
}
