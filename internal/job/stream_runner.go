package job

import (
	"context"

	"github.com/rs/zerolog"
)

type Streamer interface {
	Run(ctx context.Context) error
}

// StreamRunner keeps a live price feed running for the life of the process.
type StreamRunner struct {
	stream Streamer
	log    zerolog.Logger
}

func NewStreamRunner(stream Streamer, log zerolog.Logger) *StreamRunner {
	return &StreamRunner{
		stream: stream,
		log:    log.With().Str("component", "stream-runner").Logger(),
	}
}

// Start blocks until ctx is cancelled or the stream gives up.
func (r *StreamRunner) Start(ctx context.Context) {
	if r.stream == nil {
		r.log.Info().Msg("price stream disabled")
		<-ctx.Done()
		return
	}

	r.log.Info().Msg("price stream starting")
	err := r.stream.Run(ctx)
	if err != nil && ctx.Err() == nil {
		r.log.Error().Err(err).Str("operation", "stream").Msg("price stream exited")
		return
	}
	r.log.Info().Msg("price stream stopped")
}
