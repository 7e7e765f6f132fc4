package transport

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/pipeline"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/telemetry"
)

// Consumer is a telemetry source feeding the ingestor. Start blocks until
// the context is cancelled or the source fails.
type Consumer interface {
	Start(ctx context.Context) error
	Stop() error
}

// Ingestor is the shared entry point for every transport: it parses and
// normalizes a raw frame and hands the reading to the per-plate dispatcher.
// Input errors fail closed: the frame is dropped and logged, never fatal.
type Ingestor struct {
	normalizer *telemetry.Normalizer
	dispatcher *pipeline.Dispatcher
	logger     *zap.Logger
}

// NewIngestor builds ingestor.
func NewIngestor(normalizer *telemetry.Normalizer, dispatcher *pipeline.Dispatcher, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		normalizer: normalizer,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Ingest processes one raw frame payload.
func (i *Ingestor) Ingest(data []byte, receivedAt time.Time) {
	frame, err := telemetry.ParseFrame(data)
	if err != nil {
		i.logger.Warn("unparsable frame dropped", zap.Error(err))
		return
	}
	reading, err := i.normalizer.Normalize(frame, receivedAt)
	if err != nil {
		if errors.Is(err, telemetry.ErrMissingPlate) {
			i.logger.Warn("frame without plate dropped")
			return
		}
		i.logger.Warn("frame normalization failed", zap.Error(err))
		return
	}
	i.dispatcher.Dispatch(reading)
}
