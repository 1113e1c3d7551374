package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

// EnvelopeTransformer implements Transformer by decoding the JSON envelope
// carried in each message.
type EnvelopeTransformer struct {
	logger *slog.Logger
}

// NewTransformer creates an EnvelopeTransformer.
func NewTransformer(logger *slog.Logger) *EnvelopeTransformer {
	return &EnvelopeTransformer{logger: logger}
}

func (t *EnvelopeTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Envelope, error) {
	env, err := domain.DecodeEnvelope(raw)
	if err != nil {
		return domain.Envelope{}, err
	}
	t.logger.Debug("envelope decoded",
		"kind", env.Kind,
		"provider", env.Provider,
		"records", len(env.Records),
		"conditions", len(env.Conditions),
	)
	return env, nil
}
