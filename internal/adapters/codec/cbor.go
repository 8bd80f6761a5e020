// Package codec encodes broadcast envelopes as deterministic CBOR.
package codec

import (
	"fmt"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/ports"
	"github.com/fxamacker/cbor/v2"
)

type envelopeSchema struct {
	SubscriptionID string `cbor:"1,keyasint"`
	Origin         string `cbor:"2,keyasint,omitempty"`
	EventID        string `cbor:"3,keyasint,omitempty"`
	EventType      string `cbor:"4,keyasint"`
	Data           []byte `cbor:"5,keyasint,omitempty"`
}

type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ ports.EnvelopeCodec = (*CBOR)(nil)

func NewCBOR() (*CBOR, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder: %w", err)
	}
	return &CBOR{enc: enc, dec: dec}, nil
}

// MustCBOR is NewCBOR for wiring code; the default options cannot fail.
func MustCBOR() *CBOR {
	c, err := NewCBOR()
	if err != nil {
		panic(err)
	}
	return c
}

func (c *CBOR) Encode(envelope domain.Envelope) ([]byte, error) {
	return c.enc.Marshal(envelopeSchema{
		SubscriptionID: string(envelope.SubscriptionID),
		Origin:         envelope.Origin,
		EventID:        envelope.Event.ID,
		EventType:      envelope.Event.Type,
		Data:           envelope.Event.Data,
	})
}

func (c *CBOR) Decode(data []byte) (domain.Envelope, error) {
	var schema envelopeSchema
	if err := c.dec.Unmarshal(data, &schema); err != nil {
		return domain.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if schema.SubscriptionID == "" {
		return domain.Envelope{}, fmt.Errorf("decode envelope: missing subscription id")
	}

	return domain.Envelope{
		SubscriptionID: domain.SubscriptionID(schema.SubscriptionID),
		Origin:         schema.Origin,
		Event: domain.Event{
			ID:   schema.EventID,
			Type: schema.EventType,
			Data: schema.Data,
		},
	}, nil
}
