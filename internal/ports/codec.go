package ports

import "github.com/bnema/accountpool/internal/domain"

type EnvelopeCodec interface {
	Encode(envelope domain.Envelope) ([]byte, error)
	Decode(data []byte) (domain.Envelope, error)
}
