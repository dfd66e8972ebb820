package cryptox

import (
	"fmt"

	"github.com/dmitrijs2005/hivekeeper/internal/wire"
)

// envelopeVersion is bumped whenever the persisted layout changes.
const envelopeVersion = 1

// Envelope is the persisted form of encrypted profile content:
// { initializationVector, keyDerivationParameters, ciphertext }.
type Envelope struct {
	IV         []byte
	KDF        KDFParams
	Ciphertext []byte
}

// MarshalBinary encodes the envelope in protobuf wire format.
func (e *Envelope) MarshalBinary() ([]byte, error) {
	var b wire.Builder
	return b.Uint(1, envelopeVersion).
		Bytes(2, e.IV).
		Bytes(3, e.KDF.marshal()).
		Bytes(4, e.Ciphertext).
		Finish(), nil
}

// UnmarshalBinary decodes an envelope produced by MarshalBinary.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	var out Envelope
	var version uint64
	err := wire.Walk(data, func(f wire.Field) error {
		switch f.Num {
		case 1:
			version = f.Varint
		case 2:
			out.IV = f.Raw
		case 3:
			return out.KDF.unmarshal(f.Raw)
		case 4:
			out.Ciphertext = f.Raw
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if version != envelopeVersion {
		return fmt.Errorf("%w: unknown version %d", ErrMalformedEnvelope, version)
	}
	*e = out
	return nil
}

func (p KDFParams) marshal() []byte {
	var b wire.Builder
	return b.String(1, p.Algorithm).
		Uint(2, uint64(p.Time)).
		Uint(3, uint64(p.MemoryKiB)).
		Uint(4, uint64(p.Threads)).
		Uint(5, uint64(p.KeyLen)).
		Bytes(6, p.Salt).
		Finish()
}

func (p *KDFParams) unmarshal(data []byte) error {
	return wire.Walk(data, func(f wire.Field) error {
		switch f.Num {
		case 1:
			p.Algorithm = string(f.Raw)
		case 2:
			p.Time = uint32(f.Varint)
		case 3:
			p.MemoryKiB = uint32(f.Varint)
		case 4:
			p.Threads = uint8(f.Varint)
		case 5:
			p.KeyLen = uint32(f.Varint)
		case 6:
			p.Salt = f.Raw
		}
		return nil
	})
}
