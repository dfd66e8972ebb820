// Package model defines the content stored in the DHT for a user identity:
// the closed set of content types, their canonical serialization and the
// rules that map them to location keys.
package model

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/hivekeeper/internal/cryptox"
)

// ContentType tags a DHT entry. The set is closed.
type ContentType int

const (
	ContentUserPublicKey ContentType = iota + 1
	ContentUserProfile
	ContentUserLocations
	ContentUserMessageQueue
)

// ContentTypes lists every known content type.
var ContentTypes = []ContentType{
	ContentUserPublicKey,
	ContentUserProfile,
	ContentUserLocations,
	ContentUserMessageQueue,
}

func (ct ContentType) String() string {
	switch ct {
	case ContentUserPublicKey:
		return "USER_PUBLIC_KEY"
	case ContentUserProfile:
		return "USER_PROFILE"
	case ContentUserLocations:
		return "USER_LOCATIONS"
	case ContentUserMessageQueue:
		return "USER_MESSAGE_QUEUE"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether ct is one of the known content types.
func (ct ContentType) Valid() bool {
	return ct >= ContentUserPublicKey && ct <= ContentUserMessageQueue
}

// ParseContentType is the inverse of String.
func ParseContentType(s string) (ContentType, error) {
	for _, ct := range ContentTypes {
		if ct.String() == s {
			return ct, nil
		}
	}
	return 0, fmt.Errorf("unknown content type %q", s)
}

// Content is a value that can be stored in the DHT. It is implemented only
// by the types in this package.
type Content interface {
	ContentType() ContentType
	isContent()
}

// Marshal encodes c in its canonical stored form. Profile envelopes use the
// protobuf wire layout, everything else is JSON.
func Marshal(c Content) ([]byte, error) {
	switch v := c.(type) {
	case *EncryptedProfile:
		if v.Envelope == nil {
			return nil, fmt.Errorf("marshal %s: empty envelope", v.ContentType())
		}
		return v.Envelope.MarshalBinary()
	case *UserPublicKey, *Locations, *UserMessageQueue:
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("marshal: unsupported content %T", c)
	}
}

// Unmarshal decodes data stored under content type ct.
func Unmarshal(ct ContentType, data []byte) (Content, error) {
	var c Content
	switch ct {
	case ContentUserProfile:
		env := &cryptox.Envelope{}
		if err := env.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return &EncryptedProfile{Envelope: env}, nil
	case ContentUserPublicKey:
		c = &UserPublicKey{}
	case ContentUserLocations:
		c = &Locations{}
	case ContentUserMessageQueue:
		c = &UserMessageQueue{}
	default:
		return nil, fmt.Errorf("unmarshal: unknown content type %d", ct)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", ct, err)
	}
	return c, nil
}
