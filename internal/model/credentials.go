package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/hivekeeper/internal/common"
	"github.com/dmitrijs2005/hivekeeper/internal/cryptox"
)

var (
	ErrEmptyUserID   = errors.New("empty user id")
	ErrEmptyPassword = errors.New("empty password")
	ErrInvalidPIN    = errors.New("pin must be a non-empty string of digits")
)

// Credentials identify a user and unlock their profile. They are only used
// transiently to derive keys and are never stored.
type Credentials struct {
	userID   string
	password string
	pin      string
}

// NewCredentials validates and returns credentials.
func NewCredentials(userID, password, pin string) (Credentials, error) {
	if userID == "" {
		return Credentials{}, ErrEmptyUserID
	}
	if password == "" {
		return Credentials{}, ErrEmptyPassword
	}
	if pin == "" {
		return Credentials{}, ErrInvalidPIN
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return Credentials{}, ErrInvalidPIN
		}
	}
	return Credentials{userID: userID, password: password, pin: pin}, nil
}

func (c Credentials) UserID() string   { return c.userID }
func (c Credentials) Password() string { return c.password }
func (c Credentials) PIN() string      { return c.pin }

// String never reveals the secret parts.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{user=%s}", c.userID)
}

// ProfileKDFParams are the parameters used to derive the profile encryption
// key from these credentials.
func (c Credentials) ProfileKDFParams() cryptox.KDFParams {
	return cryptox.DefaultKDFParams(c.pin, cryptox.AESKeyLength256)
}

// LocationKey returns the DHT location key for content types addressed by
// the plain user id. USER_PROFILE is not one of them, see ProfileLocationKey.
func LocationKey(ct ContentType, userID string) (string, error) {
	switch ct {
	case ContentUserPublicKey, ContentUserLocations, ContentUserMessageQueue:
		return userID, nil
	case ContentUserProfile:
		return "", fmt.Errorf("%s is addressed by credentials, not by user id", ct)
	default:
		return "", fmt.Errorf("unknown content type %d", ct)
	}
}

// ProfileLocationKey derives the location of the user's profile from the
// credentials. Only a party that knows the password and PIN can compute it.
func ProfileLocationKey(c Credentials) (string, error) {
	params := cryptox.DefaultKDFParams(c.pin, cryptox.AESKeyLength256)
	params.Salt = locationSalt(c.userID, c.pin)

	material, err := params.Derive([]byte(c.password))
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(material)

	h := sha256.New()
	h.Write([]byte(c.userID))
	h.Write([]byte{0})
	h.Write(material)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func locationSalt(userID, pin string) []byte {
	h := sha256.Sum256([]byte("hivekeeper/location/" + userID + "/" + pin))
	return h[:]
}
