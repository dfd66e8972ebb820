package users

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/hivekeeper/internal/common"
	"github.com/dmitrijs2005/hivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/hivekeeper/internal/dht"
	"github.com/dmitrijs2005/hivekeeper/internal/model"
)

// fetch waits for a facade get and narrows the result to T. An absent
// entry is common.ErrNotFound.
func fetch[T model.Content](ctx context.Context, facade dht.Facade, locationKey string, ct model.ContentType) (T, error) {
	var zero T
	f := facade.GetGlobal(ctx, locationKey, ct)
	if err := f.Wait(ctx); err != nil {
		return zero, err
	}
	c := f.Content()
	if c == nil {
		return zero, fmt.Errorf("%s: %w", ct, common.ErrNotFound)
	}
	v, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected content %T", ct, c)
	}
	return v, nil
}

// FetchPublicKey returns the published public key of userID.
func FetchPublicKey(ctx context.Context, facade dht.Facade, userID string) (*model.UserPublicKey, error) {
	return fetch[*model.UserPublicKey](ctx, facade, userID, model.ContentUserPublicKey)
}

// FetchLocations returns the client-presence entries of userID.
func FetchLocations(ctx context.Context, facade dht.Facade, userID string) (*model.Locations, error) {
	return fetch[*model.Locations](ctx, facade, userID, model.ContentUserLocations)
}

// FetchMessageQueue returns the pending messages of userID.
func FetchMessageQueue(ctx context.Context, facade dht.Facade, userID string) (*model.UserMessageQueue, error) {
	return fetch[*model.UserMessageQueue](ctx, facade, userID, model.ContentUserMessageQueue)
}

// FetchProfile locates and opens the profile of creds. The location itself
// depends on the password, so wrong credentials usually end in
// common.ErrNotFound; a profile that is found but cannot be opened is
// common.ErrCryptoFailure.
func FetchProfile(ctx context.Context, facade dht.Facade, creds model.Credentials) (*model.UserProfile, error) {
	locationKey, err := model.ProfileLocationKey(creds)
	if err != nil {
		return nil, err
	}
	sealed, err := fetch[*model.EncryptedProfile](ctx, facade, locationKey, model.ContentUserProfile)
	if err != nil {
		return nil, err
	}
	return OpenProfile(sealed, creds)
}

// OpenProfile decrypts a sealed profile with creds. The key derivation
// parameters recorded in the envelope must be the ones creds imply;
// anything else is rejected before any key is derived.
func OpenProfile(sealed *model.EncryptedProfile, creds model.Credentials) (*model.UserProfile, error) {
	if sealed == nil || sealed.Envelope == nil {
		return nil, cryptox.ErrMalformedEnvelope
	}
	params := creds.ProfileKDFParams()
	if !sealed.Envelope.KDF.Equal(params) {
		return nil, fmt.Errorf("%w: unexpected kdf parameters", cryptox.ErrMalformedEnvelope)
	}
	key, err := params.Derive([]byte(creds.Password()))
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	plaintext, err := cryptox.DecryptEnvelope(sealed.Envelope, key)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)

	profile, err := model.UnmarshalProfile(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrCryptoFailure, err)
	}
	if profile.UserID != creds.UserID() {
		return nil, fmt.Errorf("%w: profile belongs to %q", common.ErrCryptoFailure, profile.UserID)
	}
	return profile, nil
}
