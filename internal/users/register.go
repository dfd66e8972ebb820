// Package users implements the identity protocols on top of the DHT facade:
// registration of a new user identity as a rollback-capable process and
// retrieval of the published identity entries.
package users

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/hivekeeper/internal/common"
	"github.com/dmitrijs2005/hivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/hivekeeper/internal/dht"
	"github.com/dmitrijs2005/hivekeeper/internal/logging"
	"github.com/dmitrijs2005/hivekeeper/internal/model"
	"github.com/dmitrijs2005/hivekeeper/internal/process"
)

// RegisterContext is the private state of one registration attempt.
type RegisterContext struct {
	mu                 sync.Mutex
	creds              model.Credentials
	profile            *model.UserProfile
	symmetricKey       []byte
	envelope           *cryptox.Envelope
	profileLocationKey string
}

// Credentials returns the credentials being registered.
func (c *RegisterContext) Credentials() model.Credentials {
	return c.creds
}

// ProfileLocationKey returns the derived location of the profile, empty
// until the envelope step has run.
func (c *RegisterContext) ProfileLocationKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profileLocationKey
}

// RegisterConfig tunes a registration attempt.
type RegisterConfig struct {
	KeyBits int
	Logger  logging.Logger
}

// RegisterProcess publishes a new identity:
//
//  1. fail if a Locations entry already exists for the user id
//  2. generate a keypair and build the profile
//  3. derive the profile key and seal the profile
//  4. publish the public key
//  5. publish the sealed profile under the credential-derived key
//  6. publish an empty Locations entry
//  7. publish an empty message queue
//
// Steps 4 to 7 are removed again if a later step fails.
type RegisterProcess struct {
	*process.Process
	facade dht.Facade
	ctx    *RegisterContext
	bits   int
}

// NewRegisterProcess builds a registration of creds against facade. The
// process does nothing until Start.
func NewRegisterProcess(facade dht.Facade, creds model.Credentials, cfg RegisterConfig) *RegisterProcess {
	bits := cfg.KeyBits
	if bits <= 0 {
		bits = cryptox.DefaultRSABits
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	r := &RegisterProcess{
		facade: facade,
		ctx:    &RegisterContext{creds: creds},
		bits:   bits,
	}
	userID := creds.UserID()

	steps := []process.Step{
		{Name: "check identity", Execute: r.checkIdentity},
		{Name: "generate keys", Execute: r.generateKeys},
		{Name: "seal profile", Execute: r.sealProfile},
		r.publish("publish public key", func() string { return userID },
			func() model.Content { return r.profile().PublicKeyRecord() }),
		r.publish("publish profile", r.ctx.ProfileLocationKey,
			func() model.Content { return &model.EncryptedProfile{Envelope: r.envelope()} }),
		r.publish("publish locations", func() string { return userID },
			func() model.Content { return model.NewLocations(userID) }),
		r.publish("publish message queue", func() string { return userID },
			func() model.Content { return model.NewUserMessageQueue(userID) }),
	}

	r.Process = process.New("register", steps,
		process.WithLogger(logger.With("user", userID)),
		process.WithOnTerminate(r.discardSecrets),
	)
	return r
}

// Context returns the registration state.
func (r *RegisterProcess) Context() *RegisterContext {
	return r.ctx
}

// UserProfile returns the registered profile once the process has
// succeeded, nil otherwise.
func (r *RegisterProcess) UserProfile() *model.UserProfile {
	if r.State() != process.StateSucceeded {
		return nil
	}
	return r.profile()
}

func (r *RegisterProcess) profile() *model.UserProfile {
	r.ctx.mu.Lock()
	defer r.ctx.mu.Unlock()
	return r.ctx.profile
}

func (r *RegisterProcess) envelope() *cryptox.Envelope {
	r.ctx.mu.Lock()
	defer r.ctx.mu.Unlock()
	return r.ctx.envelope
}

// checkIdentity treats only a definite "absent" as permission to go on.
// A failed or timed out lookup fails the process.
func (r *RegisterProcess) checkIdentity(ctx context.Context) process.Outcome {
	userID := r.ctx.creds.UserID()
	promise := process.NewPromise()

	r.facade.GetGlobal(ctx, userID, model.ContentUserLocations).OnResult(func(c model.Content, err error) {
		switch {
		case err != nil:
			promise.Reject(networkErr(fmt.Errorf("check %s: %w", userID, err)))
		case c != nil:
			promise.Reject(fmt.Errorf("%w: %s", common.ErrIdentityAlreadyExists, userID))
		default:
			promise.Resolve()
		}
	})
	return process.Suspend(promise)
}

func (r *RegisterProcess) generateKeys(ctx context.Context) process.Outcome {
	keys, err := cryptox.GenerateKeyPair(r.bits)
	if err != nil {
		return process.Fail(err)
	}
	r.ctx.mu.Lock()
	r.ctx.profile = model.NewUserProfile(r.ctx.creds.UserID(), *keys)
	r.ctx.mu.Unlock()
	return process.Advance()
}

func (r *RegisterProcess) sealProfile(ctx context.Context) process.Outcome {
	creds := r.ctx.creds
	params := creds.ProfileKDFParams()

	key, err := params.Derive([]byte(creds.Password()))
	if err != nil {
		return process.Fail(err)
	}
	r.ctx.mu.Lock()
	r.ctx.symmetricKey = key
	profile := r.ctx.profile
	r.ctx.mu.Unlock()

	plaintext, err := model.MarshalProfile(profile)
	if err != nil {
		return process.Fail(fmt.Errorf("%w: %w", common.ErrCryptoFailure, err))
	}
	defer common.WipeByteArray(plaintext)

	env, err := cryptox.EncryptEnvelope(plaintext, key, params)
	if err != nil {
		return process.Fail(err)
	}
	locationKey, err := model.ProfileLocationKey(creds)
	if err != nil {
		return process.Fail(err)
	}

	r.ctx.mu.Lock()
	r.ctx.envelope = env
	r.ctx.profileLocationKey = locationKey
	r.ctx.mu.Unlock()
	return process.Advance()
}

// publish builds a step that puts content under key and removes it again
// on rollback.
func (r *RegisterProcess) publish(name string, key func() string, content func() model.Content) process.Step {
	return process.Step{
		Name: name,
		Execute: func(ctx context.Context) process.Outcome {
			return process.Suspend(r.facade.PutGlobal(ctx, key(), content()))
		},
		Compensate: func(ctx context.Context) error {
			return r.facade.RemoveGlobal(ctx, key(), content().ContentType()).Wait(ctx)
		},
	}
}

// discardSecrets drops key material once the process is over. A failed
// registration keeps nothing; a successful one keeps only the profile.
func (r *RegisterProcess) discardSecrets() {
	r.ctx.mu.Lock()
	defer r.ctx.mu.Unlock()

	common.WipeByteArray(r.ctx.symmetricKey)
	r.ctx.symmetricKey = nil
	r.ctx.envelope = nil

	if r.State() == process.StateFailed && r.ctx.profile != nil {
		r.ctx.profile.Keys.Wipe()
		r.ctx.profile = nil
	}
}

func networkErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrNetworkOperationFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrNetworkOperationFailed, err)
}
