package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/hivekeeper/internal/cryptox"
	"github.com/google/uuid"
)

// UserProfile is the private, plaintext profile of a user. It is only ever
// stored sealed inside an EncryptedProfile.
type UserProfile struct {
	UserID  string          `json:"user_id"`
	Keys    cryptox.KeyPair `json:"keys"`
	Version int64           `json:"version"`
	// FileTree references the user's stored files. It is opaque here.
	FileTree json.RawMessage `json:"file_tree,omitempty"`
}

// NewUserProfile returns an empty profile for userID carrying keys.
func NewUserProfile(userID string, keys cryptox.KeyPair) *UserProfile {
	return &UserProfile{UserID: userID, Keys: keys}
}

// PublicKeyRecord returns the publishable public half of the profile keys.
func (p *UserProfile) PublicKeyRecord() *UserPublicKey {
	return &UserPublicKey{UserID: p.UserID, PublicKey: append([]byte(nil), p.Keys.PublicKey...)}
}

// MarshalProfile serializes p for encryption.
func MarshalProfile(p *UserProfile) ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalProfile parses a decrypted profile.
func UnmarshalProfile(data []byte) (*UserProfile, error) {
	p := &UserProfile{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return p, nil
}

// EncryptedProfile is the USER_PROFILE content: a sealed UserProfile.
type EncryptedProfile struct {
	Envelope *cryptox.Envelope
}

func (*EncryptedProfile) ContentType() ContentType { return ContentUserProfile }
func (*EncryptedProfile) isContent()               {}

// UserPublicKey is published in clear so peers can encrypt to the user or
// verify signatures without the profile.
type UserPublicKey struct {
	UserID    string `json:"user_id"`
	PublicKey []byte `json:"public_key"`
}

func (*UserPublicKey) ContentType() ContentType { return ContentUserPublicKey }
func (*UserPublicKey) isContent()               {}

// LocationEntry is one client currently online for a user.
type LocationEntry struct {
	PeerID  string    `json:"peer_id"`
	Address string    `json:"address"`
	Master  bool      `json:"master"`
	AddedAt time.Time `json:"added_at"`
}

// Locations is the presence map of a user. Its existence under a user id
// witnesses that the identity has been registered.
type Locations struct {
	UserID  string          `json:"user_id"`
	Entries []LocationEntry `json:"entries"`
}

// NewLocations returns an empty presence map.
func NewLocations(userID string) *Locations {
	return &Locations{UserID: userID, Entries: []LocationEntry{}}
}

func (*Locations) ContentType() ContentType { return ContentUserLocations }
func (*Locations) isContent()               {}

// Add inserts or replaces the entry with the same peer id. The first entry
// added to an empty map becomes the master.
func (l *Locations) Add(e LocationEntry) {
	l.Remove(e.PeerID)
	if len(l.Entries) == 0 {
		e.Master = true
	}
	l.Entries = append(l.Entries, e)
}

// Remove drops the entry for peerID and hands the master role to the
// oldest remaining entry if needed.
func (l *Locations) Remove(peerID string) {
	wasMaster := false
	kept := l.Entries[:0]
	for _, e := range l.Entries {
		if e.PeerID == peerID {
			wasMaster = e.Master
			continue
		}
		kept = append(kept, e)
	}
	l.Entries = kept
	if wasMaster && len(l.Entries) > 0 {
		l.Entries[0].Master = true
	}
}

// IsEmpty reports whether no client is online.
func (l *Locations) IsEmpty() bool {
	return len(l.Entries) == 0
}

// QueuedMessage is a pending inter-user message.
type QueuedMessage struct {
	ID        uuid.UUID `json:"id"`
	Sender    string    `json:"sender"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// NewQueuedMessage builds a message with a fresh id.
func NewQueuedMessage(sender string, payload []byte) QueuedMessage {
	return QueuedMessage{ID: uuid.New(), Sender: sender, Payload: payload, CreatedAt: time.Now().UTC()}
}

// UserMessageQueue holds messages waiting for the user, oldest first.
type UserMessageQueue struct {
	UserID   string          `json:"user_id"`
	Messages []QueuedMessage `json:"messages"`
}

// NewUserMessageQueue returns an empty queue.
func NewUserMessageQueue(userID string) *UserMessageQueue {
	return &UserMessageQueue{UserID: userID, Messages: []QueuedMessage{}}
}

func (*UserMessageQueue) ContentType() ContentType { return ContentUserMessageQueue }
func (*UserMessageQueue) isContent()               {}

func (q *UserMessageQueue) Enqueue(m QueuedMessage) {
	q.Messages = append(q.Messages, m)
}

// Dequeue pops the oldest message. ok is false on an empty queue.
func (q *UserMessageQueue) Dequeue() (m QueuedMessage, ok bool) {
	if len(q.Messages) == 0 {
		return QueuedMessage{}, false
	}
	m = q.Messages[0]
	q.Messages = q.Messages[1:]
	return m, true
}

func (q *UserMessageQueue) IsEmpty() bool {
	return len(q.Messages) == 0
}
