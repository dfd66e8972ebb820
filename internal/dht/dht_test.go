package dht

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/hivekeeper/internal/common"
	"github.com/dmitrijs2005/hivekeeper/internal/model"
	"github.com/dmitrijs2005/hivekeeper/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

func wait(t *testing.T, f *Future) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	select {
	case <-f.Done():
	case <-ctx.Done():
		t.Fatalf("future did not complete")
	}
}

// blockingPeer never answers until the caller's context ends.
type blockingPeer struct{ id NodeID }

func (b blockingPeer) ID() NodeID { return b.id }
func (b blockingPeer) Store(ctx context.Context, _ Key, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}
func (b blockingPeer) Load(ctx context.Context, _ Key) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (b blockingPeer) Delete(ctx context.Context, _ Key) error {
	<-ctx.Done()
	return ctx.Err()
}

func countReplicas(t *testing.T, net *Network, locationKey string, ct model.ContentType) int {
	t.Helper()
	key := KeyFor(locationKey, ct).String()
	n := 0
	for i := 0; i < net.Size(); i++ {
		if _, err := net.Peer(i).Storage().Get(context.Background(), key); err == nil {
			n++
		}
	}
	return n
}

func TestKeyFor(t *testing.T) {
	a := KeyFor("alice", model.ContentUserLocations)
	assert.Equal(t, a, KeyFor("alice", model.ContentUserLocations))
	assert.NotEqual(t, a, KeyFor("alice", model.ContentUserPublicKey))
	assert.NotEqual(t, a, KeyFor("bob", model.ContentUserLocations))
	assert.Len(t, a.String(), 64)
}

func TestParseNodeID(t *testing.T) {
	id := RandomNodeID()
	back, err := ParseNodeID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, back)

	_, err = ParseNodeID("zz")
	assert.Error(t, err)
	_, err = ParseNodeID("abcd")
	assert.Error(t, err)
}

func TestRoutingTable_ClosestOrdersByXORDistance(t *testing.T) {
	rt := NewRoutingTable()
	for i := 0; i < 8; i++ {
		rt.Add(NewLocalPeer(RandomNodeID(), storage.NewMemoryStore()))
	}
	key := KeyFor("alice", model.ContentUserProfile)

	all := rt.Closest(key, 0)
	require.Len(t, all, 8)
	for i := 1; i < len(all); i++ {
		assert.False(t, closer(all[i].ID(), all[i-1].ID(), key), "peers must be sorted nearest first")
	}

	top := rt.Closest(key, 3)
	require.Len(t, top, 3)
	assert.Equal(t, all[0].ID(), top[0].ID())

	rt.Remove(top[0].ID())
	assert.Equal(t, 7, rt.Len())
}

func TestFuture_SingleCompletion(t *testing.T) {
	f := newFuture()

	var calls int32
	f.OnComplete(func(err error) { atomic.AddInt32(&calls, 1) })

	f.complete(nil, nil)
	f.complete(nil, common.ErrNotFound)

	assert.NoError(t, f.Err())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// registered after completion: runs immediately
	var late int32
	f.OnComplete(func(err error) { atomic.AddInt32(&late, 1) })
	assert.Equal(t, int32(1), atomic.LoadInt32(&late))
}

func TestFuture_WaitGivesUpWithoutCancelling(t *testing.T) {
	f := newFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.Wait(ctx), context.Canceled)

	f.complete(&model.Locations{UserID: "alice"}, nil)
	require.NoError(t, f.Wait(context.Background()))
	assert.Equal(t, model.ContentUserLocations, f.Content().ContentType())
}

func TestNode_PutOnOneNodeGetFromAnother(t *testing.T) {
	net := NewNetwork(4, WithReplication(2))
	ctx := context.Background()

	put := net.Node(0).PutGlobal(ctx, "alice", &model.UserPublicKey{UserID: "alice", PublicKey: []byte("pk")})
	wait(t, put)
	require.NoError(t, put.Err())
	assert.Equal(t, 2, countReplicas(t, net, "alice", model.ContentUserPublicKey))

	get := net.Node(3).GetGlobal(ctx, "alice", model.ContentUserPublicKey)
	wait(t, get)
	require.NoError(t, get.Err())
	pk, ok := get.Content().(*model.UserPublicKey)
	require.True(t, ok)
	assert.Equal(t, []byte("pk"), pk.PublicKey)

	assert.Equal(t, int64(1), net.Node(0).Stats().Puts)
	assert.Equal(t, int64(1), net.Node(3).Stats().Gets)
}

func TestNode_GetAbsent(t *testing.T) {
	net := NewNetwork(2)

	get := net.Node(1).GetGlobal(context.Background(), "nobody", model.ContentUserLocations)
	wait(t, get)
	assert.NoError(t, get.Err())
	assert.Nil(t, get.Content())
}

func TestNode_GetSkipsUndecodableReplica(t *testing.T) {
	net := NewNetwork(2, WithReplication(2))
	ctx := context.Background()

	put := net.Node(0).PutGlobal(ctx, "alice", model.NewLocations("alice"))
	wait(t, put)
	require.NoError(t, put.Err())

	key := KeyFor("alice", model.ContentUserLocations)
	replicas := net.Routing().Closest(key, 2)
	require.Len(t, replicas, 2)
	corrupt := func(p Peer) {
		require.NoError(t, p.(*LocalPeer).Storage().Put(ctx, key.String(), []byte("{not json")))
	}

	corrupt(replicas[0])
	get := net.Node(1).GetGlobal(ctx, "alice", model.ContentUserLocations)
	wait(t, get)
	require.NoError(t, get.Err())
	locations, ok := get.Content().(*model.Locations)
	require.True(t, ok)
	assert.Equal(t, "alice", locations.UserID)

	corrupt(replicas[1])
	get = net.Node(1).GetGlobal(ctx, "alice", model.ContentUserLocations)
	wait(t, get)
	assert.ErrorIs(t, get.Err(), common.ErrNetworkOperationFailed)
	assert.Nil(t, get.Content())
}

func TestNode_Remove(t *testing.T) {
	net := NewNetwork(3)
	ctx := context.Background()

	put := net.Node(0).PutGlobal(ctx, "alice", model.NewLocations("alice"))
	wait(t, put)
	require.NoError(t, put.Err())
	require.Equal(t, 3, countReplicas(t, net, "alice", model.ContentUserLocations))

	rm := net.Node(2).RemoveGlobal(ctx, "alice", model.ContentUserLocations)
	wait(t, rm)
	require.NoError(t, rm.Err())
	assert.Equal(t, 0, countReplicas(t, net, "alice", model.ContentUserLocations))
}

func TestNode_PutSurvivesSingleOfflineReplica(t *testing.T) {
	net := NewNetwork(3)
	net.Peer(1).SetOnline(false)

	put := net.Node(0).PutGlobal(context.Background(), "alice", model.NewUserMessageQueue("alice"))
	wait(t, put)
	require.NoError(t, put.Err())
	assert.Equal(t, 2, countReplicas(t, net, "alice", model.ContentUserMessageQueue))

	rm := net.Node(0).RemoveGlobal(context.Background(), "alice", model.ContentUserMessageQueue)
	wait(t, rm)
	assert.ErrorIs(t, rm.Err(), common.ErrNetworkOperationFailed)
}

func TestNode_ShutdownFailsOperations(t *testing.T) {
	net := NewNetwork(2)
	net.Shutdown()

	put := net.Node(0).PutGlobal(context.Background(), "alice", model.NewLocations("alice"))
	wait(t, put)
	assert.ErrorIs(t, put.Err(), common.ErrNetworkOperationFailed)
	assert.Equal(t, int64(1), net.Node(0).Stats().Failed)

	get := net.Node(0).GetGlobal(context.Background(), "alice", model.ContentUserLocations)
	wait(t, get)
	assert.ErrorIs(t, get.Err(), common.ErrNetworkOperationFailed)
	assert.Nil(t, get.Content())
}

func TestNode_TimeoutIsFailureNotAbsence(t *testing.T) {
	rt := NewRoutingTable()
	node := NewNode(blockingPeer{id: RandomNodeID()}, rt, WithOperationTimeout(50*time.Millisecond))

	get := node.GetGlobal(context.Background(), "alice", model.ContentUserLocations)
	wait(t, get)
	assert.ErrorIs(t, get.Err(), common.ErrNetworkOperationFailed)
	assert.ErrorIs(t, get.Err(), context.DeadlineExceeded)
	assert.Nil(t, get.Content())

	put := node.PutGlobal(context.Background(), "alice", model.NewLocations("alice"))
	wait(t, put)
	assert.ErrorIs(t, put.Err(), common.ErrNetworkOperationFailed)
}

func TestNode_PutRejectsUnencodableContent(t *testing.T) {
	net := NewNetwork(1)

	put := net.Node(0).PutGlobal(context.Background(), "alice", &model.EncryptedProfile{})
	wait(t, put)
	assert.ErrorIs(t, put.Err(), common.ErrNetworkOperationFailed)
}
