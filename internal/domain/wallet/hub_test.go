package wallet_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpay/smartpay-api/internal/domain/wallet"
	"github.com/smartpay/smartpay-api/internal/pkg/database/dbtest"
)

func waitEvent(t *testing.T, ch <-chan []byte) wallet.Event {
	t.Helper()
	select {
	case msg := <-ch:
		var event wallet.Event
		require.NoError(t, json.Unmarshal(msg, &event))
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for wallet event")
	}
	return wallet.Event{}
}

func startHub(t *testing.T, h *wallet.Hub) {
	t.Helper()
	go h.Run()
	t.Cleanup(h.Shutdown)
}

func register(t *testing.T, h *wallet.Hub, accountID uuid.UUID) *wallet.Connection {
	t.Helper()
	before := h.ConnectionCount()
	conn := wallet.NewConnection(accountID, nil)
	h.Register(conn)
	require.Eventually(t, func() bool { return h.ConnectionCount() == before+1 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestHubDeliversOnlyToAccountConnections(t *testing.T) {
	h := wallet.NewHub(nil)
	startHub(t, h)

	alice, bob := uuid.New(), uuid.New()
	a1 := register(t, h, alice)
	a2 := register(t, h, alice)
	b := register(t, h, bob)

	h.Publish(context.Background(), alice, wallet.Event{Type: wallet.EventWalletUpdated})

	assert.Equal(t, wallet.EventWalletUpdated, waitEvent(t, a1.Send).Type)
	assert.Equal(t, wallet.EventWalletUpdated, waitEvent(t, a2.Send).Type)
	select {
	case <-b.Send:
		t.Fatal("other accounts must not receive the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	h := wallet.NewHub(nil)
	startHub(t, h)

	conn := register(t, h, uuid.New())
	h.Unregister(conn)

	select {
	case _, ok := <-conn.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
	assert.Equal(t, 0, h.ConnectionCount())
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	h := wallet.NewHub(nil)
	startHub(t, h)
	id := uuid.New()
	conn := register(t, h, id)

	for i := 0; i < cap(conn.Send)+10; i++ {
		h.Publish(context.Background(), id, wallet.Event{Type: wallet.EventWalletUpdated})
	}
	assert.Len(t, conn.Send, cap(conn.Send))
}

func TestHubFansOutAcrossInstances(t *testing.T) {
	rdb := dbtest.Redis(t)

	sender := wallet.NewHubWithInstanceID(rdb, "instance-a")
	receiver := wallet.NewHubWithInstanceID(rdb, "instance-b")
	startHub(t, sender)
	startHub(t, receiver)

	id := uuid.New()
	local := register(t, sender, id)
	remote := register(t, receiver, id)

	sender.Publish(context.Background(), id, wallet.Event{Type: wallet.EventWalletUpdated})

	assert.Equal(t, wallet.EventWalletUpdated, waitEvent(t, local.Send).Type)
	assert.Equal(t, wallet.EventWalletUpdated, waitEvent(t, remote.Send).Type)
	select {
	case <-local.Send:
		t.Fatal("sender must not deliver its own event twice")
	case <-time.After(200 * time.Millisecond):
	}
}
