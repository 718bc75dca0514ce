package loopback_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/virtuoso/pkg/adapters/loopback"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = domain.AccountReference{Alias: "alice", JID: "alice@example.com"}
	bob   = domain.AccountReference{Alias: "bob", JID: "bob@example.com"}
)

func next(t *testing.T, sub ports.Subscription) domain.ConnectionEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	return ev
}

func nextMessage(t *testing.T, sub ports.Subscription) string {
	t.Helper()
	for {
		ev := next(t, sub)
		if ev.Kind == domain.EventMessage {
			return ev.Payload
		}
	}
}

func connect(t *testing.T, m *loopback.Manager, account domain.AccountReference) {
	t.Helper()
	require.NoError(t, m.Open(context.Background(), account))
	require.Eventually(t, func() bool {
		return m.Status(account) == domain.StatusConnected
	}, time.Second, 5*time.Millisecond)
}

func TestManager_OpenReportsStatuses(t *testing.T) {
	m := loopback.New()
	sub, err := m.Subscribe(alice)
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, domain.StatusDisconnected, m.Status(alice))
	require.NoError(t, m.Open(context.Background(), alice))

	assert.Equal(t, domain.StatusConnecting, next(t, sub).Status)
	assert.Equal(t, domain.StatusConnected, next(t, sub).Status)

	require.NoError(t, m.Close(context.Background(), alice))
	assert.Equal(t, domain.StatusDisconnected, next(t, sub).Status)
}

func TestManager_ConnectFailure(t *testing.T) {
	m := loopback.New(loopback.WithConnectFailure("alice", "auth failed"))
	sub, _ := m.Subscribe(alice)
	defer sub.Close()

	require.NoError(t, m.Open(context.Background(), alice))
	next(t, sub) // connecting
	ev := next(t, sub)
	assert.Equal(t, domain.StatusError, ev.Status)
	assert.Equal(t, "auth failed", ev.Error)
}

func TestManager_SendRequiresConnection(t *testing.T) {
	m := loopback.New()
	err := m.Send(context.Background(), alice, "<presence/>")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestManager_RoutesByJID(t *testing.T) {
	m := loopback.New()
	bobSub, _ := m.Subscribe(bob)
	defer bobSub.Close()
	connect(t, m, alice)

	msg := `<message to="bob@example.com/phone" type="chat"><body>hi</body></message>`
	require.NoError(t, m.Send(context.Background(), alice, msg))
	assert.Equal(t, msg, nextMessage(t, bobSub))
}

func TestManager_AnswersIQ(t *testing.T) {
	m := loopback.New()
	sub, _ := m.Subscribe(alice)
	defer sub.Close()
	connect(t, m, alice)

	require.NoError(t, m.Send(context.Background(), alice, `<iq type="get" id="ping_1" to="example.com"><ping xmlns="urn:xmpp:ping"/></iq>`))
	reply := nextMessage(t, sub)
	assert.Contains(t, reply, `type="result"`)
	assert.Contains(t, reply, `id="ping_1"`)
}

func TestManager_NoIQRepliesOption(t *testing.T) {
	m := loopback.New(loopback.WithoutIQReplies(), loopback.WithResponder(loopback.When("ping", "<pong/>")))
	sub, _ := m.Subscribe(alice)
	defer sub.Close()
	connect(t, m, alice)

	require.NoError(t, m.Send(context.Background(), alice, `<iq type="get" id="p1"><ping/></iq>`))
	assert.Equal(t, "<pong/>", nextMessage(t, sub))
}

func TestManager_Echo(t *testing.T) {
	m := loopback.New(loopback.WithResponder(loopback.Echo()))
	sub, _ := m.Subscribe(alice)
	defer sub.Close()
	connect(t, m, alice)

	require.NoError(t, m.Send(context.Background(), alice, "<presence/>"))
	assert.Equal(t, "<presence/>", nextMessage(t, sub))
}
