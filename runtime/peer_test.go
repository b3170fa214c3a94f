package runtime

import (
	"net"
	"testing"
	"time"

	"secure-chat/protocol"

	"github.com/stretchr/testify/require"
)

const frameWait = 2 * time.Second

// testPeer is a session over net.Pipe whose client side is drained into lines.
type testPeer struct {
	session *Session
	client  net.Conn
	lines   chan string
}

func newTestPeer(t *testing.T) *testPeer {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	p := &testPeer{
		session: NewSession(serverSide, 1024, time.Second),
		client:  clientSide,
		lines:   make(chan string, 64),
	}
	go func() {
		defer close(p.lines)
		reader := protocol.NewReader(clientSide, 1024)
		for {
			frame, err := reader.ReadFrame()
			if err != nil {
				return
			}
			p.lines <- frame
		}
	}()
	t.Cleanup(func() {
		_ = p.session.Close()
		_ = clientSide.Close()
	})
	return p
}

// newBrokenPeer returns a session whose client already hung up.
func newBrokenPeer(t *testing.T) *testPeer {
	t.Helper()
	p := newTestPeer(t)
	_ = p.client.Close()
	return p
}

func (p *testPeer) send(t *testing.T, frame string) {
	t.Helper()
	require.NoError(t, protocol.WriteFrame(p.client, frame))
}

func (p *testPeer) expect(t *testing.T, expected ...string) {
	t.Helper()
	for _, frame := range expected {
		select {
		case got, ok := <-p.lines:
			require.True(t, ok, "connection closed while waiting for %q", frame)
			require.Equal(t, frame, got)
		case <-time.After(frameWait):
			require.Failf(t, "timeout", "waiting for %q", frame)
		}
	}
}

func (p *testPeer) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case got, ok := <-p.lines:
		if ok {
			require.Failf(t, "unexpected frame", "%q", got)
		}
	case <-time.After(100 * time.Millisecond):
	}
}
