package hub

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicerelay/domain"
)

func TestRegistry_FanOut(t *testing.T) {
	r := NewRegistry("test")
	conns := make([]*mockConn, 5)
	for i := range conns {
		conns[i] = &mockConn{id: fmt.Sprintf("c%d", i), channel: "test"}
		require.NoError(t, r.Register(conns[i]))
	}

	d := r.Broadcast(conns[0], frame("hello"))

	assert.Equal(t, domain.Delivery{Recipients: 4}, d)
	assert.Empty(t, conns[0].getReceived())
	for _, c := range conns[1:] {
		assert.Equal(t, []domain.Payload{frame("hello")}, c.getReceived(), c.id)
	}
}

func TestRegistry_FailureIsolation(t *testing.T) {
	r := NewRegistry("test")
	origin := &mockConn{id: "a", channel: "test"}
	broken := &mockConn{id: "b", channel: "test", sendErr: errors.New("broken pipe")}
	c := &mockConn{id: "c", channel: "test"}
	d := &mockConn{id: "d", channel: "test"}
	for _, s := range []*mockConn{origin, broken, c, d} {
		require.NoError(t, r.Register(s))
	}

	delivery := r.Broadcast(origin, frame("F"))

	assert.Equal(t, 3, delivery.Recipients)
	assert.Equal(t, 1, delivery.Failed)
	assert.Len(t, c.getReceived(), 1)
	assert.Len(t, d.getReceived(), 1)
	assert.False(t, broken.closed, "broadcast must not close a failing recipient")
	assert.Equal(t, 4, r.Len())

	// The broken session's own read loop then removes it.
	r.Unregister(broken)
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_Ordering(t *testing.T) {
	r := NewRegistry("test")
	origin := &mockConn{id: "a", channel: "test"}
	peers := []*mockConn{{id: "b", channel: "test"}, {id: "c", channel: "test"}}
	require.NoError(t, r.Register(origin))
	for _, p := range peers {
		require.NoError(t, r.Register(p))
	}

	const n = 100
	for i := 0; i < n; i++ {
		r.Broadcast(origin, frame(fmt.Sprintf("F%d", i)))
	}

	for _, p := range peers {
		got := p.getReceived()
		require.Len(t, got, n)
		for i, payload := range got {
			assert.Equal(t, fmt.Sprintf("F%d", i), string(payload.Data))
		}
	}
}

func TestRegistry_ConcurrentMembership(t *testing.T) {
	r := NewRegistry("test")
	origin := &mockConn{id: "origin", channel: "test"}
	stable := &mockConn{id: "stable", channel: "test"}
	require.NoError(t, r.Register(origin))
	require.NoError(t, r.Register(stable))

	const broadcasts = 200
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < broadcasts; i++ {
			r.Broadcast(origin, frame("x"))
		}
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c := &mockConn{id: fmt.Sprintf("churn-%d-%d", w, i), channel: "test"}
				assert.NoError(t, r.Register(c))
				r.Unregister(c)
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, stable.getReceived(), broadcasts, "pre-existing member must receive every frame exactly once")
	assert.Empty(t, origin.getReceived())
	assert.Equal(t, 2, r.Len())
}
