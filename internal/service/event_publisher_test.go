package service

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/promptvault/internal/queue"
)

// silentBroker accepts TCP connections and never writes a byte back.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestAMQPPublisher_HonoursContextDeadline(t *testing.T) {
	p := NewAMQPPublisher(silentBroker(t))
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Publish(ctx, queue.AuthEvent{Type: queue.EventLogin})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestAMQPPublisher_DialTimeoutWithoutDeadline(t *testing.T) {
	p := NewAMQPPublisher(silentBroker(t))
	p.DialTimeout = 200 * time.Millisecond

	start := time.Now()
	err := p.Publish(context.Background(), queue.AuthEvent{Type: queue.EventLogin})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestAMQPPublisher_ExpiredContext(t *testing.T) {
	p := NewAMQPPublisher(silentBroker(t))
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	err := p.Publish(ctx, queue.AuthEvent{Type: queue.EventLogin})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
