package transfer

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdleConn_SlowReadKeepsGoing(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() {
		defer server.Close()

		chunk := bytes.Repeat([]byte{'x'}, 64)
		for i := 0; i < 20; i++ {
			if _, err := server.Write(chunk); err != nil {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	content, err := io.ReadAll(newIdleConn(client, 50*time.Millisecond))

	require.NoError(t, err)
	assert.Len(t, content, 1280)
}

func TestIdleConn_SlowWriteKeepsGoing(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	received := make(chan int, 1)
	go func() {
		defer server.Close()

		var total int
		buf := make([]byte, 64)
		for total < 1280 {
			n, err := server.Read(buf)
			total += n
			if err != nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		received <- total
	}()

	conn := newIdleConn(client, 50*time.Millisecond)
	conn.chunk = 64

	n, err := conn.Write(make([]byte, 1280))

	require.NoError(t, err)
	assert.Equal(t, 1280, n)
	assert.Equal(t, 1280, <-received)
}

func TestIdleConn_StallTimesOut(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	startAt := time.Now()

	_, err := newIdleConn(client, 30*time.Millisecond).Read(make([]byte, 16))

	var netErr net.Error
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
	assert.Less(t, time.Since(startAt), time.Second)
}
