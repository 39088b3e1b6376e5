package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestBackoffGrowth(t *testing.T) {
	t.Parallel()

	base := 1 * time.Second
	limit := 30 * time.Second

	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // 32s capped
	}
	for n := 1; n <= 5; n++ {
		require.Equal(t, want[n-1], Backoff(n, base, limit), "attempt %d", n)
	}

	// Stays capped beyond the window.
	require.Equal(t, limit, Backoff(9, base, limit))
}

func TestClassifyClose(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want closeKind
	}{
		{"normal", &websocket.CloseError{Code: websocket.CloseNormalClosure}, closeNormal},
		{"going away", &websocket.CloseError{Code: websocket.CloseGoingAway}, closeAbnormal},
		{"abnormal 1006", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, closeAbnormal},
		{"token expired 4001", &websocket.CloseError{Code: 4001}, closeAuth},
		{"auth rejected 4003", &websocket.CloseError{Code: 4003}, closeAuth},
		{"policy 1008", &websocket.CloseError{Code: websocket.ClosePolicyViolation}, closePolicy},
		{"handshake timeout", ErrConnectTimeout, closeTimeout},
		{"plain network error", errors.New("connection reset by peer"), closeAbnormal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, classifyClose(tc.err), tc.name)
	}
}
