package discord

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

// roundTripFunc answers requests without a network.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestGuildRequestsCounts(t *testing.T) {
	d, err := NewDiscord(zaptest.NewLogger(t), "token", false)
	require.NoError(t, err)

	var requested *http.Request
	d.session.Client = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		requested = r
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"id":"1","name":"guild","approximate_member_count":42}`)),
			Request:    r,
		}, nil
	})}

	dg, err := d.Guild(t.Context(), 1)
	require.NoError(t, err)
	require.NotNil(t, requested)
	assert.Equal(t, "true", requested.URL.Query().Get("with_counts"))
	assert.Equal(t, "Bot token", requested.Header.Get("Authorization"))

	g, err := entity.NewGuildFromDiscord(dg)
	require.NoError(t, err)
	assert.Equal(t, 42, g.MemberCount)
}
