package authgate

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestGate_UnlockExpires(t *testing.T) {
	mock := clock.NewMock()
	g := New(0, mock)
	assert.Equal(t, DefaultTimeout, g.Timeout())

	assert.False(t, g.IsUnlocked("a"))

	expires := g.MarkAuthenticated("a")
	assert.Equal(t, mock.Now().Add(DefaultTimeout), expires)
	assert.True(t, g.IsUnlocked("a"))

	mock.Add(299 * time.Second)
	at, ok := g.ExpiresAt("a")
	assert.True(t, ok)
	assert.Equal(t, expires, at)

	mock.Add(time.Second)
	assert.False(t, g.IsUnlocked("a"))
	assert.Equal(t, 0, g.Len())
}

func TestGate_ReauthenticateExtends(t *testing.T) {
	mock := clock.NewMock()
	g := New(10*time.Second, mock)

	g.MarkAuthenticated("a")
	mock.Add(8 * time.Second)
	g.MarkAuthenticated("a")
	mock.Add(8 * time.Second)
	assert.True(t, g.IsUnlocked("a"))
}

func TestGate_Revoke(t *testing.T) {
	mock := clock.NewMock()
	g := New(time.Minute, mock)

	g.MarkAuthenticated("a")
	g.MarkAuthenticated("b")
	g.MarkAuthenticated("c")
	assert.Equal(t, 3, g.Len())

	g.Revoke("a")
	assert.False(t, g.IsUnlocked("a"))
	assert.True(t, g.IsUnlocked("b"))

	g.RevokeAll()
	assert.False(t, g.IsUnlocked("b"))
	assert.False(t, g.IsUnlocked("c"))
	assert.Equal(t, 0, g.Len())
}

func TestGate_LenPrunes(t *testing.T) {
	mock := clock.NewMock()
	g := New(time.Minute, mock)

	g.MarkAuthenticated("old")
	mock.Add(45 * time.Second)
	g.MarkAuthenticated("new")
	mock.Add(30 * time.Second)

	assert.Equal(t, 1, g.Len())
	assert.True(t, g.IsUnlocked("new"))
}
