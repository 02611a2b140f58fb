package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStoreDefaults(t *testing.T) {
	s := New(0)

	assert.Equal(t, "", s.Tackle("u1"))
	assert.True(t, s.Visible("u1"))
}

func TestStoreTackleIsPerOwner(t *testing.T) {
	s := New(time.Hour)

	s.SetTackle("u1", "Texas rig")
	s.SetVisible("u1", false)

	assert.Equal(t, "Texas rig", s.Tackle("u1"))
	assert.False(t, s.Visible("u1"))
	assert.Equal(t, "", s.Tackle("u2"))
	assert.True(t, s.Visible("u2"))
}

func TestStoreClear(t *testing.T) {
	s := New(time.Hour)
	s.SetTackle("u1", "Jig")
	s.SetVisible("u1", false)
	s.SetTackle("u2", "Spoon")

	s.Clear("u1")

	assert.Equal(t, "", s.Tackle("u1"))
	assert.True(t, s.Visible("u1"))
	assert.Equal(t, "Spoon", s.Tackle("u2"))
}

func TestStoreExpiry(t *testing.T) {
	s := New(10 * time.Millisecond)
	s.SetTackle("u1", "Jig")

	assert.Eventually(t, func() bool { return s.Tackle("u1") == "" }, time.Second, 5*time.Millisecond)
}

func TestStoreExpiryCountsFromLastSet(t *testing.T) {
	s := New(200 * time.Millisecond)
	s.SetTackle("u1", "Jig")

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "Jig", s.Tackle("u1"))

	// The read above does not push expiry out.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, "", s.Tackle("u1"))
}
