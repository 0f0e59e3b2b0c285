package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Hash(t *testing.T) {
	base := Message{
		ID:        "m1",
		SessionID: "session_1_abc",
		Role:      RoleBot,
		Text:      "Hello **world**",
		CreatedAt: time.Now().UTC(),
	}

	t.Run("identical messages produce identical hashes", func(t *testing.T) {
		m1 := base
		m2 := base
		assert.Equal(t, m1.Hash(), m2.Hash())
	})

	t.Run("id and time do not affect the hash", func(t *testing.T) {
		m2 := base
		m2.ID = "m2"
		m2.CreatedAt = base.CreatedAt.Add(time.Hour)
		assert.Equal(t, base.Hash(), m2.Hash())
	})

	t.Run("role and text do", func(t *testing.T) {
		m2 := base
		m2.Role = RoleUser
		assert.NotEqual(t, base.Hash(), m2.Hash())

		m3 := base
		m3.Text = "Hello world"
		assert.NotEqual(t, base.Hash(), m3.Hash())
	})

	t.Run("field boundaries are delimited", func(t *testing.T) {
		a := Message{SessionID: "ab", Role: RoleBot, Text: "c"}
		b := Message{SessionID: "a", Role: RoleBot, Text: "bc"}
		assert.NotEqual(t, a.Hash(), b.Hash())
	})
}

func TestHashBytes(t *testing.T) {
	assert.Len(t, HashBytes([]byte("x")), 64)
	assert.Equal(t, HashBytes([]byte("x")), HashBytes([]byte("x")))
	assert.NotEqual(t, HashBytes([]byte("x")), HashBytes([]byte("y")))
}
