package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAvatar(t *testing.T) {
	assert.Len(t, Avatars, 30)
	assert.True(t, IsAvatar("🦊"))
	assert.True(t, IsAvatar(Avatars[len(Avatars)-1]))
	assert.False(t, IsAvatar("A"))
	assert.False(t, IsAvatar(""))
}
