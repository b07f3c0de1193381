package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicketIsCurrentUntilSuperseded(t *testing.T) {
	g := NewGenerations()

	first := g.Next("active")
	other := g.Next("conversations")
	assert.True(t, first.Current())

	second := g.Next("active")
	assert.False(t, first.Current())
	assert.True(t, second.Current())
	assert.True(t, other.Current())

	g.Invalidate("active")
	assert.False(t, second.Current())
}
