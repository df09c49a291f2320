package ptr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnsetOrEqual(t *testing.T) {
	assert.True(t, UnsetOrEqual[bool](nil, true))
	assert.True(t, UnsetOrEqual(To("linux"), "linux"))
	assert.False(t, UnsetOrEqual(To(false), true))
}
