package imagegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	got, err := URL("Taj Mahal at sunset/dusk?")
	require.NoError(t, err)
	assert.Equal(t, "https://image.pollinations.ai/prompt/Taj%20Mahal%20at%20sunset%2Fdusk%3F", got)

	_, err = URL("  ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}
