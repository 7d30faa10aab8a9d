package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequest_Options(t *testing.T) {
	stop := []string{"\n\n", "END"}
	r := NewRequest("hi",
		WithSystemPrompt("sys"),
		WithTemperature(0),
		WithMaxTokens(64),
		WithStop(stop...),
		WithStream(true),
	)
	stop[0] = "mutated"

	assert.Equal(t, "hi", r.Prompt)
	assert.Equal(t, "sys", r.SystemPrompt)
	assert.Equal(t, 0.0, r.Temperature)
	assert.Equal(t, 64, r.MaxTokens)
	assert.Equal(t, []string{"\n\n", "END"}, r.Stop)
	assert.True(t, r.Stream)

	assert.Equal(t, DefaultTemperature, NewRequest("x").Temperature)
}

func TestRequest_Validate(t *testing.T) {
	assert.NoError(t, NewRequest("ok").Validate())
	assert.NoError(t, NewRequest("ok", WithTemperature(1)).Validate())

	for name, r := range map[string]Request{
		"empty prompt":     NewRequest("  "),
		"temperature low":  NewRequest("x", WithTemperature(-0.1)),
		"temperature high": NewRequest("x", WithTemperature(1.5)),
		"negative tokens":  NewRequest("x", WithMaxTokens(-1)),
	} {
		assert.ErrorIs(t, r.Validate(), ErrInvalidRequest, name)
	}
}
