package webrtcsink

import (
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSink_DisabledWriteIsNoop(t *testing.T) {
	s := NewDisabled()
	err := s.Write(Snapshot{Stage: "SoftStop"})
	require.NoError(t, err)
}

func TestPublishSink_CloseIsIdempotent(t *testing.T) {
	s := NewDisabled()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestPublishSink_SetAnswerBeforeOfferIsAnError(t *testing.T) {
	s := NewDisabled()
	err := s.SetAnswer(webrtc.SessionDescription{})
	assert.Error(t, err)
}
