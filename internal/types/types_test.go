package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageValidate(t *testing.T) {
	t.Run("text message", func(t *testing.T) {
		assert.NoError(t, Message{Role: RoleUser, Content: "hi"}.Validate())
	})
	t.Run("media only", func(t *testing.T) {
		assert.NoError(t, Message{Role: RoleAssistant, Kind: KindImage, MediaURL: "data:image/png;base64,AA=="}.Validate())
	})
	t.Run("empty without media", func(t *testing.T) {
		assert.Error(t, Message{Role: RoleAssistant}.Validate())
	})
	t.Run("bad role", func(t *testing.T) {
		assert.Error(t, Message{Role: "system", Content: "x"}.Validate())
	})
}

func TestMessageCloneDoesNotShareLinks(t *testing.T) {
	orig := Message{Role: RoleAssistant, Content: "a", GroundingLinks: []GroundingLink{{URI: "https://a", Title: "A"}}}
	c := orig.Clone()
	c.GroundingLinks[0].Title = "changed"
	assert.Equal(t, "A", orig.GroundingLinks[0].Title)
}

func TestJobSettingsValidate(t *testing.T) {
	require.NoError(t, DefaultJobSettings().Validate())

	bad := DefaultJobSettings()
	bad.Resolution = "4096"
	assert.Error(t, bad.Validate())

	bad = DefaultJobSettings()
	bad.Mode = "voxels"
	assert.Error(t, bad.Validate())
}

func TestDefaultJobSettingsValues(t *testing.T) {
	s := DefaultJobSettings()
	assert.Equal(t, Resolution1024, s.Resolution)
	assert.Equal(t, ModePointCloud, s.Mode)
	assert.Equal(t, IntrinsicsAuto, s.CameraIntrinsics)
	assert.Equal(t, OptimizeQuality, s.Optimization)
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("chat: %w", NewError(KindProviderUnavailable, "provider.Chat", cause))

	assert.Equal(t, KindProviderUnavailable, KindOf(err))
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, ErrorKind(""), KindOf(cause))
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobPending.Terminal())
	assert.False(t, JobProcessing.Terminal())
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
}
