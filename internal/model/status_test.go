package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"draft", "submitted", "approved", "rejected"} {
		st, err := ParseStatus(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, st.String())
	}

	_, err := ParseStatus("pending")
	assert.Error(t, err)
	_, err = ParseStatus("")
	assert.Error(t, err)
}

func TestIsEditable(t *testing.T) {
	assert.True(t, StatusDraft.IsEditable())
	assert.True(t, StatusSubmitted.IsEditable())
	assert.True(t, StatusRejected.IsEditable())
	assert.False(t, StatusApproved.IsEditable())
	assert.False(t, Status("garbage").IsEditable())
}

func TestCanReview(t *testing.T) {
	assert.True(t, StatusSubmitted.CanReview())
	assert.False(t, StatusDraft.CanReview())
	assert.False(t, StatusApproved.CanReview())
	assert.False(t, StatusRejected.CanReview())
}

func TestCanResubmit(t *testing.T) {
	assert.True(t, StatusRejected.CanResubmit())
	assert.True(t, StatusDraft.CanResubmit())
	assert.False(t, StatusSubmitted.CanResubmit())
	assert.False(t, StatusApproved.CanResubmit())
}
