package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompatible(t *testing.T) {
	tests := []struct {
		x, y SessionType
		want bool
	}{
		{SessionStandard, SessionStandard, true},
		{SessionTracking, SessionTracking, true},
		{SessionStandard, SessionTracking, true},
		{SessionTracking, SessionStandard, true},
		{SessionStandard, SessionInterviewLike, true},
		{SessionInterviewLike, SessionStandard, true},
		{SessionStandard, SessionFullInterview, true},
		{SessionTracking, SessionInterviewLike, false},
		{SessionTracking, SessionFullInterview, false},
		{SessionInterviewLike, SessionFullInterview, false},
		{SessionFullInterview, SessionInterviewLike, false},
		{SessionInterviewLike, SessionInterviewLike, true},
		{SessionFullInterview, SessionFullInterview, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compatible(tt.x, tt.y), "Compatible(%s, %s)", tt.x, tt.y)
	}
}

func TestSessionTypeValid(t *testing.T) {
	assert.True(t, SessionStandard.Valid())
	assert.True(t, SessionTracking.Valid())
	assert.True(t, SessionInterviewLike.Valid())
	assert.True(t, SessionFullInterview.Valid())
	assert.False(t, SessionType("speedrun").Valid())
	assert.False(t, SessionType("").Valid())
}

func TestProfileFor(t *testing.T) {
	assert.Equal(t, 5, ProfileFor(SessionStandard).Length)
	assert.Equal(t, 3, ProfileFor(SessionInterviewLike).Length)
	assert.Equal(t, 1, ProfileFor(SessionInterviewLike).HintCap)
	assert.Equal(t, 0, ProfileFor(SessionFullInterview).HintCap)
	assert.Equal(t, 45, ProfileFor(SessionFullInterview).TimedMins)

	// Unknown types fall back to the standard profile.
	assert.Equal(t, ProfileFor(SessionStandard), ProfileFor(SessionType("mystery")))
}

func TestDifficultyRank(t *testing.T) {
	assert.True(t, DifficultyEasy.Rank() < DifficultyMedium.Rank())
	assert.True(t, DifficultyMedium.Rank() < DifficultyHard.Rank())
	assert.True(t, Difficulty("weird").Rank() > DifficultyHard.Rank(),
		"unknown difficulty never passes a cap")
}
