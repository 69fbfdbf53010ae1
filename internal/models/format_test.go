package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatByName(t *testing.T) {
	for _, name := range []string{FormatBlitz, FormatStandard, FormatExtended} {
		profile, ok := FormatByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, profile.Name)
	}

	_, ok := FormatByName("marathon")
	assert.False(t, ok)
}

func TestPhaseDuration(t *testing.T) {
	profile, ok := FormatByName(FormatStandard)
	require.True(t, ok)

	assert.Equal(t, 2*time.Minute, profile.PhaseDuration(PhasePrep))
	assert.Equal(t, 3*time.Minute, profile.PhaseDuration(PhasePropConstructive))
	assert.Equal(t, 3*time.Minute, profile.PhaseDuration(PhaseOppConstructive))
	assert.Equal(t, 2*time.Minute, profile.PhaseDuration(PhasePropRebuttal))
	assert.Equal(t, 90*time.Second, profile.PhaseDuration(PhaseOppClosing))

	// 발언이 없는 phase는 시간 예산이 없다
	assert.Equal(t, time.Duration(0), profile.PhaseDuration(PhaseDebateComplete))
	assert.Equal(t, time.Duration(0), profile.PhaseDuration(PhaseJudging))
	assert.Equal(t, time.Duration(0), profile.PhaseDuration(PhaseResults))
}
