package models

import "time"

// FormatProfile 토론 형식별 phase 시간 예산. 세 형식 모두 구조는
// 동일하고 절대 시간만 다르다.
type FormatProfile struct {
	Name             string        `json:"name"`
	PrepTime         time.Duration `json:"prepTime"`
	ConstructiveTime time.Duration `json:"constructiveTime"`
	RebuttalTime     time.Duration `json:"rebuttalTime"`
	ClosingTime      time.Duration `json:"closingTime"`
}

const (
	FormatBlitz    = "blitz"
	FormatStandard = "standard"
	FormatExtended = "extended"
)

var formatProfiles = map[string]FormatProfile{
	FormatBlitz: {
		Name:             FormatBlitz,
		PrepTime:         30 * time.Second,
		ConstructiveTime: 60 * time.Second,
		RebuttalTime:     45 * time.Second,
		ClosingTime:      30 * time.Second,
	},
	FormatStandard: {
		Name:             FormatStandard,
		PrepTime:         2 * time.Minute,
		ConstructiveTime: 3 * time.Minute,
		RebuttalTime:     2 * time.Minute,
		ClosingTime:      90 * time.Second,
	},
	FormatExtended: {
		Name:             FormatExtended,
		PrepTime:         5 * time.Minute,
		ConstructiveTime: 7 * time.Minute,
		RebuttalTime:     4 * time.Minute,
		ClosingTime:      3 * time.Minute,
	},
}

// FormatByName returns the profile for a format name.
func FormatByName(name string) (FormatProfile, bool) {
	p, ok := formatProfiles[name]
	return p, ok
}

// PhaseDuration 해당 phase의 시간 예산. 발언 phase가 아니면 0.
func (f FormatProfile) PhaseDuration(p Phase) time.Duration {
	switch p {
	case PhasePrep:
		return f.PrepTime
	case PhasePropConstructive, PhaseOppConstructive:
		return f.ConstructiveTime
	case PhasePropRebuttal, PhaseOppRebuttal:
		return f.RebuttalTime
	case PhasePropClosing, PhaseOppClosing:
		return f.ClosingTime
	}
	return 0
}
