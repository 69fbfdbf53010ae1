package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsistentResults(t *testing.T) {
	tests := []struct {
		name       string
		a, b       Result
		consistent bool
	}{
		{"win/loss", ResultWin, ResultLoss, true},
		{"loss/win", ResultLoss, ResultWin, true},
		{"draw/draw", ResultDraw, ResultDraw, true},
		{"win/win", ResultWin, ResultWin, false},
		{"loss/loss", ResultLoss, ResultLoss, false},
		{"win/draw", ResultWin, ResultDraw, false},
		{"draw/loss", ResultDraw, ResultLoss, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.consistent, ConsistentResults(tt.a, tt.b))
		})
	}
}
