package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchRequestValidate(t *testing.T) {
	valid := SearchRequest{
		Query:       "fintech founders",
		EntityType:  EntityPerson,
		TargetCount: 10,
	}

	tests := []struct {
		name    string
		mutate  func(*SearchRequest)
		wantErr bool
	}{
		{"valid request", func(r *SearchRequest) {}, false},
		{"company entity", func(r *SearchRequest) { r.EntityType = EntityCompany }, false},
		{"missing query", func(r *SearchRequest) { r.Query = "" }, true},
		{"zero target", func(r *SearchRequest) { r.TargetCount = 0 }, true},
		{"negative target", func(r *SearchRequest) { r.TargetCount = -1 }, true},
		{"unknown entity", func(r *SearchRequest) { r.EntityType = "robot" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusIdle.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusTimedOut.Terminal())
	assert.True(t, StatusCanceled.Terminal())
}

func TestCompletionPercent(t *testing.T) {
	tests := []struct {
		name   string
		found  int
		target int
		want   int
	}{
		{"zero found", 0, 10, 0},
		{"half way", 5, 10, 50},
		{"rounds to nearest", 1, 3, 33},
		{"capped at hundred", 15, 10, 100},
		{"zero target treated as one", 1, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompletionPercent(tt.found, tt.target))
		})
	}
}
