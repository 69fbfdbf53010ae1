package speechgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFeedback_DecodesJudgeResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/feedback", r.URL.Path)
		json.NewEncoder(w).Encode(FeedbackResponse{
			OverallScore: 82,
			Verdict:      "win",
			Summary:      "the proposition carried the weighing",
			Categories: []CategoryFeedback{
				{
					Name:         "argumentation",
					Score:        85,
					Feedback:     "well structured case",
					Strengths:    []string{"clear impact calculus"},
					Improvements: []string{"front-load the framework"},
				},
			},
			KeyMoments: []KeyMoment{
				{Type: "clash", Description: "the rebuttal exchange on costs", Suggestion: "quantify the tradeoff"},
			},
			ResearchSuggestions: []string{"policy outcome studies"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	resp, err := client.GenerateFeedback(context.Background(), FeedbackRequest{Topic: "motion", Format: "standard"})
	require.NoError(t, err)

	assert.Equal(t, 82, resp.OverallScore)
	assert.Equal(t, "win", resp.Verdict)
	require.Len(t, resp.Categories, 1)
	assert.Equal(t, []string{"clear impact calculus"}, resp.Categories[0].Strengths)
	require.Len(t, resp.KeyMoments, 1)
	assert.Equal(t, "clash", resp.KeyMoments[0].Type)
	assert.Equal(t, []string{"policy outcome studies"}, resp.ResearchSuggestions)
}

func TestGenerateFeedback_FallsBackWhenServiceDown(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 100*time.Millisecond)

	resp, err := client.GenerateFeedback(context.Background(), FeedbackRequest{Topic: "motion"})
	require.NoError(t, err)

	// 폴백도 계약 전체를 채운다
	assert.Equal(t, "close", resp.Verdict)
	assert.Equal(t, 50, resp.OverallScore)
	assert.NotEmpty(t, resp.Summary)
	assert.NotEmpty(t, resp.Categories)
	assert.NotNil(t, resp.KeyMoments)
	assert.NotEmpty(t, resp.ResearchSuggestions)
}

func TestGenerateFeedback_FallsBackOnEmptyVerdict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	resp, err := client.GenerateFeedback(context.Background(), FeedbackRequest{})
	require.NoError(t, err)
	assert.Equal(t, "close", resp.Verdict)
}

func TestGenerateSpeech_FallsBackWhenServiceDown(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 100*time.Millisecond)

	resp, err := client.GenerateSpeech(context.Background(), SpeechRequest{
		Topic: "motion",
		Side:  "opposition",
		Phase: "opp_rebuttal",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "opposition")
}
