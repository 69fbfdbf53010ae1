package speechgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/debate-arena/debate-arena-backend/pkg/logger"
)

// Client 발언 생성 서비스 HTTP 클라이언트. AI 대역의 발언과 심판
// 피드백을 외부 서비스에 위임한다. 서비스가 죽어 있어도 토론이 멈추면
// 안 되므로 모든 호출에 정적 폴백이 있다.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 발언 생성 클라이언트 생성
func NewClient(baseURL string, timeout time.Duration) *Client {
	logger.Info("Speech generation client configured", "baseUrl", baseURL)

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// TranscriptLine 지금까지의 발언 한 줄
type TranscriptLine struct {
	Phase   string `json:"phase"`
	Side    string `json:"side"`
	Content string `json:"content"`
}

// SpeechRequest AI 대역 발언 생성 요청
type SpeechRequest struct {
	Topic      string           `json:"topic"`
	Side       string           `json:"side"`
	Phase      string           `json:"phase"`
	Transcript []TranscriptLine `json:"transcript"`
}

// SpeechResponse 생성된 발언
type SpeechResponse struct {
	Content string `json:"content"`
}

// FeedbackRequest 심판 피드백 생성 요청
type FeedbackRequest struct {
	Topic      string           `json:"topic"`
	Format     string           `json:"format"`
	Transcript []TranscriptLine `json:"transcript"`
}

// CategoryFeedback 평가 항목별 점수와 코멘트
type CategoryFeedback struct {
	Name         string   `json:"name"`
	Score        int      `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// KeyMoment 토론 흐름을 바꾼 순간
type KeyMoment struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

// FeedbackResponse 심판 피드백
type FeedbackResponse struct {
	OverallScore        int                `json:"overallScore"`
	Verdict             string             `json:"verdict"` // "win", "loss", "close"
	Summary             string             `json:"summary"`
	Categories          []CategoryFeedback `json:"categories"`
	KeyMoments          []KeyMoment        `json:"keyMoments"`
	ResearchSuggestions []string           `json:"researchSuggestions"`
}

// GenerateSpeech AI 대역 발언 생성. 실패하면 정적 폴백 발언을 반환한다.
func (c *Client) GenerateSpeech(ctx context.Context, req SpeechRequest) (*SpeechResponse, error) {
	var resp SpeechResponse
	if err := c.post(ctx, "/v1/speech", req, &resp); err != nil {
		logger.Warn("Speech generation failed, using fallback", "phase", req.Phase, "error", err)
		return fallbackSpeech(req), nil
	}

	if resp.Content == "" {
		return fallbackSpeech(req), nil
	}

	return &resp, nil
}

// GenerateFeedback 심판 피드백 생성. 실패하면 무승부 폴백을 반환한다.
func (c *Client) GenerateFeedback(ctx context.Context, req FeedbackRequest) (*FeedbackResponse, error) {
	var resp FeedbackResponse
	if err := c.post(ctx, "/v1/feedback", req, &resp); err != nil {
		logger.Warn("Feedback generation failed, using fallback", "error", err)
		return fallbackFeedback(), nil
	}

	if resp.Verdict == "" {
		return fallbackFeedback(), nil
	}

	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", httpResp.StatusCode)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func fallbackSpeech(req SpeechRequest) *SpeechResponse {
	var content string
	switch req.Side {
	case "proposition":
		content = fmt.Sprintf("On the motion %q, the proposition maintains its case as presented.", req.Topic)
	default:
		content = fmt.Sprintf("On the motion %q, the opposition maintains its objections as presented.", req.Topic)
	}

	return &SpeechResponse{Content: content}
}

func fallbackFeedback() *FeedbackResponse {
	return &FeedbackResponse{
		OverallScore: 50,
		Verdict:      "close",
		Summary:      "Automated judging was unavailable, so this debate was scored as too close to call.",
		Categories: []CategoryFeedback{
			{
				Name:         "overall",
				Score:        50,
				Feedback:     "The judging service could not be reached for this session.",
				Strengths:    []string{"Both sides completed every speech phase."},
				Improvements: []string{"Request a rejudge once the judging service is available."},
			},
		},
		KeyMoments: []KeyMoment{},
		ResearchSuggestions: []string{
			"Review the archived transcript to evaluate the arguments yourself.",
		},
	}
}
