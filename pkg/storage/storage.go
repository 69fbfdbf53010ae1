package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Archive 종료된 세션의 transcript를 디스크에 보관한다. DB의 speeches
// 테이블이 원본이고 여기 저장본은 내보내기/백업용이다.
type Archive struct {
	basePath string
}

// NewArchive 아카이브 생성
func NewArchive(basePath string) *Archive {
	return &Archive{
		basePath: basePath,
	}
}

// SaveTranscript transcript를 JSON으로 저장하고 상대 경로를 반환
func (a *Archive) SaveTranscript(sessionID string, transcript interface{}) (string, error) {
	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcript: %w", err)
	}

	filename := fmt.Sprintf("%s_%d.json", sessionID, time.Now().Unix())
	savePath := filepath.Join(a.basePath, "transcripts", filename)

	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(savePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}

	return filepath.Join("transcripts", filename), nil
}

// ReadTranscript 저장된 transcript 읽기
func (a *Archive) ReadTranscript(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(a.basePath, filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return data, nil
}

// DeleteFile 보관 파일 삭제
func (a *Archive) DeleteFile(filePath string) error {
	if err := os.Remove(filepath.Join(a.basePath, filePath)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetFileURL 파일 URL 생성
func (a *Archive) GetFileURL(filePath string) string {
	return fmt.Sprintf("/storage/%s", filePath)
}
