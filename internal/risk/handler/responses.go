package handler

import (
	"time"

	"tradeledger/internal/risk/models"
)

type ScoreResponse struct {
	UserID      string    `json:"user_id"`
	Score       int       `json:"score"`
	Category    string    `json:"category"`
	Rationale   string    `json:"rationale"`
	LastUpdated time.Time `json:"last_updated"`
}

type ComputeResponse struct {
	Skipped    bool              `json:"skipped"`
	SkipReason string            `json:"skip_reason,omitempty"`
	Score      *ScoreResponse    `json:"score,omitempty"`
	Breakdown  *models.Breakdown `json:"breakdown,omitempty"`
}

type ScoreListResponse struct {
	Scores []*ScoreResponse `json:"scores"`
}

type HistoryEntryResponse struct {
	ID         string    `json:"id"`
	Score      int       `json:"score"`
	Category   string    `json:"category"`
	Rationale  string    `json:"rationale"`
	Trigger    string    `json:"trigger"`
	RecordedAt time.Time `json:"recorded_at"`
}

type HistoryResponse struct {
	UserID  string                  `json:"user_id"`
	History []*HistoryEntryResponse `json:"history"`
}

func FromScore(s *models.Score) *ScoreResponse {
	return &ScoreResponse{
		UserID:      s.UserID.String(),
		Score:       s.Score,
		Category:    string(s.Category),
		Rationale:   s.Rationale,
		LastUpdated: s.LastUpdated,
	}
}

func FromResult(r *models.Result) *ComputeResponse {
	if r.Skipped {
		return &ComputeResponse{Skipped: true, SkipReason: r.SkipReason}
	}
	breakdown := r.Breakdown
	return &ComputeResponse{Score: FromScore(r.Score), Breakdown: &breakdown}
}

func FromScores(scores []*models.Score) *ScoreListResponse {
	out := &ScoreListResponse{Scores: make([]*ScoreResponse, 0, len(scores))}
	for _, s := range scores {
		out.Scores = append(out.Scores, FromScore(s))
	}
	return out
}

func FromHistory(userID string, records []*models.HistoryRecord) *HistoryResponse {
	out := &HistoryResponse{UserID: userID, History: make([]*HistoryEntryResponse, 0, len(records))}
	for _, r := range records {
		out.History = append(out.History, &HistoryEntryResponse{
			ID:         r.ID.String(),
			Score:      r.Score,
			Category:   string(r.Category),
			Rationale:  r.Rationale,
			Trigger:    string(r.Trigger),
			RecordedAt: r.RecordedAt,
		})
	}
	return out
}
