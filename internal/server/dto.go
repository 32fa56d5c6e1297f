package server

import "github.com/mohammad-safakhou/scholar/models"

type ChatRequest struct {
	Message string `json:"message" validate:"required"`
	Mode    string `json:"mode"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

type SearchPapersRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results" validate:"gte=0,lte=50"`
}

type PapersResponse struct {
	Papers []models.Paper `json:"papers"`
}

type AnalyzePaperRequest struct {
	Title    string   `json:"title" validate:"required"`
	Authors  []string `json:"authors" validate:"omitempty,dive,max=256"`
	Abstract string   `json:"abstract" validate:"required"`
	Year     *int     `json:"year" validate:"omitempty,gte=1000,lte=3000"`
	URL      string   `json:"url" validate:"omitempty,url"`
}

type AnalyzeTextRequest struct {
	Text string `json:"text" validate:"required"`
}

type LiteratureReviewRequest struct {
	Topic string `json:"topic" validate:"required"`
}

type LiteratureReviewResponse struct {
	Review string `json:"review"`
}

type SummaryResponse struct {
	Summary string `json:"summary"`
}

type TopicsResponse struct {
	Topics []string `json:"topics"`
}

type CitationsResponse struct {
	Citations []models.Citation `json:"citations"`
}

type FindingsResponse struct {
	Findings []models.Finding `json:"findings"`
}

type SessionResponse struct {
	SessionID string `json:"session_id"`
}
