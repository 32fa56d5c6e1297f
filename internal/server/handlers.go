package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/scholar/models"
)

// ResearchHandler serves the research API for the caller's session.
type ResearchHandler struct {
	Research Research
}

func (h *ResearchHandler) Register(g *echo.Group) {
	g.GET("/session-id", h.sessionID)
	g.POST("/chat", h.chat)
	g.POST("/clear-context", h.clearContext)
	g.GET("/context", h.context)
	g.GET("/summary", h.summary)
	g.GET("/topics", h.topics)
	g.POST("/search-papers", h.searchPapers)
	g.POST("/analyze-paper", h.analyzePaper)
	g.POST("/analyze-text", h.analyzeText)
	g.GET("/research-papers", h.researchPapers)
	g.GET("/citations", h.citations)
	g.GET("/research-findings", h.findings)
	g.POST("/literature-review", h.literatureReview)
}

// bind decodes and validates a request body.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return models.NewValidationError("body", "malformed JSON")
	}
	return c.Validate(req)
}

var ack = struct{}{}

func (h *ResearchHandler) sessionID(c echo.Context) error {
	return c.JSON(http.StatusOK, SessionResponse{SessionID: sessionID(c)})
}

func (h *ResearchHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	reply, err := h.Research.Chat(c.Request().Context(), sessionID(c), req.Message, req.Mode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ChatResponse{Response: reply})
}

func (h *ResearchHandler) clearContext(c echo.Context) error {
	if err := h.Research.ClearContext(c.Request().Context(), sessionID(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ack)
}

func (h *ResearchHandler) context(c echo.Context) error {
	snap, err := h.Research.GetContext(c.Request().Context(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *ResearchHandler) summary(c echo.Context) error {
	summary, err := h.Research.GetSummary(c.Request().Context(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SummaryResponse{Summary: summary})
}

func (h *ResearchHandler) topics(c echo.Context) error {
	topics, err := h.Research.GetTopics(c.Request().Context(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TopicsResponse{Topics: topics})
}

func (h *ResearchHandler) searchPapers(c echo.Context) error {
	var req SearchPapersRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	papers, err := h.Research.SearchPapers(c.Request().Context(), sessionID(c), req.Query, req.MaxResults)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PapersResponse{Papers: papers})
}

func (h *ResearchHandler) analyzePaper(c echo.Context) error {
	var req AnalyzePaperRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p := models.Paper{Title: req.Title, Authors: req.Authors, Abstract: req.Abstract, Year: req.Year, URL: req.URL}
	if _, err := h.Research.AnalyzePaper(c.Request().Context(), sessionID(c), p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ack)
}

func (h *ResearchHandler) analyzeText(c echo.Context) error {
	var req AnalyzeTextRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ext, err := h.Research.AnalyzeText(c.Request().Context(), sessionID(c), req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ext)
}

func (h *ResearchHandler) researchPapers(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return models.NewValidationError("limit", "must be a non-negative integer")
		}
		limit = n
	}
	papers, err := h.Research.GetPapers(c.Request().Context(), sessionID(c), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PapersResponse{Papers: papers})
}

func (h *ResearchHandler) citations(c echo.Context) error {
	citations, err := h.Research.GetCitations(c.Request().Context(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CitationsResponse{Citations: citations})
}

func (h *ResearchHandler) findings(c echo.Context) error {
	findings, err := h.Research.GetFindings(c.Request().Context(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, FindingsResponse{Findings: findings})
}

func (h *ResearchHandler) literatureReview(c echo.Context) error {
	var req LiteratureReviewRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	review, err := h.Research.GenerateLiteratureReview(c.Request().Context(), sessionID(c), req.Topic)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LiteratureReviewResponse{Review: review})
}
