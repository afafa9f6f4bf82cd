package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/elgomatiae/muslim-space-sub000/internal/application"
	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
)

// ScoresHandler serves scoring cycles, stored scores and the leaderboard.
type ScoresHandler struct {
	computeUseCase *application.ComputeScoresUseCase
	queryUseCase   *application.QueryScoresUseCase
	resetUseCase   *application.ResetMomentumUseCase
}

// NewScoresHandler creates a new ScoresHandler.
func NewScoresHandler(
	computeUseCase *application.ComputeScoresUseCase,
	queryUseCase *application.QueryScoresUseCase,
	resetUseCase *application.ResetMomentumUseCase,
) *ScoresHandler {
	return &ScoresHandler{
		computeUseCase: computeUseCase,
		queryUseCase:   queryUseCase,
		resetUseCase:   resetUseCase,
	}
}

// RegisterRoutes registers the score routes on the given group.
// computeLimit, when set, only guards the scoring cycle.
func (h *ScoresHandler) RegisterRoutes(g *echo.Group, computeLimit ...echo.MiddlewareFunc) {
	g.POST("/me/scores", h.ComputeScores, computeLimit...)
	g.GET("/me/scores", h.LatestScores)
	g.GET("/me/scores/history", h.ScoreHistory)
	g.POST("/me/momentum/reset", h.ResetMomentum)
	g.GET("/leaderboard", h.Leaderboard)
}

// ComputeScoresRequest locates the user for today's prayer times.
// an empty body scores with every obligation due.
type ComputeScoresRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Method    int     `json:"method,omitempty"`
	TimeZone  string  `json:"time_zone,omitempty"`
}

// CategoryScoresDTO holds one percentage per category.
type CategoryScoresDTO struct {
	Worship   int `json:"worship"`
	Knowledge int `json:"knowledge"`
	Wellbeing int `json:"wellbeing"`
}

// ScoreResponse is one stored scoring result.
type ScoreResponse struct {
	UserID     string            `json:"user_id"`
	Fresh      CategoryScoresDTO `json:"fresh"`
	Final      CategoryScoresDTO `json:"final"`
	Overall    int               `json:"overall"`
	Status     string            `json:"status"`
	Fallbacks  []string          `json:"fallbacks"`
	ComputedAt time.Time         `json:"computed_at"`
}

// LatestScoreResponse is the latest result plus the user's leaderboard
// position, omitted when no leaderboard is configured.
type LatestScoreResponse struct {
	ScoreResponse
	Rank *int `json:"rank,omitempty"`
}

// MomentumDTO describes the engine branch a cycle took.
type MomentumDTO struct {
	Phase                 string  `json:"phase"`
	Multiplier            float64 `json:"multiplier"`
	ConsecutiveActiveDays int     `json:"consecutive_active_days"`
	DecayFactor           float64 `json:"decay_factor"`
}

// ResetDTO reports which goal periods were zeroed.
type ResetDTO struct {
	Daily  bool `json:"daily"`
	Weekly bool `json:"weekly"`
}

// ComputeScoresResponse is the result of a scoring cycle.
type ComputeScoresResponse struct {
	ScoreResponse
	Momentum       MomentumDTO `json:"momentum"`
	DueObligations int         `json:"due_obligations"`
	Reset          ResetDTO    `json:"reset"`
	Persisted      bool        `json:"persisted"`
}

// ScoreHistoryResponse lists past results, newest first.
type ScoreHistoryResponse struct {
	Scores []ScoreResponse `json:"scores"`
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank    int    `json:"rank"`
	UserID  string `json:"user_id"`
	Overall int    `json:"overall"`
}

// LeaderboardResponse is one page of the leaderboard.
type LeaderboardResponse struct {
	Entries []LeaderboardEntry `json:"entries"`
	Offset  int                `json:"offset"`
}

// ComputeScores handles POST /api/v1/me/scores
// storage and provider failures still answer 200 with status fallback_used.
func (h *ScoresHandler) ComputeScores(c echo.Context) error {
	var req ComputeScoresRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		return echo.NewHTTPError(http.StatusBadRequest, "coordinates out of range")
	}

	output, err := h.computeUseCase.Execute(c.Request().Context(), application.ComputeScoresInput{
		UserID: GetUserID(c),
		Location: domain.Location{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Method:    req.Method,
			TimeZone:  req.TimeZone,
		},
	})
	if err != nil {
		return mapDomainError(err)
	}

	return c.JSON(http.StatusOK, ComputeScoresResponse{
		ScoreResponse: scoreResponse(output.Record),
		Momentum: MomentumDTO{
			Phase:                 string(output.Phase),
			Multiplier:            output.Multiplier,
			ConsecutiveActiveDays: output.ConsecutiveActiveDays,
			DecayFactor:           output.DecayFactor,
		},
		DueObligations: output.DueObligations,
		Reset:          ResetDTO{Daily: output.Reset.Daily, Weekly: output.Reset.Weekly},
		Persisted:      output.Persisted,
	})
}

// LatestScores handles GET /api/v1/me/scores
func (h *ScoresHandler) LatestScores(c echo.Context) error {
	ctx := c.Request().Context()
	record, err := h.queryUseCase.Latest(ctx, GetUserID(c))
	if err != nil {
		return mapDomainError(err)
	}

	resp := LatestScoreResponse{ScoreResponse: scoreResponse(record)}
	if rank, ok := h.queryUseCase.Rank(ctx, GetUserID(c)); ok {
		resp.Rank = &rank
	}
	return c.JSON(http.StatusOK, resp)
}

// ScoreHistory handles GET /api/v1/me/scores/history?limit=
func (h *ScoresHandler) ScoreHistory(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}

	records, err := h.queryUseCase.History(c.Request().Context(), GetUserID(c), limit)
	if err != nil {
		return mapDomainError(err)
	}

	resp := ScoreHistoryResponse{Scores: make([]ScoreResponse, 0, len(records))}
	for _, record := range records {
		resp.Scores = append(resp.Scores, scoreResponse(record))
	}
	return c.JSON(http.StatusOK, resp)
}

// ResetMomentum handles POST /api/v1/me/momentum/reset
func (h *ScoresHandler) ResetMomentum(c echo.Context) error {
	if err := h.resetUseCase.Execute(c.Request().Context(), GetUserID(c)); err != nil {
		return mapDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Leaderboard handles GET /api/v1/leaderboard?limit=&offset=
func (h *ScoresHandler) Leaderboard(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return err
	}
	if offset < 0 {
		offset = 0
	}

	records, err := h.queryUseCase.Leaderboard(c.Request().Context(), limit, offset)
	if err != nil {
		return mapDomainError(err)
	}

	resp := LeaderboardResponse{Entries: make([]LeaderboardEntry, 0, len(records)), Offset: offset}
	for i, record := range records {
		resp.Entries = append(resp.Entries, LeaderboardEntry{
			Rank:    offset + i + 1,
			UserID:  record.UserID.String(),
			Overall: record.Overall.Int(),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// queryInt reads an optional integer query parameter. absent means zero.
func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
	}
	return n, nil
}

func scoreResponse(record domain.ScoreRecord) ScoreResponse {
	resp := ScoreResponse{
		UserID:     record.UserID.String(),
		Fresh:      categoryScoresDTO(record.Fresh),
		Final:      categoryScoresDTO(record.Final),
		Overall:    record.Overall.Int(),
		Status:     string(record.Status),
		Fallbacks:  make([]string, 0, len(record.Fallbacks)),
		ComputedAt: record.ComputedAt,
	}
	for _, f := range record.Fallbacks {
		resp.Fallbacks = append(resp.Fallbacks, string(f))
	}
	return resp
}

func categoryScoresDTO(s domain.CategoryScores) CategoryScoresDTO {
	return CategoryScoresDTO{
		Worship:   s.Worship.Int(),
		Knowledge: s.Knowledge.Int(),
		Wellbeing: s.Wellbeing.Int(),
	}
}
