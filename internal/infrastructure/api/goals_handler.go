package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/elgomatiae/muslim-space-sub000/internal/application"
	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
)

// GoalsHandler serves the caller's goal records.
type GoalsHandler struct {
	manageUseCase *application.ManageGoalsUseCase
}

// NewGoalsHandler creates a new GoalsHandler.
func NewGoalsHandler(manageUseCase *application.ManageGoalsUseCase) *GoalsHandler {
	return &GoalsHandler{manageUseCase: manageUseCase}
}

// RegisterRoutes registers the goal routes on the given group.
func (h *GoalsHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/me/goals", h.ListGoals)
	g.GET("/me/goals/:category", h.GetGoals)
	g.PUT("/me/goals/:category", h.UpdateGoals)
}

// GoalComponentDTO is one habit in a goal record.
type GoalComponentDTO struct {
	Key       string  `json:"key"`
	Target    float64 `json:"target"`
	Completed float64 `json:"completed"`
}

// GoalRecordResponse is one category's goals.
type GoalRecordResponse struct {
	Category             string             `json:"category"`
	Components           []GoalComponentDTO `json:"components"`
	CompletedObligations []string           `json:"completed_obligations"`
}

// ListGoalsResponse holds every category's goals.
type ListGoalsResponse struct {
	Goals []GoalRecordResponse `json:"goals"`
}

// UpdateGoalsRequest replaces the listed components. omitting
// completed_obligations leaves the stored list untouched.
type UpdateGoalsRequest struct {
	Components           []GoalComponentDTO `json:"components"`
	CompletedObligations []string           `json:"completed_obligations"`
}

// ListGoals handles GET /api/v1/me/goals
func (h *GoalsHandler) ListGoals(c echo.Context) error {
	records, err := h.manageUseCase.List(c.Request().Context(), GetUserID(c))
	if err != nil {
		return mapDomainError(err)
	}

	resp := ListGoalsResponse{Goals: make([]GoalRecordResponse, 0, len(records))}
	for _, record := range records {
		resp.Goals = append(resp.Goals, goalRecordResponse(record))
	}
	return c.JSON(http.StatusOK, resp)
}

// GetGoals handles GET /api/v1/me/goals/:category
func (h *GoalsHandler) GetGoals(c echo.Context) error {
	record, err := h.manageUseCase.Get(c.Request().Context(), GetUserID(c), c.Param("category"))
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, goalRecordResponse(record))
}

// UpdateGoals handles PUT /api/v1/me/goals/:category
func (h *GoalsHandler) UpdateGoals(c echo.Context) error {
	var req UpdateGoalsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	input := application.UpdateGoalsInput{
		UserID:               GetUserID(c),
		Category:             c.Param("category"),
		CompletedObligations: req.CompletedObligations,
	}
	for _, comp := range req.Components {
		input.Components = append(input.Components, application.GoalComponentInput{
			Key:       comp.Key,
			Target:    comp.Target,
			Completed: comp.Completed,
		})
	}

	record, err := h.manageUseCase.Update(c.Request().Context(), input)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, goalRecordResponse(record))
}

func goalRecordResponse(record domain.GoalRecord) GoalRecordResponse {
	resp := GoalRecordResponse{
		Category:             record.Category.String(),
		Components:           make([]GoalComponentDTO, 0, len(record.Components)),
		CompletedObligations: append([]string{}, record.CompletedObligations...),
	}
	for _, comp := range record.Components {
		resp.Components = append(resp.Components, GoalComponentDTO{
			Key:       comp.Key,
			Target:    comp.Target,
			Completed: comp.Completed,
		})
	}
	return resp
}
