package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mini-event-api/internal/dto"
	"github.com/noah-isme/mini-event-api/internal/models"
	"github.com/noah-isme/mini-event-api/pkg/response"
)

type categorySuggester interface {
	SuggestCategory(title, notes string) (models.Category, error)
}

// CategoryHandler exposes the category suggestion endpoint.
type CategoryHandler struct {
	suggester categorySuggester
}

// NewCategoryHandler constructs the handler.
func NewCategoryHandler(suggester categorySuggester) *CategoryHandler {
	return &CategoryHandler{suggester: suggester}
}

// Suggest godoc
// @Summary Suggest a category
// @Description Classifies a title and notes without storing anything.
// @Tags Events
// @Produce json
// @Param title query string false "Event title"
// @Param notes query string false "Event notes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /category [get]
func (h *CategoryHandler) Suggest(c *gin.Context) {
	category, err := h.suggester.SuggestCategory(c.Query("title"), c.Query("notes"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CategorySuggestion{Category: category}, nil)
}

// Categories godoc
// @Summary List categories
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *CategoryHandler) Categories(c *gin.Context) {
	response.JSON(c, http.StatusOK, models.Categories, nil)
}
