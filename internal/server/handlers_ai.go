package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pastportals/backend/internal/imagegen"
	"github.com/pastportals/backend/internal/prompt"
)

type AIHandler struct {
	Prompts PromptEnhancer
}

type promptRequest struct {
	WikipediaText string `json:"wikipediaText" validate:"required"`
}

func (h *AIHandler) Register(g *echo.Group) {
	g.POST("/ai-prompt/generate", h.generatePrompt)
	// Older mobile builds post to the provider-named path.
	g.POST("/gemini/generate-prompt", h.generatePrompt)
	g.GET("/generate-image", h.generateImage)
}

func (h *AIHandler) generatePrompt(c echo.Context) error {
	if h.Prompts == nil {
		return prompt.ErrNotConfigured
	}
	var req promptRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	out, err := h.Prompts.Enhance(c.Request().Context(), req.WikipediaText)
	if err != nil {
		return fail("Failed to generate prompt.", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "prompt": out})
}

func (h *AIHandler) generateImage(c echo.Context) error {
	u, err := imagegen.URL(c.QueryParam("prompt"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "imageUrl": u})
}
