package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/querymind/backend/internal/services"
)

type TemplatesController struct {
	templates *services.TemplateService
}

func NewTemplatesController(templates *services.TemplateService) *TemplatesController {
	return &TemplatesController{templates: templates}
}

// List returns the template catalog, optionally filtered by category.
func (tc *TemplatesController) List(c *gin.Context) {
	category := c.Query("category")
	filtered := tc.templates.All(category)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      len(filtered),
		"categories": tc.templates.Categories(),
		"templates":  filtered,
	})
}

// Categories returns the catalog's categories with display names and counts.
func (tc *TemplatesController) Categories(c *gin.Context) {
	var categories []gin.H
	for _, id := range tc.templates.Categories() {
		categories = append(categories, gin.H{
			"id":    id,
			"name":  services.CategoryName(id),
			"count": len(tc.templates.All(id)),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"categories": categories,
	})
}

// Get returns a single template by id.
func (tc *TemplatesController) Get(c *gin.Context) {
	id := c.Param("id")
	template, ok := tc.templates.ByID(id)
	if !ok {
		respondNotFound(c, fmt.Sprintf("Template %s does not exist", id))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"template": template,
	})
}

type ApplyTemplateRequest struct {
	Variables map[string]string `json:"variables"`
}

// Apply substitutes the template's variables and returns the resolved PromQL.
func (tc *TemplatesController) Apply(c *gin.Context) {
	id := c.Param("id")

	var req ApplyTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondInvalid(c, "Invalid request body")
		return
	}

	template, ok := tc.templates.Apply(id, req.Variables)
	if !ok {
		respondNotFound(c, fmt.Sprintf("Template %s does not exist", id))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"template": template,
	})
}
