package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aiforge/aiforge/internal/gateway"
	"github.com/aiforge/aiforge/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProjectsHandler manages user projects and AI spec generation for them.
type ProjectsHandler struct {
	db *gorm.DB
	gw *gateway.Gateway
}

// NewProjectsHandler constructs a ProjectsHandler.
func NewProjectsHandler(db *gorm.DB, gw *gateway.Gateway) *ProjectsHandler {
	return &ProjectsHandler{db: db, gw: gw}
}

// projectRequest defines the request body for creating or updating a project.
type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func validProjectStatus(status string) bool {
	switch status {
	case models.ProjectStatusDraft, models.ProjectStatusGenerated, models.ProjectStatusArchived:
		return true
	}
	return false
}

// Create adds a project for the caller.
func (h *ProjectsHandler) Create(c *gin.Context) {
	userID := getUserID(c)

	var body projectRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	project := models.Project{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(body.Description),
		Status:      models.ProjectStatusDraft,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&project).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create project failed"})
		return
	}
	c.JSON(http.StatusCreated, project)
}

// List returns the caller's projects, newest first.
func (h *ProjectsHandler) List(c *gin.Context) {
	userID := getUserID(c)

	var projects []models.Project
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&projects).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list projects failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Get returns one project owned by the caller.
func (h *ProjectsHandler) Get(c *gin.Context) {
	project, ok := h.loadOwned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, project)
}

// Update modifies a project's name, description, or status.
func (h *ProjectsHandler) Update(c *gin.Context) {
	project, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var body projectRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if name := strings.TrimSpace(body.Name); name != "" {
		updates["name"] = name
	}
	if body.Description != "" {
		updates["description"] = strings.TrimSpace(body.Description)
	}
	if body.Status != "" {
		if !validProjectStatus(body.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + body.Status})
			return
		}
		updates["status"] = body.Status
	}

	if errSave := h.db.WithContext(c.Request.Context()).Model(&project).Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update project failed"})
		return
	}
	c.JSON(http.StatusOK, project)
}

// Delete removes a project owned by the caller.
func (h *ProjectsHandler) Delete(c *gin.Context) {
	project, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if errDel := h.db.WithContext(c.Request.Context()).Delete(&project).Error; errDel != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete project failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": project.ID})
}

// generateSpecRequest defines optional overrides for spec generation.
type generateSpecRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// GenerateSpec asks the gateway to draft a technical spec from the project
// description and stores it on the project.
func (h *ProjectsHandler) GenerateSpec(c *gin.Context) {
	userID := getUserID(c)
	project, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if strings.TrimSpace(project.Description) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project has no description"})
		return
	}

	var body generateSpecRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	prompt := fmt.Sprintf(
		"Draft a concise technical specification for the following software project.\n\nName: %s\n\nDescription: %s\n\nCover the architecture, main components, data model, and external integrations.",
		project.Name, project.Description,
	)
	req := gateway.Request{
		Prompt:   prompt,
		Provider: body.Provider,
		Model:    body.Model,
		UserID:   &userID,
		Endpoint: "/projects",
	}

	res, errGen := h.gw.Generate(c.Request.Context(), req)
	gateway.LogAttempt(req, res.Provider, errGen)
	if errGen != nil {
		writeGatewayError(c, errGen)
		return
	}

	updates := map[string]interface{}{
		"generated_spec": res.Text,
		"status":         models.ProjectStatusGenerated,
		"updated_at":     time.Now().UTC(),
	}
	if errSave := h.db.WithContext(c.Request.Context()).Model(&project).Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save generated spec failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":             project.ID,
		"generated_spec": res.Text,
		"provider":       res.Provider,
		"model":          res.Model,
		"status":         models.ProjectStatusGenerated,
	})
}

// loadOwned fetches the project in the :id path param, enforcing ownership.
// It writes the error response itself when the lookup fails.
func (h *ProjectsHandler) loadOwned(c *gin.Context) (models.Project, bool) {
	userID := getUserID(c)

	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return models.Project{}, false
	}

	var project models.Project
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		First(&project).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return models.Project{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query project failed"})
		return models.Project{}, false
	}
	return project, true
}
