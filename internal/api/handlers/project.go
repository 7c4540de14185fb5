package handlers

import (
	"strconv"

	"pageflow/backend/internal/models"
	"pageflow/backend/pkg/database"
	"pageflow/backend/pkg/response"
	"pageflow/backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

func GetProjects(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	var projects []models.Project
	var total int64

	database.DB.Model(&models.Project{}).Where("status = ?", 1).Count(&total)

	offset := (page - 1) * pageSize
	err := database.DB.Preload("User").Where("status = ?", 1).
		Offset(offset).Limit(pageSize).Find(&projects).Error
	if err != nil {
		response.InternalServerError(c, "failed to list projects")
		return
	}

	for i := range projects {
		projects[i].User.Password = ""
	}

	response.Page(c, projects, total, page, pageSize)
}

func CreateProject(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "not logged in")
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required,min=1,max=100"`
		Description string `json:"description" binding:"max=500"`
		TargetURL   string `json:"target_url" binding:"required,url,max=500"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project := models.Project{
		Name:        req.Name,
		Description: req.Description,
		TargetURL:   req.TargetURL,
		UserID:      userID.(uint),
		Status:      1,
	}

	if err := database.DB.Create(&project).Error; err != nil {
		response.InternalServerError(c, "failed to create project")
		return
	}

	response.SuccessWithMessage(c, "project created", project)
}

func GetProject(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	var project models.Project
	err = database.DB.Preload("User").Where("status = ?", 1).First(&project, id).Error
	if err != nil {
		response.NotFound(c, "project not found")
		return
	}

	project.User.Password = ""
	response.Success(c, project)
}

func UpdateProject(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "not logged in")
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	if !utils.HasPermissionOnProject(userID.(uint), uint(id)) {
		response.Forbidden(c, "no permission on this project")
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required,min=1,max=100"`
		Description string `json:"description" binding:"max=500"`
		TargetURL   string `json:"target_url" binding:"required,url,max=500"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var project models.Project
	if err := database.DB.Where("status = ?", 1).First(&project, id).Error; err != nil {
		response.NotFound(c, "project not found")
		return
	}

	project.Name = req.Name
	project.Description = req.Description
	project.TargetURL = req.TargetURL

	if err := database.DB.Save(&project).Error; err != nil {
		response.InternalServerError(c, "failed to update project")
		return
	}

	response.SuccessWithMessage(c, "project updated", project)
}

func DeleteProject(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "not logged in")
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	if !utils.HasPermissionOnProject(userID.(uint), uint(id)) {
		response.Forbidden(c, "no permission on this project")
		return
	}

	err = database.DB.Model(&models.Project{}).Where("id = ?", id).Update("status", 0).Error
	if err != nil {
		response.InternalServerError(c, "failed to delete project")
		return
	}

	response.SuccessWithMessage(c, "project deleted", nil)
}
