package handlers

import (
	"net/http"
	"strconv"
	"time"

	"pageflow/backend/internal/models"
	"pageflow/backend/internal/recorder"
	"pageflow/backend/pkg/database"
	"pageflow/backend/pkg/response"
	"pageflow/backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func StartRecording(c *gin.Context) {
	var req struct {
		ProjectID         uint  `json:"project_id" binding:"required"`
		HighlightElements *bool `json:"highlight_elements"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var project models.Project
	err := database.DB.Where("status = ?", 1).First(&project, req.ProjectID).Error
	if err != nil {
		response.NotFound(c, "project not found")
		return
	}

	highlight := true
	if req.HighlightElements != nil {
		highlight = *req.HighlightElements
	}

	sessionID := uuid.New().String()

	err = recorder.Sessions.StartRecording(sessionID, project.TargetURL, highlight)
	if err != nil {
		response.InternalServerError(c, "failed to start recording: "+err.Error())
		return
	}

	response.SuccessWithMessage(c, "recording started", gin.H{
		"session_id": sessionID,
	})
}

func StopRecording(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err := recorder.Sessions.StopRecording(req.SessionID)
	if err != nil {
		response.InternalServerError(c, "failed to stop recording: "+err.Error())
		return
	}

	response.SuccessWithMessage(c, "recording stopped", nil)
}

func GetRecordingStatus(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.BadRequest(c, "session_id is required")
		return
	}

	isRecording, actions, err := recorder.Sessions.Status(sessionID)
	if err != nil {
		response.NotFound(c, "recording session not found")
		return
	}

	response.Success(c, gin.H{
		"is_recording": isRecording,
		"actions":      actions,
		"count":        len(actions),
	})
}

func SaveRecording(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "not logged in")
		return
	}

	var req struct {
		SessionID         string `json:"session_id" binding:"required"`
		Name              string `json:"name" binding:"required,min=1,max=200"`
		Description       string `json:"description" binding:"max=1000"`
		ProjectID         uint   `json:"project_id" binding:"required"`
		HighlightElements bool   `json:"highlight_elements"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if !utils.HasPermissionOnProject(userID.(uint), req.ProjectID) {
		response.NotFound(c, "project not found or no permission")
		return
	}

	var project models.Project
	err := database.DB.Where("id = ? AND status = ?", req.ProjectID, 1).First(&project).Error
	if err != nil {
		response.NotFound(c, "project not found")
		return
	}

	isRecording, actions, err := recorder.Sessions.Status(req.SessionID)
	if err != nil {
		response.NotFound(c, "recording session not found")
		return
	}
	if isRecording {
		response.BadRequest(c, "stop the recording before saving")
		return
	}
	if len(actions) == 0 {
		response.BadRequest(c, "no actions were recorded")
		return
	}

	now := time.Now()
	session := models.RecordingSession{
		SessionID:         req.SessionID,
		Name:              req.Name,
		Description:       req.Description,
		ProjectID:         req.ProjectID,
		TargetURL:         project.TargetURL,
		HighlightElements: req.HighlightElements,
		StartTime:         now,
		EndTime:           &now,
		Status:            1,
		UserID:            userID.(uint),
	}
	if len(actions) > 0 {
		if ts, err := time.Parse(time.RFC3339Nano, actions[0].Timestamp); err == nil {
			session.StartTime = ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, actions[len(actions)-1].Timestamp); err == nil {
			session.EndTime = &ts
		}
	}
	if err := session.SetActions(actions); err != nil {
		response.InternalServerError(c, "failed to encode actions")
		return
	}

	if err := database.DB.Create(&session).Error; err != nil {
		response.InternalServerError(c, "failed to save recording session")
		return
	}

	recorder.Sessions.Cleanup(req.SessionID)

	response.SuccessWithMessage(c, "recording saved", session)
}

func GetSessions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	query := database.DB.Model(&models.RecordingSession{}).Where("status = ?", 1)
	if projectID, err := strconv.ParseUint(c.Query("project_id"), 10, 32); err == nil {
		query = query.Where("project_id = ?", projectID)
	}

	var total int64
	query.Count(&total)

	var sessions []models.RecordingSession
	offset := (page - 1) * pageSize
	err := query.Preload("Project").Preload("User").
		Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&sessions).Error
	if err != nil {
		response.InternalServerError(c, "failed to list sessions")
		return
	}

	for i := range sessions {
		sessions[i].User.Password = ""
		sessions[i].Project.User.Password = ""
	}

	response.Page(c, sessions, total, page, pageSize)
}

func GetSession(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}

	var session models.RecordingSession
	err = database.DB.Preload("Project").Preload("User").
		Where("status = ?", 1).First(&session, id).Error
	if err != nil {
		response.NotFound(c, "session not found")
		return
	}

	actions, err := session.GetActions()
	if err != nil {
		response.InternalServerError(c, "failed to decode actions")
		return
	}

	session.User.Password = ""
	session.Project.User.Password = ""

	response.Success(c, gin.H{
		"session": session,
		"actions": actions,
	})
}

func DeleteSession(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "not logged in")
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}

	if !utils.HasPermissionOnSession(userID.(uint), uint(id)) {
		response.Forbidden(c, "no permission on this session")
		return
	}

	err = database.DB.Model(&models.RecordingSession{}).Where("id = ?", id).Update("status", 0).Error
	if err != nil {
		response.InternalServerError(c, "failed to delete session")
		return
	}

	response.SuccessWithMessage(c, "session deleted", nil)
}

// RecordingWebSocket streams actions of a live session to the caller as they
// are captured.
func RecordingWebSocket(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.BadRequest(c, "session_id is required")
		return
	}

	rec, exists := recorder.Sessions.GetRecorder(sessionID)
	if !exists {
		response.NotFound(c, "recording session not found")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	rec.SetWebSocketConnection(conn)
}
