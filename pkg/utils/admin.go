package utils

import (
	"pageflow/backend/internal/models"
	"pageflow/backend/pkg/database"
)

// IsAdmin checks if the user with given ID is an admin user
func IsAdmin(userID uint) bool {
	var user models.User
	err := database.DB.First(&user, userID).Error
	if err != nil {
		return false
	}
	return user.Username == "admin"
}

// HasPermissionOnProject checks if user has permission on a project (owner or admin)
func HasPermissionOnProject(userID uint, projectID uint) bool {
	if IsAdmin(userID) {
		return true
	}

	var project models.Project
	err := database.DB.Where("id = ? AND user_id = ? AND status = ?", projectID, userID, 1).First(&project).Error
	return err == nil
}

// HasPermissionOnSession checks if user has permission on a saved recording
// session (owner, project owner, or admin)
func HasPermissionOnSession(userID uint, sessionID uint) bool {
	if IsAdmin(userID) {
		return true
	}

	var session models.RecordingSession
	err := database.DB.Preload("Project").Where("id = ? AND status = ?", sessionID, 1).First(&session).Error
	if err != nil {
		return false
	}

	return session.UserID == userID || session.Project.UserID == userID
}
