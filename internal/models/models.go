package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"pageflow/backend/internal/engine"
)

type BaseModel struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

type User struct {
	BaseModel
	Username string `json:"username" gorm:"uniqueIndex;size:100;not null"`
	Email    string `json:"email" gorm:"uniqueIndex;size:100;not null"`
	Password string `json:"-" gorm:"size:255;not null"`
	Status   int    `json:"status" gorm:"default:1"` // 1:active, 0:inactive
}

type Project struct {
	BaseModel
	Name        string `json:"name" gorm:"size:100;not null"`
	Description string `json:"description" gorm:"size:500"`
	TargetURL   string `json:"target_url" gorm:"size:500;not null"`
	UserID      uint   `json:"user_id" gorm:"not null"`
	User        User   `json:"user" gorm:"foreignKey:UserID"`
	Status      int    `json:"status" gorm:"default:1"`
}

// RecordingSession is one saved recording: the ordered action stream plus
// the settings it was captured with. Live state lives in the recorder
// manager, not here; a row is written only when the session is saved.
type RecordingSession struct {
	BaseModel
	SessionID         string     `json:"session_id" gorm:"uniqueIndex;size:64;not null"`
	Name              string     `json:"name" gorm:"size:200;not null"`
	Description       string     `json:"description" gorm:"size:1000"`
	ProjectID         uint       `json:"project_id" gorm:"not null"`
	Project           Project    `json:"project" gorm:"foreignKey:ProjectID"`
	TargetURL         string     `json:"target_url" gorm:"size:500;not null"`
	HighlightElements bool       `json:"highlight_elements" gorm:"default:true"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time"`
	ActionCount       int        `json:"action_count"`
	Actions           string     `json:"-" gorm:"type:longtext"` // JSON engine.Action array
	Status            int        `json:"status" gorm:"default:1"`
	UserID            uint       `json:"user_id" gorm:"not null"`
	User              User       `json:"user" gorm:"foreignKey:UserID"`
}

// GetActions decodes the stored action stream.
func (s *RecordingSession) GetActions() ([]engine.Action, error) {
	var actions []engine.Action
	if s.Actions == "" {
		return actions, nil
	}
	err := json.Unmarshal([]byte(s.Actions), &actions)
	return actions, err
}

// SetActions encodes and stores an action stream.
func (s *RecordingSession) SetActions(actions []engine.Action) error {
	data, err := json.Marshal(actions)
	if err != nil {
		return err
	}
	s.Actions = string(data)
	s.ActionCount = len(actions)
	return nil
}
