package interview

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ReportStatus string

const (
	ReportPending    ReportStatus = "PENDING"
	ReportProcessing ReportStatus = "PROCESSING"
	ReportReady      ReportStatus = "READY"
	ReportFailed     ReportStatus = "FAILED"
)

// Busy reports whether a trigger must leave the report untouched.
func (s ReportStatus) Busy() bool {
	return s == ReportProcessing || s == ReportReady
}

type Report struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID       uuid.UUID      `gorm:"type:uuid;column:session_id;not null;uniqueIndex:idx_report_session" json:"sessionId"`
	Metrics         datatypes.JSON `gorm:"column:metrics" json:"metrics"`
	Summary         *string        `gorm:"column:summary;type:text" json:"summary"`
	Recommendations *string        `gorm:"column:recommendations;type:text" json:"recommendations"`
	Status          ReportStatus   `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	ErrorMessage    *string        `gorm:"column:error_message;type:text" json:"errorMessage"`
	CreatedAt       time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updatedAt"`
}

func (Report) TableName() string { return "report" }

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
