package Models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmissionLog is an audit row written for every submit attempt.
type SubmissionLog struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	TaskNo    string `json:"task_no" gorm:"size:64;not null;index"`
	SheetName string `json:"sheet_name" gorm:"size:255"`
	Username  string `json:"username" gorm:"size:255;index"`
	Status    string `json:"status" gorm:"size:8"`
	Remarks   string `json:"remarks" gorm:"type:text"`
	FileURL   string `json:"file_url" gorm:"size:1024"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty" gorm:"type:text"`

	// Measurements holds the optional cost, sound and temperature readings.
	Measurements datatypes.JSONMap `json:"measurements,omitempty"`
	CreatedAt    time.Time         `json:"created_at" gorm:"index"`
}

// MeasurementsOf collects the non-empty readings of an entry.
func MeasurementsOf(entry SubmissionEntry) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for key, value := range map[string]string{
		"cost":         entry.Cost,
		"sound_status": entry.SoundStatus,
		"temperature":  entry.Temperature,
	} {
		if value != "" {
			out[key] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (l *SubmissionLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// SubmissionStore persists SubmissionLog rows.
type SubmissionStore struct {
	DB *gorm.DB
}

func NewSubmissionStore(db *gorm.DB) *SubmissionStore {
	return &SubmissionStore{DB: db}
}

// RecordSubmission appends one audit row.
func (s *SubmissionStore) RecordSubmission(ctx context.Context, entry SubmissionLog) error {
	return s.DB.WithContext(ctx).Create(&entry).Error
}

// History returns the newest rows for a task, newest first.
func (s *SubmissionStore) History(ctx context.Context, taskNo string, limit int) ([]SubmissionLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var logs []SubmissionLog
	err := s.DB.WithContext(ctx).
		Where("task_no = ?", taskNo).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
