package Models

import (
	"bytes"
	"io"
)

// Outcome values accepted by the completion form
const (
	StatusUnset = ""
	StatusYes   = "Yes"
	StatusNo    = "No"
)

// Attachment is a file picked for a task. Open may be called more than once.
type Attachment struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`

	Open func() (io.ReadCloser, error) `json:"-"`
}

// NewMemoryAttachment wraps an in-memory file.
func NewMemoryAttachment(name, mimeType string, data []byte) *Attachment {
	return &Attachment{
		FileName: name,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// SubmissionEntry is the transient edit buffer of one checked task.
type SubmissionEntry struct {
	TaskNo      string      `json:"task_no"`
	Checked     bool        `json:"checked"`
	Status      string      `json:"status"`
	Remarks     string      `json:"remarks"`
	Cost        string      `json:"cost"`
	SoundStatus string      `json:"sound_status"`
	Temperature string      `json:"temperature"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	Submitting  bool        `json:"submitting"`
}

// ReconciledView is the active/completed split of a grouped record set.
// It is rebuilt from scratch on every reconciliation.
type ReconciledView struct {
	Active          []TaskRecord `json:"active"`
	Completed       []TaskRecord `json:"completed"`
	ProgressPercent int          `json:"progress_percent"`
}
