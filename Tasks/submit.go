package Tasks

import (
	"context"
	"errors"
	"slices"
	"time"

	"Anvil/Models"
	"Anvil/Sheets"

	"go.uber.org/zap"
)

var ErrAttachmentRequired = errors.New("tasks: task requires an attachment and the upload did not succeed")

const dateLayout = "2006-01-02"

// RowWriter sends a partial row update to the remote table.
type RowWriter interface {
	UpdateRow(ctx context.Context, update Sheets.UpdateRequest) error
}

// FileUploader returns the stored URL of an attachment or "" on failure.
type FileUploader interface {
	Upload(ctx context.Context, a *Models.Attachment) string
}

// SheetNames maps task families to their remote tables.
type SheetNames struct {
	Maintenance string
	Repair      string
}

func (n SheetNames) For(family Models.TaskFamily) string {
	if family == Models.MaintenanceFamily {
		return n.Maintenance
	}
	return n.Repair
}

// All lists the configured sheets without blanks or duplicates.
func (n SheetNames) All() []string {
	out := make([]string, 0, 2)
	for _, s := range []string{n.Maintenance, n.Repair} {
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// UploadedFile describes an attachment that reached remote storage.
type UploadedFile struct {
	URL      string
	Name     string
	MimeType string
}

// Ack reports a submission the remote table accepted.
type Ack struct {
	TaskNo     string `json:"task_no"`
	SheetName  string `json:"sheet_name"`
	Status     string `json:"status"`
	ActualDate string `json:"actual_date,omitempty"`
	FileURL    string `json:"file_url,omitempty"`
}

// BuildUpdate assembles the partial update for one task. Actual Date is set
// to today iff the outcome is "Yes"; file columns are set only for a stored upload.
func BuildUpdate(task Models.TaskRecord, entry Models.SubmissionEntry, sheetName string, file UploadedFile, today time.Time) Sheets.UpdateRequest {
	fields := []Models.Field{
		{Label: Models.LabelTaskStatus, Value: entry.Status},
		{Label: Models.LabelRemarks, Value: entry.Remarks},
		{Label: task.Family().CostLabel, Value: entry.Cost},
		{Label: Models.LabelSoundStatus, Value: entry.SoundStatus},
		{Label: Models.LabelTemperature, Value: entry.Temperature},
	}
	if entry.Status == Models.StatusYes {
		fields = append(fields, Models.Field{Label: Models.LabelActualDate, Value: today.Format(dateLayout)})
	}
	if file.URL != "" {
		fields = append(fields,
			Models.Field{Label: Models.LabelImageLink, Value: file.URL},
			Models.Field{Label: Models.LabelFileName, Value: file.Name},
			Models.Field{Label: Models.LabelFileType, Value: file.MimeType},
		)
	}
	return Sheets.UpdateRequest{
		SheetName: sheetName,
		TaskNo:    task.TaskNo,
		Fields:    fields,
	}
}

// Submitter uploads the attachment of a ready entry and writes the update.
type Submitter struct {
	Writer   RowWriter
	Uploader FileUploader
	Tables   SheetNames
	Logger   *zap.Logger

	now func() time.Time
}

func NewSubmitter(writer RowWriter, uploader FileUploader, sheets SheetNames, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		Writer:   writer,
		Uploader: uploader,
		Tables:   sheets,
		Logger:   logger,
		now:      time.Now,
	}
}

// Submit never sends an entry that fails SubmitReady. A failed upload only
// blocks the write when the task requires an attachment.
func (s *Submitter) Submit(ctx context.Context, task Models.TaskRecord, entry Models.SubmissionEntry) (Ack, error) {
	if !SubmitReady(entry.Checked, entry.Status, task.RequireAttachment, entry.Attachment != nil) {
		return Ack{}, ErrNotReady
	}

	var file UploadedFile
	if entry.Attachment != nil && s.Uploader != nil {
		file = UploadedFile{
			URL:      s.Uploader.Upload(ctx, entry.Attachment),
			Name:     entry.Attachment.FileName,
			MimeType: entry.Attachment.MimeType,
		}
	}
	if task.NeedsAttachment() && file.URL == "" {
		return Ack{}, ErrAttachmentRequired
	}

	sheetName := s.Tables.For(task.Family())
	update := BuildUpdate(task, entry, sheetName, file, s.now())
	if err := s.Writer.UpdateRow(ctx, update); err != nil {
		s.Logger.Warn("Task update rejected",
			zap.String("task_no", task.TaskNo),
			zap.String("sheet", sheetName),
			zap.Error(err))
		return Ack{}, err
	}

	ack := Ack{
		TaskNo:    task.TaskNo,
		SheetName: sheetName,
		Status:    entry.Status,
		FileURL:   file.URL,
	}
	for _, f := range update.Fields {
		if f.Label == Models.LabelActualDate {
			ack.ActualDate = f.Value
		}
	}
	return ack, nil
}
