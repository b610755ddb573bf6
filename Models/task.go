package Models

import (
	"strings"
	"unicode"
)

// Column labels as they appear in the remote task sheets
const (
	LabelTaskNo            = "Task No"
	LabelSerialNo          = "Serial No"
	LabelMachineName       = "Machine Name"
	LabelDepartment        = "Department"
	LabelDescription       = "Description"
	LabelTaskStartDate     = "Task Start Date"
	LabelActualDate        = "Actual Date"
	LabelTaskStatus        = "Task Status"
	LabelRemarks           = "Remarks"
	LabelDoerName          = "Doer Name"
	LabelRequireAttachment = "Require Attachment"
	LabelSoundStatus       = "Sound Status"
	LabelTemperature       = "Temperature Status"
	LabelMaintenanceCost   = "Maintenance Cost"
	LabelRepairCost        = "Repair Cost"
	LabelImageLink         = "Image Link"
	LabelFileName          = "File Name"
	LabelFileType          = "File Type"
)

// TaskRecord is one row of maintenance or repair work.
// Columns the engine does not know about are kept in Extra.
type TaskRecord struct {
	TaskNo            string            `json:"task_no"`
	SerialNo          string            `json:"serial_no"`
	MachineName       string            `json:"machine_name"`
	Department        string            `json:"department"`
	Description       string            `json:"description"`
	TaskStartDate     string            `json:"task_start_date"`
	ActualDate        string            `json:"actual_date"`
	TaskStatus        string            `json:"task_status"`
	Remarks           string            `json:"remarks"`
	DoerName          string            `json:"doer_name"`
	RequireAttachment string            `json:"require_attachment"`
	SoundStatus       string            `json:"sound_status"`
	Temperature       string            `json:"temperature"`
	Cost              string            `json:"cost"`
	ImageLink         string            `json:"image_link,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// IsCompleted reports whether the task carries a completion date.
func (t TaskRecord) IsCompleted() bool {
	return strings.TrimSpace(t.ActualDate) != ""
}

// NeedsAttachment reports whether a file must accompany the completion form.
func (t TaskRecord) NeedsAttachment() bool {
	return strings.EqualFold(strings.TrimSpace(t.RequireAttachment), "yes")
}

// Family returns the task family encoded in the task number prefix.
func (t TaskRecord) Family() TaskFamily {
	return FamilyOf(t.TaskNo)
}

// fieldAliases maps a canonical label key to the record field it fills.
var fieldAliases = map[string]func(*TaskRecord) *string{
	"taskno":            func(t *TaskRecord) *string { return &t.TaskNo },
	"tasknumber":        func(t *TaskRecord) *string { return &t.TaskNo },
	"taskid":            func(t *TaskRecord) *string { return &t.TaskNo },
	"serialno":          func(t *TaskRecord) *string { return &t.SerialNo },
	"serialnumber":      func(t *TaskRecord) *string { return &t.SerialNo },
	"machinename":       func(t *TaskRecord) *string { return &t.MachineName },
	"machine":           func(t *TaskRecord) *string { return &t.MachineName },
	"department":        func(t *TaskRecord) *string { return &t.Department },
	"description":       func(t *TaskRecord) *string { return &t.Description },
	"taskdescription":   func(t *TaskRecord) *string { return &t.Description },
	"taskstartdate":     func(t *TaskRecord) *string { return &t.TaskStartDate },
	"startdate":         func(t *TaskRecord) *string { return &t.TaskStartDate },
	"planneddate":       func(t *TaskRecord) *string { return &t.TaskStartDate },
	"actualdate":        func(t *TaskRecord) *string { return &t.ActualDate },
	"taskstatus":        func(t *TaskRecord) *string { return &t.TaskStatus },
	"status":            func(t *TaskRecord) *string { return &t.TaskStatus },
	"remarks":           func(t *TaskRecord) *string { return &t.Remarks },
	"doername":          func(t *TaskRecord) *string { return &t.DoerName },
	"doer":              func(t *TaskRecord) *string { return &t.DoerName },
	"requireattachment": func(t *TaskRecord) *string { return &t.RequireAttachment },
	"soundstatus":       func(t *TaskRecord) *string { return &t.SoundStatus },
	"soundtest":         func(t *TaskRecord) *string { return &t.SoundStatus },
	"temperaturestatus": func(t *TaskRecord) *string { return &t.Temperature },
	"temperature":       func(t *TaskRecord) *string { return &t.Temperature },
	"maintenancecost":   func(t *TaskRecord) *string { return &t.Cost },
	"repaircost":        func(t *TaskRecord) *string { return &t.Cost },
	"cost":              func(t *TaskRecord) *string { return &t.Cost },
	"imagelink":         func(t *TaskRecord) *string { return &t.ImageLink },
}

// LabelKey reduces a column label to lower-case letters and digits,
// so "Task No.", "task no" and "TASK_NO" all address the same field.
func LabelKey(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Field is one labelled cell of a row.
type Field struct {
	Label string
	Value string
}

// NewTaskRecord builds a record from the cells of a row in column order.
func NewTaskRecord(fields []Field) TaskRecord {
	var t TaskRecord
	for _, f := range fields {
		if set, ok := fieldAliases[LabelKey(f.Label)]; ok {
			dst := set(&t)
			// leftmost non-empty column wins when two labels alias the same field
			if *dst == "" {
				*dst = f.Value
			}
			continue
		}
		if t.Extra == nil {
			t.Extra = make(map[string]string)
		}
		if t.Extra[f.Label] == "" {
			t.Extra[f.Label] = f.Value
		}
	}
	return t
}

// Fields returns the record as label/value pairs, the inverse of NewTaskRecord.
func (t TaskRecord) Fields() map[string]string {
	out := map[string]string{
		LabelTaskNo:            t.TaskNo,
		LabelSerialNo:          t.SerialNo,
		LabelMachineName:       t.MachineName,
		LabelDepartment:        t.Department,
		LabelDescription:       t.Description,
		LabelTaskStartDate:     t.TaskStartDate,
		LabelActualDate:        t.ActualDate,
		LabelTaskStatus:        t.TaskStatus,
		LabelRemarks:           t.Remarks,
		LabelDoerName:          t.DoerName,
		LabelRequireAttachment: t.RequireAttachment,
		LabelSoundStatus:       t.SoundStatus,
		LabelTemperature:       t.Temperature,
		t.Family().CostLabel:   t.Cost,
	}
	if t.ImageLink != "" {
		out[LabelImageLink] = t.ImageLink
	}
	for k, v := range t.Extra {
		out[k] = v
	}
	return out
}

// MachineIdentity is the normalised machine name of an anchor record plus the
// family keywords it contains. It only lives for one grouping pass.
type MachineIdentity struct {
	BaseName string   `json:"base_name"`
	Keywords []string `json:"keywords"`
}
