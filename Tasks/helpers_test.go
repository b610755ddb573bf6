package Tasks

import (
	"context"
	"sync"

	"Anvil/Models"
	"Anvil/Sheets"
)

var (
	admin = Models.RoleContext{Role: Models.RoleAdmin, Username: "boss"}
	alice = Models.RoleContext{Role: Models.RoleUser, Username: "alice"}
)

var sheetLabels = []string{
	Models.LabelTaskNo,
	Models.LabelSerialNo,
	Models.LabelMachineName,
	Models.LabelDoerName,
	Models.LabelActualDate,
	Models.LabelTaskStatus,
	Models.LabelRemarks,
	Models.LabelRequireAttachment,
}

func record(taskNo, serial, machine, doer, actual string) Models.TaskRecord {
	return Models.TaskRecord{
		TaskNo:      taskNo,
		SerialNo:    serial,
		MachineName: machine,
		DoerName:    doer,
		ActualDate:  actual,
	}
}

// tableOf renders records in the columnar shape the query endpoint returns.
func tableOf(records ...Models.TaskRecord) Sheets.Table {
	t := Sheets.Table{}
	for _, l := range sheetLabels {
		t.Cols = append(t.Cols, Sheets.Column{Label: l, Type: "string"})
	}
	for _, r := range records {
		values := []string{r.TaskNo, r.SerialNo, r.MachineName, r.DoerName, r.ActualDate, r.TaskStatus, r.Remarks, r.RequireAttachment}
		row := Sheets.Row{}
		for _, v := range values {
			if v == "" {
				row.C = append(row.C, nil)
				continue
			}
			row.C = append(row.C, &Sheets.Cell{V: v})
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

type fakeSource struct {
	mu     sync.Mutex
	tables map[string]Sheets.Table
	errs   map[string]error
	calls  int

	// gate, when set, is received from before each fetch returns.
	gate chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{tables: map[string]Sheets.Table{}, errs: map[string]error{}}
}

func (f *fakeSource) set(sheet string, records ...Models.TaskRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[sheet] = tableOf(records...)
}

func (f *fakeSource) FetchTable(ctx context.Context, sheetName string, _ Sheets.Filters) (Sheets.Table, error) {
	f.mu.Lock()
	f.calls++
	table, err, gate := f.tables[sheetName], f.errs[sheetName], f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Sheets.Table{}, ctx.Err()
		}
	}
	if err != nil {
		return Sheets.Table{}, err
	}
	return table, nil
}

type fakeWriter struct {
	mu      sync.Mutex
	updates []Sheets.UpdateRequest
	err     error
	onWrite func(Sheets.UpdateRequest)
}

func (w *fakeWriter) UpdateRow(_ context.Context, update Sheets.UpdateRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.updates = append(w.updates, update)
	if w.err != nil {
		return w.err
	}
	if w.onWrite != nil {
		w.onWrite(update)
	}
	return nil
}

type fakeUploader struct {
	url   string
	calls int
}

func (u *fakeUploader) Upload(_ context.Context, _ *Models.Attachment) string {
	u.calls++
	return u.url
}

type fakeAudit struct {
	mu   sync.Mutex
	rows []Models.SubmissionLog
}

func (a *fakeAudit) RecordSubmission(_ context.Context, row Models.SubmissionLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, row)
	return nil
}

type fakeNotifier struct {
	completed []string
}

func (n *fakeNotifier) TaskCompleted(_ context.Context, task Models.TaskRecord, _ Ack, _ Models.RoleContext) error {
	n.completed = append(n.completed, task.TaskNo)
	return nil
}

func ptr(s string) *string { return &s }
