package Tasks

import (
	"errors"
	"sort"
	"sync"

	"Anvil/Models"
)

var (
	ErrUnknownTask        = errors.New("tasks: task is not active in the current view")
	ErrNotEditable        = errors.New("tasks: task is not editable")
	ErrNotReady           = errors.New("tasks: task is not ready to submit")
	ErrSubmissionInFlight = errors.New("tasks: a submission for this task is already in flight")
	ErrInvalidStatus      = errors.New("tasks: status must be empty, Yes or No")
)

type FormState int

const (
	StateUnchecked FormState = iota
	StateCheckedIncomplete
	StateCheckedReady
	StateSubmitting
)

func (s FormState) String() string {
	switch s {
	case StateCheckedIncomplete:
		return "checked_incomplete"
	case StateCheckedReady:
		return "checked_ready"
	case StateSubmitting:
		return "submitting"
	default:
		return "unchecked"
	}
}

func (s FormState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SubmitReady is the single submit-enablement predicate.
func SubmitReady(checked bool, status string, requireAttachment string, hasAttachment bool) bool {
	if !checked {
		return false
	}
	if status != Models.StatusYes && status != Models.StatusNo {
		return false
	}
	needsFile := Models.TaskRecord{RequireAttachment: requireAttachment}.NeedsAttachment()
	return !needsFile || hasAttachment
}

// EntryPatch carries form edits. Nil fields are left unchanged.
type EntryPatch struct {
	Status      *string `json:"status" validate:"omitempty,oneof=Yes No"`
	Remarks     *string `json:"remarks" validate:"omitempty,max=2000"`
	Cost        *string `json:"cost" validate:"omitempty,numeric"`
	SoundStatus *string `json:"sound_status" validate:"omitempty,max=64"`
	Temperature *string `json:"temperature" validate:"omitempty,max=64"`
}

// EntryState is the UI-facing view of one task's form.
type EntryState struct {
	Models.SubmissionEntry
	State FormState `json:"state"`
	Ready bool      `json:"ready"`
}

// Form tracks the SubmissionEntry of every checked active task.
type Form struct {
	mu      sync.Mutex
	active  map[string]Models.TaskRecord
	done    map[string]bool
	entries map[string]*Models.SubmissionEntry
}

func NewForm() *Form {
	return &Form{
		active:  make(map[string]Models.TaskRecord),
		done:    make(map[string]bool),
		entries: make(map[string]*Models.SubmissionEntry),
	}
}

// Sync replaces the known task sets with a freshly reconciled view. Entries of
// tasks that left the active set are dropped unless a submission is in flight.
func (f *Form) Sync(view Models.ReconciledView) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.active = make(map[string]Models.TaskRecord, len(view.Active))
	for _, t := range view.Active {
		f.active[t.TaskNo] = t
	}
	f.done = make(map[string]bool, len(view.Completed))
	for _, t := range view.Completed {
		f.done[t.TaskNo] = true
	}
	for taskNo, entry := range f.entries {
		if _, ok := f.active[taskNo]; !ok && !entry.Submitting {
			delete(f.entries, taskNo)
		}
	}
}

// Check opens a task for editing, seeding remarks and status from the record.
// Checking an already checked task keeps its edits.
func (f *Form) Check(taskNo string) (EntryState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	task, ok := f.active[taskNo]
	if !ok || f.done[taskNo] {
		return EntryState{}, ErrUnknownTask
	}
	if entry, ok := f.entries[taskNo]; ok {
		return f.stateLocked(task, entry), nil
	}

	status := Models.StatusUnset
	if task.TaskStatus == Models.StatusYes || task.TaskStatus == Models.StatusNo {
		status = task.TaskStatus
	}
	entry := &Models.SubmissionEntry{
		TaskNo:  taskNo,
		Checked: true,
		Status:  status,
		Remarks: task.Remarks,
	}
	f.entries[taskNo] = entry
	return f.stateLocked(task, entry), nil
}

// Uncheck discards the whole entry.
func (f *Form) Uncheck(taskNo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[taskNo]
	if !ok {
		return nil
	}
	if entry.Submitting {
		return ErrNotEditable
	}
	delete(f.entries, taskNo)
	return nil
}

// Edit applies a patch to a checked task.
func (f *Form) Edit(taskNo string, patch EntryPatch) (EntryState, error) {
	if patch.Status != nil {
		switch *patch.Status {
		case Models.StatusUnset, Models.StatusYes, Models.StatusNo:
		default:
			return EntryState{}, ErrInvalidStatus
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	task, entry, err := f.editableLocked(taskNo)
	if err != nil {
		return EntryState{}, err
	}
	if patch.Status != nil {
		entry.Status = *patch.Status
	}
	if patch.Remarks != nil {
		entry.Remarks = *patch.Remarks
	}
	if patch.Cost != nil {
		entry.Cost = *patch.Cost
	}
	if patch.SoundStatus != nil {
		entry.SoundStatus = *patch.SoundStatus
	}
	if patch.Temperature != nil {
		entry.Temperature = *patch.Temperature
	}
	return f.stateLocked(task, entry), nil
}

// SetAttachment stores the file for a checked task; nil clears it.
func (f *Form) SetAttachment(taskNo string, a *Models.Attachment) (EntryState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	task, entry, err := f.editableLocked(taskNo)
	if err != nil {
		return EntryState{}, err
	}
	entry.Attachment = a
	return f.stateLocked(task, entry), nil
}

// state returns where the task is in the form lifecycle.
func (f *Form) state(taskNo string) FormState {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[taskNo]
	if !ok {
		return StateUnchecked
	}
	return f.stateLocked(f.active[taskNo], entry).State
}

// Entries lists the forms of all checked tasks ordered by task number.
func (f *Form) Entries() []EntryState {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]EntryState, 0, len(f.entries))
	for taskNo, entry := range f.entries {
		out = append(out, f.stateLocked(f.active[taskNo], entry))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskNo < out[j].TaskNo })
	return out
}

// BeginSubmit moves a ready task into Submitting and returns copies of the
// task and its entry for the submitter.
func (f *Form) BeginSubmit(taskNo string) (Models.TaskRecord, Models.SubmissionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[taskNo]
	if ok && entry.Submitting {
		return Models.TaskRecord{}, Models.SubmissionEntry{}, ErrSubmissionInFlight
	}
	task, entry, err := f.editableLocked(taskNo)
	if err != nil {
		if errors.Is(err, ErrNotEditable) {
			return Models.TaskRecord{}, Models.SubmissionEntry{}, ErrNotReady
		}
		return Models.TaskRecord{}, Models.SubmissionEntry{}, err
	}
	if !SubmitReady(entry.Checked, entry.Status, task.RequireAttachment, entry.Attachment != nil) {
		return Models.TaskRecord{}, Models.SubmissionEntry{}, ErrNotReady
	}
	entry.Submitting = true
	return task, *entry, nil
}

// FinishSubmit leaves Submitting. A successful submission clears the entry;
// a failed one keeps every field for a retry.
func (f *Form) FinishSubmit(taskNo string, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[taskNo]
	if !ok {
		return
	}
	if success {
		entry.Checked = false
		entry.Status = Models.StatusUnset
		entry.Remarks = ""
		entry.Cost = ""
		entry.SoundStatus = ""
		entry.Temperature = ""
		entry.Attachment = nil
		entry.Submitting = false
		delete(f.entries, taskNo)
		return
	}
	entry.Submitting = false
}

func (f *Form) editableLocked(taskNo string) (Models.TaskRecord, *Models.SubmissionEntry, error) {
	task, ok := f.active[taskNo]
	if !ok || f.done[taskNo] {
		return Models.TaskRecord{}, nil, ErrUnknownTask
	}
	entry, ok := f.entries[taskNo]
	if !ok || !entry.Checked || entry.Submitting {
		return Models.TaskRecord{}, nil, ErrNotEditable
	}
	return task, entry, nil
}

func (f *Form) stateLocked(task Models.TaskRecord, entry *Models.SubmissionEntry) EntryState {
	st := EntryState{SubmissionEntry: *entry}
	switch {
	case !entry.Checked:
		st.State = StateUnchecked
	case entry.Submitting:
		st.State = StateSubmitting
	case SubmitReady(entry.Checked, entry.Status, task.RequireAttachment, entry.Attachment != nil):
		st.State = StateCheckedReady
		st.Ready = true
	default:
		st.State = StateCheckedIncomplete
	}
	return st
}
