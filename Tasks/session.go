package Tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"Anvil/Models"

	"go.uber.org/zap"
)

var ErrSessionClosed = errors.New("tasks: session is closed")

// AuditLog receives one row per submit attempt.
type AuditLog interface {
	RecordSubmission(ctx context.Context, entry Models.SubmissionLog) error
}

// Notifier is told about tasks that were marked complete.
type Notifier interface {
	TaskCompleted(ctx context.Context, task Models.TaskRecord, ack Ack, caller Models.RoleContext) error
}

// Snapshot is the state a caller renders: the last applied view plus the
// form state of every checked task.
type Snapshot struct {
	Anchor       string                 `json:"anchor"`
	Caller       Models.RoleContext     `json:"caller"`
	View         Models.ReconciledView  `json:"view"`
	Identity     Models.MachineIdentity `json:"identity"`
	Generation   uint64                 `json:"generation"`
	Degraded     bool                   `json:"degraded"`
	AuthDegraded bool                   `json:"auth_degraded"`
	NotFound     bool                   `json:"not_found"`
	UpdatedAt    time.Time              `json:"updated_at"`
	Entries      []EntryState           `json:"entries"`
}

type SessionOptions struct {
	Pipeline  *Pipeline
	Submitter *Submitter
	Audit     AuditLog
	Notifier  Notifier
	Logger    *zap.Logger
	// Timeout bounds every remote round trip started by the session.
	Timeout time.Duration
}

// Session is one caller's view of an anchor. Reconciliations are numbered;
// a result is applied only if no later-started pass has been applied already.
// Close cancels everything in flight and discards late results.
type Session struct {
	caller    Models.RoleContext
	pipeline  *Pipeline
	submitter *Submitter
	audit     AuditLog
	notifier  Notifier
	logger    *zap.Logger
	timeout   time.Duration
	form      *Form

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	anchor   string
	started  uint64
	applied  uint64
	closed   bool
	snapshot Snapshot
}

func NewSession(caller Models.RoleContext, anchor string, opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		caller:    caller,
		pipeline:  opts.Pipeline,
		submitter: opts.Submitter,
		audit:     opts.Audit,
		notifier:  opts.Notifier,
		logger:    logger.With(zap.String("username", caller.Username), zap.String("role", string(caller.Role))),
		timeout:   timeout,
		form:      NewForm(),
		ctx:       ctx,
		cancel:    cancel,
		anchor:    anchor,
		snapshot: Snapshot{
			Anchor: anchor,
			Caller: caller,
			View:   Partition(nil),
		},
	}
}

func (s *Session) Caller() Models.RoleContext {
	return s.caller
}

// runContext ties a round trip to the session lifetime, the caller's context
// and the session timeout.
func (s *Session) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Reconcile runs a full pass and replaces the view. ErrAnchorNotFound is
// returned together with the (empty) applied snapshot.
func (s *Session) Reconcile(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	s.started++
	gen := s.started
	anchor := s.anchor
	s.mu.Unlock()

	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	result, err := s.pipeline.Reconcile(runCtx, s.caller, anchor)
	if err != nil && !errors.Is(err, ErrAnchorNotFound) {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrSessionClosed
	}
	if gen <= s.applied {
		s.logger.Debug("Discarding stale reconciliation",
			zap.Uint64("generation", gen),
			zap.Uint64("applied", s.applied))
		return s.snapshotLocked(), err
	}

	s.applied = gen
	s.snapshot = Snapshot{
		Anchor:       anchor,
		Caller:       s.caller,
		View:         result.View,
		Identity:     result.Identity,
		Generation:   gen,
		Degraded:     result.Degraded,
		AuthDegraded: result.AuthDegraded,
		NotFound:     result.NotFound,
		UpdatedAt:    time.Now(),
	}
	s.form.Sync(result.View)
	return s.snapshotLocked(), err
}

// SetAnchor switches the session to another serial or task number and reconciles.
func (s *Session) SetAnchor(ctx context.Context, anchor string) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	s.anchor = anchor
	s.mu.Unlock()
	return s.Reconcile(ctx)
}

// Snapshot returns the last applied state without refetching.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := s.snapshot
	snap.Entries = s.form.Entries()
	return snap
}

func (s *Session) Check(taskNo string) (EntryState, error) {
	if s.isClosed() {
		return EntryState{}, ErrSessionClosed
	}
	return s.form.Check(taskNo)
}

func (s *Session) Uncheck(taskNo string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.form.Uncheck(taskNo)
}

func (s *Session) Edit(taskNo string, patch EntryPatch) (EntryState, error) {
	if s.isClosed() {
		return EntryState{}, ErrSessionClosed
	}
	return s.form.Edit(taskNo, patch)
}

func (s *Session) SetAttachment(taskNo string, a *Models.Attachment) (EntryState, error) {
	if s.isClosed() {
		return EntryState{}, ErrSessionClosed
	}
	return s.form.SetAttachment(taskNo, a)
}

// Submit sends one ready task. On success the entry is cleared and a full
// reconciliation replaces the view; on failure the entry is kept for a retry.
func (s *Session) Submit(ctx context.Context, taskNo string) (Ack, Snapshot, error) {
	if s.isClosed() {
		return Ack{}, Snapshot{}, ErrSessionClosed
	}

	task, entry, err := s.form.BeginSubmit(taskNo)
	if err != nil {
		return Ack{}, s.Snapshot(), err
	}

	runCtx, cancel := s.runContext(ctx)
	ack, err := s.submitter.Submit(runCtx, task, entry)
	cancel()

	s.form.FinishSubmit(taskNo, err == nil)
	s.recordAttempt(ctx, task, entry, ack, err)

	if err != nil {
		return Ack{}, s.Snapshot(), err
	}

	s.logger.Info("Task submitted",
		zap.String("task_no", taskNo),
		zap.String("status", ack.Status),
		zap.String("sheet", ack.SheetName))

	if ack.Status == Models.StatusYes && s.notifier != nil {
		if nerr := s.notifier.TaskCompleted(ctx, task, ack, s.caller); nerr != nil {
			s.logger.Warn("Completion notification failed", zap.String("task_no", taskNo), zap.Error(nerr))
		}
	}

	snap, rerr := s.Reconcile(ctx)
	if rerr != nil {
		s.logger.Warn("Reconciliation after submit failed", zap.String("task_no", taskNo), zap.Error(rerr))
		snap = s.Snapshot()
	}
	return ack, snap, nil
}

func (s *Session) recordAttempt(ctx context.Context, task Models.TaskRecord, entry Models.SubmissionEntry, ack Ack, err error) {
	if s.audit == nil {
		return
	}
	row := Models.SubmissionLog{
		TaskNo:    task.TaskNo,
		SheetName: s.submitter.Tables.For(task.Family()),
		Username:  s.caller.Username,
		Status:    entry.Status,
		Remarks:   entry.Remarks,
		FileURL:   ack.FileURL,
		Success:   err == nil,

		Measurements: Models.MeasurementsOf(entry),
	}
	if err != nil {
		row.Error = err.Error()
	}
	if aerr := s.audit.RecordSubmission(context.WithoutCancel(ctx), row); aerr != nil {
		s.logger.Warn("Failed to record submission", zap.String("task_no", task.TaskNo), zap.Error(aerr))
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close cancels in-flight work. Results that land afterwards are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}
