package Controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"Anvil/Config"
	"Anvil/Models"
	"Anvil/Reports"
	"Anvil/Sheets"
	"Anvil/Tasks"
	"Anvil/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

var errNoSession = errors.New("no open session, open one with POST /api/tasks/session")

// HistoryReader returns audit rows for a task, newest first.
type HistoryReader interface {
	History(ctx context.Context, taskNo string, limit int) ([]Models.SubmissionLog, error)
}

// TaskController exposes the caller's reconciliation session over HTTP.
type TaskController struct {
	Store          *Tasks.SessionStore
	History        HistoryReader
	Logger         *zap.Logger
	MaxUploadBytes int64
}

func NewTaskController(store *Tasks.SessionStore, history HistoryReader, logger *zap.Logger) *TaskController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskController{
		Store:          store,
		History:        history,
		Logger:         logger,
		MaxUploadBytes: 20 << 20,
	}
}

type openSessionInput struct {
	Anchor string `json:"anchor" validate:"required,max=128"`
}

// statusFor maps engine errors to HTTP statuses.
func statusFor(err error) int {
	var remote *Sheets.RemoteError
	var invalid *Config.ValidationError
	switch {
	case errors.Is(err, errNoSession), errors.Is(err, Tasks.ErrAnchorNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, Tasks.ErrNotReady),
		errors.Is(err, Tasks.ErrNotEditable),
		errors.Is(err, Tasks.ErrUnknownTask),
		errors.Is(err, Tasks.ErrAttachmentRequired):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, Tasks.ErrSubmissionInFlight):
		return fiber.StatusConflict
	case errors.Is(err, Tasks.ErrSessionClosed):
		return fiber.StatusGone
	case errors.Is(err, Tasks.ErrInvalidStatus), errors.As(err, &invalid):
		return fiber.StatusBadRequest
	case errors.As(err, &remote), errors.Is(err, Sheets.ErrTransport):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func (tc *TaskController) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError && status != fiber.StatusBadGateway {
		tc.Logger.Error("Task request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{"error": "Internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// taskParam copies the route parameter; fiber reuses the request buffer it points into.
func taskParam(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("taskNo"))
}

func (tc *TaskController) session(c *fiber.Ctx) (*Tasks.Session, Models.RoleContext, error) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return nil, Models.RoleContext{}, fmt.Errorf("caller missing from request context")
	}
	session, ok := tc.Store.Get(caller)
	if !ok {
		return nil, caller, errNoSession
	}
	return session, caller, nil
}

// OpenSession opens or re-anchors the caller's session and reconciles it.
func (tc *TaskController) OpenSession(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not Logged In."})
	}

	var input openSessionInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	input.Anchor = strings.TrimSpace(input.Anchor)
	if err := Config.ValidateStruct(input); err != nil {
		return tc.fail(c, err)
	}

	_, snap, err := tc.Store.Open(c.UserContext(), caller, input.Anchor)
	if errors.Is(err, Tasks.ErrAnchorNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":    err.Error(),
			"snapshot": snap,
		})
	}
	if err != nil {
		return tc.fail(c, err)
	}
	return c.JSON(snap)
}

// GetSession returns the last applied snapshot without refetching.
func (tc *TaskController) GetSession(c *fiber.Ctx) error {
	session, _, err := tc.session(c)
	if err != nil {
		return tc.fail(c, err)
	}
	return c.JSON(session.Snapshot())
}

// RefreshSession runs a new reconciliation pass.
func (tc *TaskController) RefreshSession(c *fiber.Ctx) error {
	session, _, err := tc.session(c)
	if err != nil {
		return tc.fail(c, err)
	}
	snap, err := session.Reconcile(c.UserContext())
	if errors.Is(err, Tasks.ErrAnchorNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":    err.Error(),
			"snapshot": snap,
		})
	}
	if err != nil {
		return tc.fail(c, err)
	}
	return c.JSON(snap)
}

// CloseSession cancels in-flight work and forgets the session.
func (tc *TaskController) CloseSession(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not Logged In."})
	}
	if !tc.Store.Close(caller) {
		return tc.fail(c, errNoSession)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (tc *TaskController) CheckEntry(c *fiber.Ctx) error {
	session, _, err := tc.session(c)
	if err != nil {
		return tc.fail(c, err)
	}
	state, err := session.Check(taskParam(c))
	if err != nil {
		return tc.fail(c, err)
	}
	return c.JSON(state)
}

func (tc *TaskController) UncheckEntry(c *fiber.Ctx) error {
	session, _, err := tc.session(c)
	if err != nil {
		return tc.fail(c, err)
	}
	if err := session.Uncheck(taskParam(c)); err != nil {
		return tc.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// EditEntry applies a partial edit to a checked task.
func (tc *TaskController) EditEntry(c *fiber.Ctx) error {
	session, _, err := tc.session(c)
	if err != nil {
		return tc.fail(c, err)
	}

	var patch Tasks.EntryPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := Config.ValidateStruct(patch); err != nil {
		return tc.fail(c, err)
	}

	state, err := session.Edit(taskParam(c), patch)
	if err != nil {
		return tc.fail(c, err)
	}
	return c.JSON(state)
}

// SetAttachment stores the multipart "file" on the task's form.
func (tc *TaskController) SetAttachment(c *fiber.Ctx) error {
	session, _, err := tc.session(c)
	if err != nil {
		return tc.fail(c, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No file provided"})
	}
	if tc.MaxUploadBytes > 0 && file.Size > tc.MaxUploadBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": fmt.Sprintf("File exceeds %d bytes", tc.MaxUploadBytes),
		})
	}

	src, err := file.Open()
	if err != nil {
		return tc.fail(c, fmt.Errorf("failed to open upload: %w", err))
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return tc.fail(c, fmt.Errorf("failed to read upload: %w", err))
	}

	mimeType := file.Header.Get(fiber.HeaderContentType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	state, err := session.SetAttachment(taskParam(c), Models.NewMemoryAttachment(file.Filename, mimeType, data))
	if err != nil {
		return tc.fail(c, err)
	}
	return c.JSON(state)
}

func (tc *TaskController) ClearAttachment(c *fiber.Ctx) error {
	session, _, err := tc.session(c)
	if err != nil {
		return tc.fail(c, err)
	}
	state, err := session.SetAttachment(taskParam(c), nil)
	if err != nil {
		return tc.fail(c, err)
	}
	return c.JSON(state)
}

// SubmitEntry sends one ready task and returns the acknowledgement with the
// refreshed snapshot. On failure the snapshot still carries the kept entry.
func (tc *TaskController) SubmitEntry(c *fiber.Ctx) error {
	session, _, err := tc.session(c)
	if err != nil {
		return tc.fail(c, err)
	}

	ack, snap, err := session.Submit(c.UserContext(), taskParam(c))
	if err != nil {
		status := statusFor(err)
		if status == fiber.StatusInternalServerError {
			return tc.fail(c, err)
		}
		return c.Status(status).JSON(fiber.Map{
			"error":    err.Error(),
			"snapshot": snap,
		})
	}
	return c.JSON(fiber.Map{
		"ack":      ack,
		"snapshot": snap,
	})
}

// EntryHistory lists submit attempts for a task. Non-admins see their own.
func (tc *TaskController) EntryHistory(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not Logged In."})
	}
	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit <= 0 || limit > 200 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be between 1 and 200"})
	}

	logs, err := tc.History.History(c.UserContext(), taskParam(c), limit)
	if err != nil {
		return tc.fail(c, err)
	}
	if !caller.IsAdmin() {
		own := make([]Models.SubmissionLog, 0, len(logs))
		for _, l := range logs {
			if strings.EqualFold(l.Username, caller.Username) {
				own = append(own, l)
			}
		}
		logs = own
	}
	return c.JSON(logs)
}

// Export returns the caller's current view as an xlsx workbook.
func (tc *TaskController) Export(c *fiber.Ctx) error {
	session, caller, err := tc.session(c)
	if err != nil {
		return tc.fail(c, err)
	}

	snap := session.Snapshot()
	buf, err := Reports.ExportView(snap.View, Reports.Summary{
		Anchor:      snap.Anchor,
		MachineName: snap.Identity.BaseName,
		Caller:      caller,
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
	})
	if err != nil {
		return tc.fail(c, err)
	}

	filename := fmt.Sprintf("tasks_%s_%s.xlsx", sanitizeFilename(snap.Anchor), time.Now().Format("20060102"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}

func sanitizeFilename(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "view"
	}
	return s
}
