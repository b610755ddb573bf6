package Sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Anvil/Models"

	"go.uber.org/zap"
)

// UpdateRequest is a partial row update addressed by task number.
type UpdateRequest struct {
	SheetName string
	TaskNo    string
	Fields    []Models.Field
}

// Form renders the request as the form body of the update action.
func (r UpdateRequest) Form(sheetID string) url.Values {
	form := url.Values{}
	form.Set("action", "update")
	form.Set("sheetId", sheetID)
	form.Set("sheetName", r.SheetName)
	form.Set("taskNo", r.TaskNo)
	for _, f := range r.Fields {
		form.Set(f.Label, f.Value)
	}
	return form
}

// Writer posts row updates to the remote write endpoint.
type Writer struct {
	URL        string
	SheetID    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func NewWriter(writeURL, sheetID string, httpClient *http.Client, logger *zap.Logger) *Writer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{URL: writeURL, SheetID: sheetID, HTTPClient: httpClient, Logger: logger}
}

// UpdateRow sends one update. Application failures come back as *RemoteError
// carrying the server message when there is one.
func (w *Writer) UpdateRow(ctx context.Context, update UpdateRequest) error {
	body := update.Form(w.SheetID).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	var result WriteResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{StatusCode: resp.StatusCode, Message: result.Error}
	}
	if decodeErr != nil {
		return &RemoteError{StatusCode: resp.StatusCode}
	}
	if !result.Success {
		return &RemoteError{StatusCode: resp.StatusCode, Message: result.Error}
	}

	w.Logger.Info("Task row updated",
		zap.String("sheet", update.SheetName),
		zap.String("task_no", update.TaskNo))
	return nil
}
