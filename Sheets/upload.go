package Sheets

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Anvil/Models"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Uploader ships attachments to the remote upload action.
type Uploader struct {
	URL        string
	FolderID   string
	HTTPClient *http.Client
	Logger     *zap.Logger

	// MaxImageDimension bounds the longer side of image attachments in pixels.
	// Zero leaves images untouched.
	MaxImageDimension int
}

func NewUploader(uploadURL, folderID string, httpClient *http.Client, logger *zap.Logger) *Uploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		URL:        uploadURL,
		FolderID:   folderID,
		HTTPClient: httpClient,
		Logger:     logger,
	}
}

// Upload reads the attachment, base64 encodes it and posts it. It returns the
// stored file URL, or "" after logging a warning on any failure.
func (u *Uploader) Upload(ctx context.Context, a *Models.Attachment) string {
	fileURL, err := u.upload(ctx, a)
	if err != nil {
		name := ""
		if a != nil {
			name = a.FileName
		}
		u.Logger.Warn("Attachment upload failed", zap.String("file", name), zap.Error(err))
		return ""
	}
	return fileURL
}

func (u *Uploader) upload(ctx context.Context, a *Models.Attachment) (string, error) {
	if a == nil || a.Open == nil {
		return "", fmt.Errorf("no attachment to upload")
	}

	src, err := a.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open attachment: %w", err)
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		return "", fmt.Errorf("failed to read attachment: %w", err)
	}

	data = u.shrinkImage(data, a.MimeType)

	form := url.Values{}
	form.Set("action", "uploadFile")
	form.Set("base64Data", base64.StdEncoding.EncodeToString(data))
	form.Set("fileName", a.FileName)
	form.Set("mimeType", a.MimeType)
	form.Set("folderId", u.FolderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := u.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	var result WriteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode upload response (status %d): %w", resp.StatusCode, err)
	}
	if !result.Success || result.FileURL == "" {
		return "", &RemoteError{StatusCode: resp.StatusCode, Message: result.Error}
	}
	return result.FileURL, nil
}

// shrinkImage fits large images into MaxImageDimension. Anything that is not
// a decodable jpeg, png or gif is returned unchanged.
func (u *Uploader) shrinkImage(data []byte, mimeType string) []byte {
	if u.MaxImageDimension <= 0 {
		return data
	}

	var format imaging.Format
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		format = imaging.JPEG
	case "image/png":
		format = imaging.PNG
	case "image/gif":
		format = imaging.GIF
	default:
		return data
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		u.Logger.Debug("Attachment is not a decodable image", zap.Error(err))
		return data
	}
	bounds := img.Bounds()
	if bounds.Dx() <= u.MaxImageDimension && bounds.Dy() <= u.MaxImageDimension {
		return data
	}

	resized := imaging.Fit(img, u.MaxImageDimension, u.MaxImageDimension, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		u.Logger.Warn("Failed to re-encode resized image", zap.Error(err))
		return data
	}
	return buf.Bytes()
}
