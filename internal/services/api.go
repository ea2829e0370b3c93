// API service for the segmentation backend
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/shared"
)

const (
	defaultBaseURL = "http://localhost:8000"
	uploadPath     = "/api/upload/"
	reportsPath    = "/api/reports/%s/"
	uploadField    = "nifti_files"
)

// APIService talks to the segmentation backend over HTTP.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API service instance for the backend at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// BaseURL returns the canonical backend origin with no trailing slash.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports whether the status code is 2xx.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ReportItem is one entry of the backend's per-user upload history.
type ReportItem struct {
	ID           int64             `json:"id"`
	BatchID      string            `json:"batch_id"`
	UserID       string            `json:"user_id"`
	Email        string            `json:"email"`
	CreatedAt    time.Time         `json:"created_at"`
	Results      *models.JobResult `json:"results"`
	Status       models.JobStatus  `json:"status"`
	ErrorMessage *string           `json:"error_message"`
}

// StatusError is a non-2xx response from the backend. It matches [shared.ErrAPIRequest] with errors.Is.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: status %d: %s", shared.ErrAPIRequest, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%v: status %d", shared.ErrAPIRequest, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return shared.ErrAPIRequest
}

// resolve joins path onto the base URL unless it is already absolute.
func (a *APIService) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return a.baseURL + path
}

func (a *APIService) do(req *http.Request) (*APIResponse, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.resolve(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return a.do(req)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.resolve(path), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req)
}

// Upload streams the four volumes of slots as one multipart request.
//
// Files are written under the nifti_files field in slot order, followed by the owner's user_id and email.
// A non-2xx response is returned as an error carrying the server's message when it sent one.
func (a *APIService) Upload(ctx context.Context, slots models.FileSlots, owner models.Identity) (*models.SubmitResponse, error) {
	files := slots.Files()
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, files, owner))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.resolve(uploadPath), pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.do(req)
	pr.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	var body models.SubmitResponse
	if resp.IsJSON {
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return nil, fmt.Errorf("failed to decode upload response: %w", err)
		}
	}

	if !resp.OK() {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: body.Error}
	}
	return &body, nil
}

func writeUploadForm(mw *multipart.Writer, files []models.FileRef, owner models.Identity) error {
	for _, f := range files {
		part, err := mw.CreateFormFile(uploadField, f.Name)
		if err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		_, err = io.Copy(part, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to stream %s: %w", f.Name, err)
		}
	}
	if err := mw.WriteField("user_id", owner.ID); err != nil {
		return err
	}
	if err := mw.WriteField("email", owner.Email); err != nil {
		return err
	}
	return mw.Close()
}

// Status fetches the job state at statusURL, which may be relative to the base URL.
func (a *APIService) Status(ctx context.Context, statusURL string) (*models.StatusResponse, error) {
	resp, err := a.Get(ctx, statusURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var status models.StatusResponse
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &status, nil
}

// Reports lists every upload the backend holds for userID, in server order.
func (a *APIService) Reports(ctx context.Context, userID string) ([]ReportItem, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	resp, err := a.Get(ctx, fmt.Sprintf(reportsPath, userID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var items []ReportItem
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}
	return items, nil
}

// Download copies the artifact at path into w and returns the byte count.
func (a *APIService) Download(ctx context.Context, path string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.resolve(path), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &StatusError{StatusCode: resp.StatusCode}
	}
	return io.Copy(w, resp.Body)
}

// Probe issues a HEAD request for path and reports whether it resolves to a 2xx.
func (a *APIService) Probe(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, a.resolve(path), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Health checks that the backend answers at its base URL. Any response below 500 counts as reachable.
func (a *APIService) Health(ctx context.Context) error {
	resp, err := a.Get(ctx, "/")
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}
