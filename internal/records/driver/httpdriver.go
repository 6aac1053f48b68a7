package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"journalize_robot_backend/platform/apperr"
	"journalize_robot_backend/platform/logger"
)

// bridgeErrorCode values returned by the automation host.
const codeManualProcessingRequired = "manual_processing_required"

// HTTPConnector opens sessions through the UI-automation bridge, a small HTTP
// host running next to the records application.
type HTTPConnector struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// NewHTTPConnector creates a connector for the automation bridge. The timeout
// covers individual bridge calls, which may block on UI responsiveness.
func NewHTTPConnector(baseURL string, timeout time.Duration, log *logger.Logger) *HTTPConnector {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPConnector{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Open authenticates against the records application and returns the session.
func (c *HTTPConnector) Open(ctx context.Context, creds Credentials) (Session, error) {
	var resp struct {
		SessionID string `json:"sessionId"`
	}
	err := c.post(ctx, "/sessions", map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		return nil, apperr.New(apperr.KindAutomation, "bridge returned an empty session id")
	}

	c.log.Info("records session opened", "sessionId", resp.SessionID)

	return &httpSession{connector: c, id: resp.SessionID}, nil
}

func (c *HTTPConnector) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode bridge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create bridge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Automation(fmt.Sprintf("bridge call %s failed", path), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Automation(fmt.Sprintf("bridge call %s: read response", path), err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return apperr.Automation(fmt.Sprintf("bridge call %s: decode response", path), err)
		}
		return nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var bridgeErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &bridgeErr); err == nil && bridgeErr.Code == codeManualProcessingRequired {
			return apperr.IdentityAmbiguity(bridgeErr.Message).WithOp(path)
		}
		return apperr.New(apperr.KindAutomation, fmt.Sprintf("bridge call %s rejected: %s", path, string(data)))
	default:
		return apperr.New(apperr.KindAutomation,
			fmt.Sprintf("bridge call %s returned status %d: %s", path, resp.StatusCode, string(data)))
	}
}

// httpSession is one bridge-backed records session.
type httpSession struct {
	connector *HTTPConnector
	id        string
}

func (s *httpSession) path(op string) string {
	return fmt.Sprintf("/sessions/%s/%s", s.id, op)
}

func (s *httpSession) OpenSubject(ctx context.Context, identifier string) error {
	return s.connector.post(ctx, s.path("subject/open"), map[string]string{
		"identifier": identifier,
	}, nil)
}

func (s *httpSession) CreateDocument(ctx context.Context, path, documentType, description string) error {
	return s.connector.post(ctx, s.path("documents"), map[string]string{
		"path":         path,
		"documentType": documentType,
		"description":  description,
	}, nil)
}

func (s *httpSession) GetPrimaryClinic(ctx context.Context) (string, error) {
	var resp struct {
		ClinicName string `json:"clinicName"`
	}
	if err := s.connector.post(ctx, s.path("clinic/primary"), struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.ClinicName, nil
}

func (s *httpSession) CreateEvent(ctx context.Context, message, clinicName string) error {
	return s.connector.post(ctx, s.path("events"), map[string]string{
		"message":    message,
		"clinicName": clinicName,
	}, nil)
}

func (s *httpSession) CreateNote(ctx context.Context, text string, closeNote bool) error {
	return s.connector.post(ctx, s.path("notes"), map[string]any{
		"text":      text,
		"closeNote": closeNote,
	}, nil)
}

func (s *httpSession) CloseSubjectWindow(ctx context.Context) error {
	return s.connector.post(ctx, s.path("subject/close"), struct{}{}, nil)
}

func (s *httpSession) Close(ctx context.Context) error {
	return s.connector.post(ctx, s.path("close"), struct{}{}, nil)
}
