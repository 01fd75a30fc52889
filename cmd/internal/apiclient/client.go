// Package apiclient talks to the clinic API on behalf of the sync agent.
package apiclient

import (
	"bytes"
	"context"
	"ecare/cmd/internal/service"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Paths that never carry the bearer token.
var anonymousPrefixes = []string{
	"/api/auth/login",
	"/api/auth/register",
	"/api/clinics",
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type Client struct {
	baseURL    string
	token      func() string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithToken sets a static bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = func() string { return token }
	}
}

// WithTokenSource reads the bearer token on every request.
func WithTokenSource(fn func() string) Option {
	return func(c *Client) {
		c.token = fn
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      func() string { return "" },
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreatePrescription pushes a prescription with its items. The server
// upserts by local_id so repeating the call is safe.
func (c *Client) CreatePrescription(ctx context.Context, req *service.PrescriptionRequest) (*service.PrescriptionResponse, error) {
	var resp service.PrescriptionResponse
	if err := c.do(ctx, http.MethodPost, "/api/prescriptions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AddPrescriptionItem(ctx context.Context, prescriptionID int, req *service.PrescriptionItemRequest) (*service.PrescriptionItemResponse, error) {
	var resp service.PrescriptionItemResponse
	path := fmt.Sprintf("/api/prescriptions/%d/items", prescriptionID)
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateAppointment(ctx context.Context, req *service.AppointmentRequest) (*service.AppointmentResponse, error) {
	var resp service.AppointmentResponse
	if err := c.do(ctx, http.MethodPost, "/api/appointments", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteAppointment(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/appointments/%d", id), nil, nil)
}

func (c *Client) ListMedications(ctx context.Context) ([]*service.MedicationResponse, error) {
	var resp struct {
		Medications []*service.MedicationResponse `json:"medications"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/medications", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Medications, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" && !isAnonymous(path) {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(respBody[:min(200, len(respBody))])
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func isAnonymous(path string) bool {
	for _, prefix := range anonymousPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
