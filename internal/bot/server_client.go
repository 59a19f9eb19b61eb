package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"chat-insights/internal/adapters/exporter"
	"chat-insights/internal/security"
)

// ServerAPI — операции бэкенда, которые использует бот.
type ServerAPI interface {
	StartTask(ctx context.Context, fileName string, content io.Reader) (*StartTaskResponse, error)
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatusResponse, error)
	GetTaskResult(ctx context.Context, taskID string) (*exporter.ReportDTO, error)
}

// StatusError — неожиданный HTTP-статус ответа бэкенда.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.Code, e.Message)
}

// ClientOption — функциональная опция для ServerClient.
type ClientOption func(*ServerClient)

// WithEncryption включает отправку содержимого в зашифрованном виде
// через /api/v1/analyze-encrypted.
func WithEncryption() ClientOption {
	return func(c *ServerClient) {
		c.encrypt = true
	}
}

// WithHTTPClient заменяет HTTP-клиент.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *ServerClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// ServerClient — клиент для взаимодействия с API бэкенд-сервера.
type ServerClient struct {
	baseURL    string
	httpClient *http.Client
	encrypt    bool
}

// NewServerClient создает новый экземпляр ServerClient.
func NewServerClient(baseURL string, timeout time.Duration, opts ...ClientOption) *ServerClient {
	c := &ServerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartTaskResponse — ответ на постановку задачи.
type StartTaskResponse struct {
	TaskID string `json:"task_id"`
}

// TaskStatusResponse — состояние задачи на бэкенде.
type TaskStatusResponse struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// StartTask отправляет экспорт чата на анализ.
func (c *ServerClient) StartTask(ctx context.Context, fileName string, content io.Reader) (*StartTaskResponse, error) {
	if c.encrypt {
		data, err := io.ReadAll(content)
		if err != nil {
			return nil, fmt.Errorf("failed to read file content: %w", err)
		}
		return c.StartEncryptedTask(ctx, data)
	}

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	h.Set("Content-Type", "text/plain; charset=utf-8")
	fw, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file for %s: %w", fileName, err)
	}
	if _, err = io.Copy(fw, content); err != nil {
		return nil, fmt.Errorf("failed to copy file content for %s: %w", fileName, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	var result StartTaskResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/analyze", w.FormDataContentType(), &b, http.StatusAccepted, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartEncryptedTask запрашивает ключ сервера, шифрует data и ставит задачу.
func (c *ServerClient) StartEncryptedTask(ctx context.Context, data []byte) (*StartTaskResponse, error) {
	key, err := c.PublicKey(ctx)
	if err != nil {
		return nil, err
	}
	env, err := security.Seal(key, data)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt upload: %w", err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	var result StartTaskResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/analyze-encrypted", "application/json", bytes.NewReader(body), http.StatusAccepted, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartTaskByHash ставит задачу на выдачу отчета из кеша сервера.
func (c *ServerClient) StartTaskByHash(ctx context.Context, hash string) (*StartTaskResponse, error) {
	body, err := json.Marshal(map[string]string{"hash": hash})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	var result StartTaskResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/analyze-by-hash", "application/json", bytes.NewReader(body), http.StatusAccepted, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PublicKey возвращает открытый ключ сервера для шифрования загрузок.
func (c *ServerClient) PublicKey(ctx context.Context) (string, error) {
	var result struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/public-key", "", nil, http.StatusOK, &result); err != nil {
		return "", err
	}
	if result.PublicKey == "" {
		return "", errors.New("server returned empty public key")
	}
	return result.PublicKey, nil
}

// GetTaskStatus запрашивает статус задачи.
func (c *ServerClient) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatusResponse, error) {
	var result TaskStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+taskID, "", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTaskResult запрашивает отчет выполненной задачи.
func (c *ServerClient) GetTaskResult(ctx context.Context, taskID string) (*exporter.ReportDTO, error) {
	var result exporter.ReportDTO
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+taskID+"/result", "", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *ServerClient) do(ctx context.Context, method, path, contentType string, body io.Reader, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
