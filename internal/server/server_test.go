package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-insights/internal/cache"
	"chat-insights/internal/domain"
	"chat-insights/internal/pkg/config"
	"chat-insights/internal/security"
)

// fakeAnalyzer — управляемая реализация ChatAnalyzer.
type fakeAnalyzer struct {
	mu       sync.Mutex
	received [][]byte
	report   *domain.Report
	err      error
	cached   map[string]*domain.Report
	block    chan struct{}
}

func (f *fakeAnalyzer) AnalyzeChat(ctx context.Context, data []byte) (*domain.Report, error) {
	f.mu.Lock()
	f.received = append(f.received, data)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.report, f.err
}

func (f *fakeAnalyzer) CachedReport(hash string) (*domain.Report, bool) {
	r, ok := f.cached[hash]
	return r, ok
}

func (f *fakeAnalyzer) lastReceived() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.received) == 0 {
		return nil
	}
	return f.received[len(f.received)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		Server:     config.Server{Host: "localhost", Port: 8080, MaxUploadSizeMB: 1},
		Processing: config.Processing{TaskTimeout: time.Second},
	}
}

func newTestServer(t *testing.T, a *fakeAnalyzer, opener *security.Opener) *Server {
	t.Helper()
	srv := New(testConfig(), a, NewTaskStore(time.Hour), opener, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.HTTPServer.Handler.ServeHTTP(rr, req)
	return rr
}

func uploadRequest(t *testing.T, filename, contentType, body string) *http.Request {
	t.Helper()
	var b bytes.Buffer
	writer := multipart.NewWriter(&b)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	fw, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &b)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func taskIDFrom(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotEmpty(t, resp["task_id"])
	return resp["task_id"]
}

func waitStatus(t *testing.T, srv *Server, id string, want TaskStatus) Task {
	t.Helper()
	var task Task
	require.Eventually(t, func() bool {
		var err error
		task, err = srv.taskStore.GetTask(id)
		return err == nil && task.Status == want
	}, time.Second, 5*time.Millisecond)
	return task
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, &fakeAnalyzer{}, nil)

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Response-Time"))

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_Analyze(t *testing.T) {
	report := &domain.Report{MessagesAnalyzed: 3}

	t.Run("успешный анализ", func(t *testing.T) {
		a := &fakeAnalyzer{report: report}
		srv := newTestServer(t, a, nil)

		id := taskIDFrom(t, do(srv, uploadRequest(t, "chat.txt", "text/plain; charset=utf-8", "hello")))
		waitStatus(t, srv, id, TaskStatusCompleted)
		assert.Equal(t, []byte("hello"), a.lastReceived())

		rr := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+id+"/result", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var body map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.EqualValues(t, 3, body["messages_analyzed"])
	})

	t.Run("application/octet-stream допускается", func(t *testing.T) {
		srv := newTestServer(t, &fakeAnalyzer{report: report}, nil)
		rr := do(srv, uploadRequest(t, "CHAT.TXT", "application/octet-stream", "hello"))
		assert.Equal(t, http.StatusAccepted, rr.Code)
	})

	t.Run("неверное расширение", func(t *testing.T) {
		srv := newTestServer(t, &fakeAnalyzer{}, nil)
		rr := do(srv, uploadRequest(t, "chat.json", "text/plain", "{}"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("неверный тип содержимого", func(t *testing.T) {
		srv := newTestServer(t, &fakeAnalyzer{}, nil)
		rr := do(srv, uploadRequest(t, "chat.txt", "image/png", "x"))
		assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	})

	t.Run("файл слишком большой", func(t *testing.T) {
		srv := newTestServer(t, &fakeAnalyzer{}, nil)
		rr := do(srv, uploadRequest(t, "chat.txt", "text/plain", strings.Repeat("a", 2<<20)))
		assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, rr.Code)
	})

	t.Run("нет файла в форме", func(t *testing.T) {
		srv := newTestServer(t, &fakeAnalyzer{}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("x"))
		req.Header.Set("Content-Type", "text/plain")
		assert.Equal(t, http.StatusBadRequest, do(srv, req).Code)
	})

	t.Run("ошибка разбора", func(t *testing.T) {
		a := &fakeAnalyzer{err: &domain.ParseError{Reason: "no messages"}}
		srv := newTestServer(t, a, nil)

		id := taskIDFrom(t, do(srv, uploadRequest(t, "chat.txt", "text/plain", "garbage")))
		task := waitStatus(t, srv, id, TaskStatusFailed)
		assert.Equal(t, "parse_error", task.ErrorCode)

		rr := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+id, nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var status map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
		assert.Equal(t, "failed", status["status"])
		assert.Equal(t, "parse_error", status["error_code"])

		rr = do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+id+"/result", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("таймаут задачи", func(t *testing.T) {
		a := &fakeAnalyzer{block: make(chan struct{})}
		srv := newTestServer(t, a, nil)
		srv.cfg.Processing.TaskTimeout = 20 * time.Millisecond

		id := taskIDFrom(t, do(srv, uploadRequest(t, "chat.txt", "text/plain", "x")))
		task := waitStatus(t, srv, id, TaskStatusFailed)
		assert.Equal(t, ErrorCodeTimeout, task.ErrorCode)
	})
}

func TestServer_AnalyzeEncrypted(t *testing.T) {
	priv, pub, err := security.GenerateKeyPair()
	require.NoError(t, err)
	opener, err := security.NewOpener(priv)
	require.NoError(t, err)

	t.Run("публичный ключ", func(t *testing.T) {
		srv := newTestServer(t, &fakeAnalyzer{}, opener)
		rr := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/public-key", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var resp map[string]string
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, pub, resp["public_key"])
	})

	t.Run("расшифровка и анализ", func(t *testing.T) {
		a := &fakeAnalyzer{report: &domain.Report{}}
		srv := newTestServer(t, a, opener)

		env, err := security.Seal(pub, []byte("secret chat"))
		require.NoError(t, err)
		body, err := json.Marshal(env)
		require.NoError(t, err)

		id := taskIDFrom(t, do(srv, httptest.NewRequest(http.MethodPost, "/api/v1/analyze-encrypted", bytes.NewReader(body))))
		waitStatus(t, srv, id, TaskStatusCompleted)
		assert.Equal(t, []byte("secret chat"), a.lastReceived())
	})

	t.Run("испорченные данные", func(t *testing.T) {
		srv := newTestServer(t, &fakeAnalyzer{}, opener)
		env, err := security.Seal(pub, []byte("secret chat"))
		require.NoError(t, err)
		env.Nonce = env.ClientPublicKey
		body, _ := json.Marshal(env)

		rr := do(srv, httptest.NewRequest(http.MethodPost, "/api/v1/analyze-encrypted", bytes.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("шифрование не настроено", func(t *testing.T) {
		srv := newTestServer(t, &fakeAnalyzer{}, nil)
		rr := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/public-key", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		rr = do(srv, httptest.NewRequest(http.MethodPost, "/api/v1/analyze-encrypted", strings.NewReader("{}")))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestServer_AnalyzeByHash(t *testing.T) {
	hash := cache.HashContent([]byte("chat"))
	report := &domain.Report{MessagesAnalyzed: 7}
	a := &fakeAnalyzer{cached: map[string]*domain.Report{hash: report}}
	srv := newTestServer(t, a, nil)

	post := func(body string) *httptest.ResponseRecorder {
		return do(srv, httptest.NewRequest(http.MethodPost, "/api/v1/analyze-by-hash", strings.NewReader(body)))
	}

	t.Run("попадание в кеш", func(t *testing.T) {
		id := taskIDFrom(t, post(`{"hash":"`+strings.ToUpper(hash)+`"}`))
		task := waitStatus(t, srv, id, TaskStatusCompleted)
		assert.Same(t, report, task.Result)
	})

	t.Run("промах кеша", func(t *testing.T) {
		id := taskIDFrom(t, post(`{"hash":"`+cache.HashContent([]byte("other"))+`"}`))
		task := waitStatus(t, srv, id, TaskStatusFailed)
		assert.Equal(t, ErrorCodeCacheMiss, task.ErrorCode)
	})

	t.Run("неверный хеш", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, post(`{"hash":"abc"}`).Code)
		assert.Equal(t, http.StatusBadRequest, post(`not json`).Code)
	})
}

func TestServer_TaskEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeAnalyzer{}, nil)

	t.Run("задача не найдена", func(t *testing.T) {
		rr := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/non-existent", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		rr = do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/non-existent/result", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("задача в ожидании", func(t *testing.T) {
		srv.taskStore.CreateTask("pending-task")
		rr := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/pending-task", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var resp map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "pending-task", resp["task_id"])
		assert.Equal(t, string(TaskStatusPending), resp["status"])

		rr = do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/pending-task/result", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestServer_ShutdownCancelsTasks(t *testing.T) {
	a := &fakeAnalyzer{block: make(chan struct{})}
	srv := New(testConfig(), a, NewTaskStore(time.Hour), nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	srv.cfg.Processing.TaskTimeout = 0

	id := taskIDFrom(t, do(srv, uploadRequest(t, "chat.txt", "text/plain", "x")))
	waitStatus(t, srv, id, TaskStatusProcessing)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	task, err := srv.taskStore.GetTask(id)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusFailed, task.Status)
	assert.Contains(t, task.ErrorMessage, context.Canceled.Error())
}
