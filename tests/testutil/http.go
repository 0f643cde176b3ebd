package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Envelope mirrors the API response body
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		PageSize   int   `json:"page_size"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

// APIClient sends in-process requests to a gin engine
type APIClient struct {
	t      *testing.T
	engine  *gin.Engine
	Token   string
	headers map[string]string
}

// NewAPIClient creates a client for engine
func NewAPIClient(t *testing.T, engine *gin.Engine) *APIClient {
	return &APIClient{t: t, engine: engine}
}

// WithToken returns a copy of the client that sends token as bearer
func (c *APIClient) WithToken(token string) *APIClient {
	clone := *c
	clone.Token = token
	return &clone
}

// WithHeader returns a copy of the client that also sends the given header
func (c *APIClient) WithHeader(key, value string) *APIClient {
	clone := *c
	clone.headers = make(map[string]string, len(c.headers)+1)
	for k, v := range c.headers {
		clone.headers[k] = v
	}
	clone.headers[key] = value
	return &clone
}

// Do sends a request. A string body is sent as is, anything else as JSON.
func (c *APIClient) Do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		reader = ToJSONReader(c.t, b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	c.engine.ServeHTTP(w, req)
	return w
}

// Get sends a GET request
func (c *APIClient) Get(path string) *httptest.ResponseRecorder {
	return c.Do(http.MethodGet, path, nil)
}

// Post sends a POST request
func (c *APIClient) Post(path string, body any) *httptest.ResponseRecorder {
	return c.Do(http.MethodPost, path, body)
}

// Put sends a PUT request
func (c *APIClient) Put(path string, body any) *httptest.ResponseRecorder {
	return c.Do(http.MethodPut, path, body)
}

// Upload sends content as a multipart file in field
func (c *APIClient) Upload(path, field, filename, content string) *httptest.ResponseRecorder {
	c.t.Helper()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile(field, filename)
	require.NoError(c.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(c.t, err)
	require.NoError(c.t, form.Close())

	return c.WithHeader("Content-Type", form.FormDataContentType()).Do(http.MethodPost, path, body.String())
}

// Delete sends a DELETE request
func (c *APIClient) Delete(path string) *httptest.ResponseRecorder {
	return c.Do(http.MethodDelete, path, nil)
}

// DecodeEnvelope parses the response body
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

// DecodeData asserts the status and unmarshals the envelope data into T
func DecodeData[T any](t *testing.T, w *httptest.ResponseRecorder, wantStatus int) T {
	t.Helper()

	require.Equal(t, wantStatus, w.Code, "body: %s", w.Body.String())
	env := DecodeEnvelope(t, w)
	require.True(t, env.Success)

	var data T
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

// AssertError asserts the status and the error code of a failed response
func AssertError(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()

	require.Equal(t, wantStatus, w.Code, "body: %s", w.Body.String())
	env := DecodeEnvelope(t, w)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, wantCode, env.Error.Code)
}

// ToJSONReader converts a value to a JSON io.Reader.
func ToJSONReader(t *testing.T, v any) io.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err, "Failed to marshal to JSON")
	return bytes.NewReader(data)
}
