package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/auth"
	"github.com/enterprisecrm/backend/internal/interfaces/http/dto"
	"github.com/enterprisecrm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testActorID = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")

// withActor simulates the JWT middleware for an authenticated user
func withActor(userID uuid.UUID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.JWTUserIDKey, userID.String())
		c.Set(middleware.JWTClaimsKey, &auth.Claims{
			UserID:    userID.String(),
			Username:  "jdoe",
			Role:      role,
			TokenType: auth.TokenTypeAccess,
		})
		c.Next()
	}
}

func setupTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	return router
}

func setupAuthedRouter() *gin.Engine {
	router := setupTestRouter()
	router.Use(withActor(testActorID, "manager"))
	return router
}

func doRequest(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		payload, _ := json.Marshal(b)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// decodeData unmarshals the data member of a success envelope into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}

func TestBaseHandler_Responses(t *testing.T) {
	h := &BaseHandler{}
	router := setupTestRouter()
	router.GET("/ok", func(c *gin.Context) { h.Success(c, gin.H{"name": "Acme"}) })
	router.POST("/created", func(c *gin.Context) { h.Created(c, gin.H{"id": "1"}) })
	router.DELETE("/gone", func(c *gin.Context) { h.NoContent(c) })

	w := doRequest(router, http.MethodGet, "/ok", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)

	w = doRequest(router, http.MethodPost, "/created", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodDelete, "/gone", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, shared.CodeNotFound},
		{"already exists", shared.NewDomainError(shared.CodeAlreadyExists, "dup"), http.StatusConflict, shared.CodeAlreadyExists},
		{"invalid input", shared.NewDomainError(shared.CodeInvalidInput, "bad"), http.StatusBadRequest, shared.CodeInvalidInput},
		{"concurrency", shared.NewDomainError(shared.CodeConcurrencyConflict, "stale"), http.StatusConflict, shared.CodeConcurrencyConflict},
		{"invalid state", shared.NewDomainError(shared.CodeInvalidState, "closed"), http.StatusUnprocessableEntity, shared.CodeInvalidState},
		{"forbidden", shared.NewDomainError(shared.CodeForbidden, "no"), http.StatusForbidden, shared.CodeForbidden},
		{"credentials", shared.NewDomainError("INVALID_CREDENTIALS", "no"), http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"token", shared.NewDomainError("TOKEN_EXPIRED", "old"), http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"wrapped domain error", errors.Join(errors.New("ctx"), shared.ErrNotFound), http.StatusNotFound, shared.CodeNotFound},
		{"unexpected error", errors.New("connection reset"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			router := setupTestRouter()
			router.GET("/err", func(c *gin.Context) { h.HandleError(c, tt.err) })

			w := doRequest(router, http.MethodGet, "/err", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}
}

func TestBaseHandler_HandleError_HidesInternalMessage(t *testing.T) {
	h := &BaseHandler{}
	router := setupTestRouter()
	router.GET("/err", func(c *gin.Context) { h.HandleError(c, errors.New("pq: password authentication failed")) })

	w := doRequest(router, http.MethodGet, "/err", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password authentication")
}

type bindTarget struct {
	Name  string `json:"name" binding:"required,max=5"`
	Count int    `json:"count"`
}

func TestBaseHandler_BindJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"valid", `{"name":"Acme","count":2}`, http.StatusOK, ""},
		{"empty body", "", http.StatusBadRequest, dto.ErrCodeInvalidJSON},
		{"malformed", `{"name":`, http.StatusBadRequest, dto.ErrCodeInvalidJSON},
		{"syntax error", `{name: "x"}`, http.StatusBadRequest, dto.ErrCodeInvalidJSON},
		{"wrong type", `{"name":"Acme","count":"two"}`, http.StatusBadRequest, dto.ErrCodeInvalidJSON},
		{"missing required", `{"count":2}`, http.StatusBadRequest, dto.ErrCodeValidation},
		{"too long", `{"name":"Acme Corp"}`, http.StatusBadRequest, dto.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			router := setupTestRouter()
			router.POST("/bind", func(c *gin.Context) {
				var target bindTarget
				if h.BindJSON(c, &target) {
					h.Success(c, target)
				}
			})

			req := httptest.NewRequest(http.MethodPost, "/bind", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, w))
			}
		})
	}
}

func TestBaseHandler_BindJSON_TooLarge(t *testing.T) {
	h := &BaseHandler{}
	router := setupTestRouter()
	router.POST("/bind", func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 8)
		var target bindTarget
		if h.BindJSON(c, &target) {
			h.Success(c, target)
		}
	})

	w := doRequest(router, http.MethodPost, "/bind", `{"name":"Acme","count":123456}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, dto.ErrCodePayloadTooLarge, errorCode(t, w))
}

func TestBaseHandler_ValidationDetails(t *testing.T) {
	h := &BaseHandler{}
	router := setupTestRouter()
	router.POST("/bind", func(c *gin.Context) {
		var target bindTarget
		h.BindJSON(c, &target)
	})

	w := doRequest(router, http.MethodPost, "/bind", `{}`)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "This field is required", resp.Error.Details[0].Message)
}

func TestBaseHandler_ParamIDAndActorID(t *testing.T) {
	h := &BaseHandler{}
	router := setupTestRouter()
	router.GET("/items/:id", func(c *gin.Context) {
		id, ok := h.ParamID(c)
		if !ok {
			return
		}
		if _, ok := h.ActorID(c); !ok {
			return
		}
		h.Success(c, id)
	})

	w := doRequest(router, http.MethodGet, "/items/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, shared.CodeInvalidInput, errorCode(t, w))

	w = doRequest(router, http.MethodGet, "/items/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeUnauthorized, errorCode(t, w))
}

func TestRespondPage(t *testing.T) {
	router := setupTestRouter()
	router.GET("/empty", func(c *gin.Context) {
		respondPage(c, &shared.Paginated[string]{Total: 0, Page: 1, PageSize: 20})
	})
	router.GET("/page", func(c *gin.Context) {
		respondPage(c, &shared.Paginated[string]{Items: []string{"a", "b"}, Total: 45, Page: 2, PageSize: 20})
	})

	w := doRequest(router, http.MethodGet, "/empty", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)

	w = doRequest(router, http.MethodGet, "/page", nil)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(45), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.Page)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}

func TestActOnID(t *testing.T) {
	h := &BaseHandler{}
	var gotActor, gotID uuid.UUID
	action := func(_ context.Context, actorID, id uuid.UUID) (*string, error) {
		gotActor, gotID = actorID, id
		result := "done"
		return &result, nil
	}
	failing := func(context.Context, uuid.UUID, uuid.UUID) (*string, error) {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Already closed")
	}

	router := setupAuthedRouter()
	router.POST("/items/:id/act", func(c *gin.Context) { actOnID(h, c, action) })
	router.POST("/items/:id/fail", func(c *gin.Context) { actOnID(h, c, failing) })

	id := uuid.New()
	w := doRequest(router, http.MethodPost, "/items/"+id.String()+"/act", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testActorID, gotActor)
	assert.Equal(t, id, gotID)

	w = doRequest(router, http.MethodPost, "/items/"+id.String()+"/fail", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, shared.CodeInvalidState, errorCode(t, w))
}
