package register

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/healthmap/healthmap-api/internal/models"
	userservice "github.com/healthmap/healthmap-api/internal/services/user"
)

// UserServiceMock — мок сервиса пользователей.
type UserServiceMock struct {
	mock.Mock
}

func (m *UserServiceMock) CreateUser(ctx context.Context, email, password, name string) (*models.User, error) {
	args := m.Called(ctx, email, password, name)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		setupMock      func(m *UserServiceMock)
		wantStatusCode int
		wantBody       string
	}{
		{
			name:        "valid registration",
			requestBody: map[string]any{"email": "a@b.com", "password": "secret1", "name": "Ann"},
			setupMock: func(m *UserServiceMock) {
				m.On("CreateUser", mock.Anything, "a@b.com", "secret1", "Ann").
					Return(&models.User{ID: "id-1", Email: "a@b.com", Name: "Ann", PasswordHash: "hash"}, nil).Once()
			},
			wantStatusCode: http.StatusCreated,
			wantBody:       `{"message":"User created successfully","user":{"id":"id-1","email":"a@b.com","name":"Ann"}}`,
		},
		{
			name:        "email is lowercased and name is optional",
			requestBody: map[string]any{"email": "Ann@Example.COM", "password": "secret1"},
			setupMock: func(m *UserServiceMock) {
				m.On("CreateUser", mock.Anything, "ann@example.com", "secret1", "").
					Return(&models.User{ID: "id-2", Email: "ann@example.com"}, nil).Once()
			},
			wantStatusCode: http.StatusCreated,
			wantBody:       `{"message":"User created successfully","user":{"id":"id-2","email":"ann@example.com","name":null}}`,
		},
		{
			name:        "duplicate email",
			requestBody: map[string]any{"email": "a@b.com", "password": "secret1", "name": "Ann"},
			setupMock: func(m *UserServiceMock) {
				m.On("CreateUser", mock.Anything, "a@b.com", "secret1", "Ann").
					Return(nil, userservice.ErrUserExists).Once()
			},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"error":"User with this email already exists"}`,
		},
		{
			name:        "service failure",
			requestBody: map[string]any{"email": "a@b.com", "password": "secret1"},
			setupMock: func(m *UserServiceMock) {
				m.On("CreateUser", mock.Anything, "a@b.com", "secret1", "").
					Return(nil, userservice.ErrCreateUser).Once()
			},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"error":"Failed to create user"}`,
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusInternalServerError,
			wantBody:       `{"error":"Internal server error"}`,
		},
		{
			name:           "missing password",
			requestBody:    map[string]any{"email": "a@b.com"},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"error":"Email and password are required"}`,
		},
		{
			name:           "missing email takes priority over short password",
			requestBody:    map[string]any{"password": "123"},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"error":"Email and password are required"}`,
		},
		{
			name:           "short password",
			requestBody:    map[string]any{"email": "a@b.com", "password": "12345"},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"error":"Password must be at least 6 characters"}`,
		},
		{
			name:           "short password takes priority over email format",
			requestBody:    map[string]any{"email": "bad", "password": "12345"},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"error":"Password must be at least 6 characters"}`,
		},
		{
			name:           "email without at sign",
			requestBody:    map[string]any{"email": "bad", "password": "secret1"},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"error":"Please enter a valid email address"}`,
		},
		{
			name:           "email without domain dot",
			requestBody:    map[string]any{"email": "a@localhost", "password": "secret1"},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"error":"Please enter a valid email address"}`,
		},
		{
			name:           "email with whitespace",
			requestBody:    map[string]any{"email": "a b@c.com", "password": "secret1"},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"error":"Please enter a valid email address"}`,
		},
		{
			name:        "astral symbols count as two characters each",
			requestBody: map[string]any{"email": "a@b.com", "password": "😀😀😀"},
			setupMock: func(m *UserServiceMock) {
				m.On("CreateUser", mock.Anything, "a@b.com", "😀😀😀", "").
					Return(&models.User{ID: "id-3", Email: "a@b.com"}, nil).Once()
			},
			wantStatusCode: http.StatusCreated,
			wantBody:       `{"message":"User created successfully","user":{"id":"id-3","email":"a@b.com","name":null}}`,
		},
		{
			name:           "two astral symbols are too short",
			requestBody:    map[string]any{"email": "a@b.com", "password": "😀😀"},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"error":"Password must be at least 6 characters"}`,
		},
		{
			name:           "email with non-breaking space",
			requestBody:    map[string]any{"email": "a\u00a0b@c.com", "password": "secret1"},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"error":"Please enter a valid email address"}`,
		},
		{
			name:           "email with ideographic space in domain",
			requestBody:    map[string]any{"email": "a@c\u3000d.com", "password": "secret1"},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"error":"Please enter a valid email address"}`,
		},
		{
			name:        "panic in service",
			requestBody: map[string]any{"email": "a@b.com", "password": "secret1"},
			setupMock: func(m *UserServiceMock) {
				m.On("CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Run(func(mock.Arguments) { panic("boom") }).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantBody:       `{"error":"Internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceMock := new(UserServiceMock)
			if tt.setupMock != nil {
				tt.setupMock(serviceMock)
			}
			handler := New(newNoopLogger(), serviceMock)

			var bodyBytes []byte
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				var err error
				bodyBytes, err = json.Marshal(tt.requestBody)
				if err != nil {
					t.Fatal(err)
				}
			}

			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "secret1")
			assert.NotContains(t, rec.Body.String(), "hash")

			if tt.setupMock == nil {
				serviceMock.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			serviceMock.AssertExpectations(t)
		})
	}
}

func TestUTF16Len(t *testing.T) {
	assert.Equal(t, 0, utf16Len(""))
	assert.Equal(t, 6, utf16Len("secret"))
	assert.Equal(t, 6, utf16Len("пароль"))
	assert.Equal(t, 6, utf16Len("😀😀😀"))
}
