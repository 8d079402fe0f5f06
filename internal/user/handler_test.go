package user

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/credential"
)

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	log := zap.NewNop().Sugar()
	svc := NewUserService(sqlx.NewDb(db, "postgres"), nil, credential.NewSealer([32]byte{1}), log)
	return NewHandler(svc, log), mock
}

func TestHandlerRegister(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("jane@example.com", "Jane", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(9, "jane@example.com", "Jane", []byte("sealed"), time.Now(), time.Now()))

	body := `{"email":"jane@example.com","display_name":"Jane","credential":{"token":"a","refresh_token":"r","token_uri":"https://oauth2.googleapis.com/token","client_id":"c","client_secret":"s"}}`
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPut, "/users", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":9`)
	assert.NotContains(t, rec.Body.String(), "sealed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlerRegisterRejects(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPut, "/users", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPut, "/users", strings.NewReader(`{"email":"nobody"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
