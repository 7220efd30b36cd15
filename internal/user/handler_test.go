package user

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/gatehouse/internal/config"
	"github.com/ovaphlow/gatehouse/internal/session"
	"github.com/ovaphlow/gatehouse/internal/user/entity"
	userrepo "github.com/ovaphlow/gatehouse/internal/user/repo"
)

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock, *session.Manager) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		AppEnv:          "development",
		TokenSecret:     "test-secret",
		TokenTTL:        72 * time.Hour,
		MsgDenied:       "access denied",
		MsgUnauthorized: "invalid or expired token",
	}
	logger := zap.NewNop().Sugar()
	sessions := session.NewManager(cfg, logger)
	next := int64(100)
	svc := NewService(userrepo.NewUserRepo(sqlx.NewDb(db, "sqlmock")), BcryptHasher{Cost: bcrypt.MinCost}, func() int64 {
		next++
		return next
	})
	return NewHandler(svc, sessions, logger), mock, sessions
}

func sessionCookie(t *testing.T, res *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range res.Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func TestHandlerRegister(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	body := `{"name":"Ann Smith","email":"ann@example.com","national_id":"12345678901","password":"s3cretpw"}`
	req := httptest.NewRequest(http.MethodPost, "/gatehouse/users", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusCreated, w.Body.String())
	}
	res := w.Result()
	defer res.Body.Close()

	c := sessionCookie(t, res)
	if c == nil || c.Value == "" {
		t.Fatal("expected a session cookie on register")
	}
	if !c.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}

	var got map[string]any
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got["email"] != "ann@example.com" {
		t.Fatalf("email = %v, want ann@example.com", got["email"])
	}
	if _, leaked := got["national_id"]; leaked {
		t.Fatal("national_id must not appear in the response")
	}
}

func TestHandlerRegisterValidation(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body := `{"email":"not-an-email","password":"s3cretpw"}`
	req := httptest.NewRequest(http.MethodPost, "/gatehouse/users", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Register(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	var got struct {
		Error  string       `json:"error"`
		Fields []FieldError `json:"fields"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got.Fields) != 1 || got.Fields[0].Field != "email" {
		t.Fatalf("unexpected fields: %+v", got.Fields)
	}
}

func TestHandlerRegisterDuplicate(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(&pq.Error{Code: "23505"})

	body := `{"email":"taken@example.com","password":"s3cretpw"}`
	req := httptest.NewRequest(http.MethodPost, "/gatehouse/users", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Register(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestHandlerRegisterBadJSON(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/gatehouse/users", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()
	h.Register(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandlerLogin(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	stored := entity.User{ID: 7, Email: "ann@example.com", PasswordHash: mustHash(t, "s3cretpw"),
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\$1`).
		WithArgs("ann@example.com").
		WillReturnRows(userRows(stored))

	body := `{"identifier":"ann@example.com","password":"s3cretpw"}`
	req := httptest.NewRequest(http.MethodPost, "/gatehouse/sessions", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	res := w.Result()
	defer res.Body.Close()
	if c := sessionCookie(t, res); c == nil || c.Value == "" {
		t.Fatal("expected a session cookie on login")
	}
}

func TestHandlerLoginBadCredentials(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\$1`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	body := `{"identifier":"ghost@example.com","password":"whatever"}`
	req := httptest.NewRequest(http.MethodPost, "/gatehouse/sessions", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	res := w.Result()
	defer res.Body.Close()
	if c := sessionCookie(t, res); c != nil {
		t.Fatal("no cookie should be set on failed login")
	}
}

func TestHandlerLogout(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/gatehouse/sessions", nil)
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	res := w.Result()
	defer res.Body.Close()
	c := sessionCookie(t, res)
	if c == nil {
		t.Fatal("expected an expiring cookie")
	}
	if c.MaxAge >= 0 || c.Value != "" {
		t.Fatalf("cookie not cleared: MaxAge=%d Value=%q", c.MaxAge, c.Value)
	}
}

func TestHandlerMe(t *testing.T) {
	h, mock, sessions := newTestHandler(t)
	stored := entity.User{ID: 7, Name: "Ann", Email: "ann@example.com", NationalID: "12345678901",
		PasswordHash: "hash", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id=\$1`).
		WithArgs(int64(7)).
		WillReturnRows(userRows(stored))

	token, err := sessions.Issue(7)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/gatehouse/users/me", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	w := httptest.NewRecorder()
	sessions.Guard(http.HandlerFunc(h.Me)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got["email"] != "ann@example.com" {
		t.Fatalf("email = %v, want ann@example.com", got["email"])
	}
	if _, leaked := got["national_id"]; leaked {
		t.Fatal("restricted profile must drop national_id")
	}
}

func TestHandlerMeWithoutSession(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/gatehouse/users/me", nil)
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestHandlerMeVanishedUser(t *testing.T) {
	h, mock, sessions := newTestHandler(t)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id=\$1`).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	token, err := sessions.Issue(9)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/gatehouse/users/me", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	w := httptest.NewRecorder()
	sessions.Guard(http.HandlerFunc(h.Me)).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandlerUpdate(t *testing.T) {
	h, mock, sessions := newTestHandler(t)
	stored := entity.User{ID: 7, Name: "Ann", Email: "ann@example.com", NationalID: "12345678901",
		PasswordHash: mustHash(t, "oldpass1"), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id=\$1`).
		WithArgs(int64(7)).
		WillReturnRows(userRows(stored))
	mock.ExpectQuery(`UPDATE users`).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	token, err := sessions.Issue(7)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	body := `{"name":"Bobby","password":"newpass12"}`
	req := httptest.NewRequest(http.MethodPatch, "/gatehouse/users/me", strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	w := httptest.NewRecorder()
	sessions.Guard(http.HandlerFunc(h.Update)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got["name"] != "Bobby" {
		t.Fatalf("name = %v, want Bobby", got["name"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHandlerUpdateValidation(t *testing.T) {
	h, _, sessions := newTestHandler(t)

	token, err := sessions.Issue(7)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	body := `{"national_id":"123"}`
	req := httptest.NewRequest(http.MethodPatch, "/gatehouse/users/me", strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	w := httptest.NewRecorder()
	sessions.Guard(http.HandlerFunc(h.Update)).ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	var got struct {
		Fields []FieldError `json:"fields"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got.Fields) != 1 || got.Fields[0].Field != "national_id" {
		t.Fatalf("unexpected fields: %+v", got.Fields)
	}
}
