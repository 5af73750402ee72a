package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	. "github.com/GanpatGang/GanpatStudy/apps/api/echo"
	"github.com/GanpatGang/GanpatStudy/core"
	"github.com/GanpatGang/GanpatStudy/core/material"
	"github.com/GanpatGang/GanpatStudy/core/preview"
	"github.com/GanpatGang/GanpatStudy/core/user"
	emailsvc "github.com/GanpatGang/GanpatStudy/services/email"
	"github.com/GanpatGang/GanpatStudy/storage/database/inmem"
	"github.com/GanpatGang/GanpatStudy/storage/filestore"
)

var (
	conf       *core.Config
	validate   *validator.Validate
	translator ut.Translator

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

func TestMain(m *testing.M) {
	conf = core.NewConfig()
	conf.Debug = false
	conf.TestMode = true

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	validate = validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates()

	os.Exit(m.Run())
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// stubHost stands in for the remote viewer services.
type stubHost struct {
	uploadErr error
	uploadURL string
}

func (h *stubHost) GoogleEmbedURL(src string) string {
	return "https://docs.google.com/viewer?embedded=true&url=" + src
}

func (h *stubHost) OfficeEmbedURL(src string) string {
	return "https://view.officeapps.live.com/op/embed.aspx?src=" + src
}

func (h *stubHost) UploadPublic(_ context.Context, name string, _ []byte) (string, error) {
	if h.uploadErr != nil {
		return "", h.uploadErr
	}
	if h.uploadURL != "" {
		return h.uploadURL, nil
	}
	return "https://files.example.com/" + name, nil
}

type testDeps struct {
	app        Server
	usrRepo    user.Repository
	usrSvc     user.Service
	matSvc     *material.Service
	previewMgr *preview.Manager
	host       *stubHost
}

func setup(t *testing.T) *testDeps {
	t.Helper()

	usrRepo := inmemdb.NewUserRepository(inmemdb.NewDB())
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	logger := nopLogger{}
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, logger)
	matSvc := material.NewService(filestore.NewMemStore(), conf, logger)
	host := &stubHost{}
	previewMgr := preview.NewManager(conf, host, logger)

	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		MaterialSvc:    matSvc,
		PreviewMgr:     previewMgr,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	t.Cleanup(previewMgr.CloseAll)

	return &testDeps{
		app:        app,
		usrRepo:    usrRepo,
		usrSvc:     usrSvc,
		matSvc:     matSvc,
		previewMgr: previewMgr,
		host:       host,
	}
}

func createUser(t *testing.T, repo user.Repository, name, uname, email, pwd string, roles []string, isActive bool) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  &isActive,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("SetPassword(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decodeBody(): %v; body = %s", err, rec.Body.String())
	}
}
