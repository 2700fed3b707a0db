package validator

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type signup struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	Setup()
	os.Exit(m.Run())
}

func bind(t *testing.T, body, lang string) map[string]string {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if lang != "" {
		c.Request.Header.Set("Accept-Language", lang)
	}
	var dst signup
	return Bind(c, &dst)
}

func TestBind(t *testing.T) {
	if fields := bind(t, `{"email":"a@b.co","password":"secret1"}`, ""); fields != nil {
		t.Fatalf("valid body rejected: %v", fields)
	}

	en := bind(t, `{"email":"nope","password":"x"}`, "en-US,en;q=0.9")
	if en["email"] == "" || en["password"] == "" {
		t.Fatalf("missing field errors: %v", en)
	}
	if _, ok := en["Email"]; ok {
		t.Fatal("field names should use json tags")
	}

	id := bind(t, `{"email":"nope","password":"x"}`, "id-ID")
	if id["email"] == "" || id["email"] == en["email"] {
		t.Fatalf("indonesian message = %q, english = %q", id["email"], en["email"])
	}

	if fields := bind(t, `{"email":`, ""); fields["detail"] == "" {
		t.Fatalf("syntax error not reported: %v", fields)
	}
}
