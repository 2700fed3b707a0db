package i18n

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func initEnglish(t *testing.T) {
	t.Helper()
	if err := Init("en", zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
}

func catalog(t *testing.T, name string) map[string]string {
	t.Helper()
	data, err := localeFS.ReadFile("locales/" + name)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return m
}

func TestCataloguesHaveSameKeys(t *testing.T) {
	en, id := catalog(t, "en.json"), catalog(t, "id.json")
	for k := range en {
		if _, ok := id[k]; !ok {
			t.Errorf("id.json is missing %s", k)
		}
	}
	for k := range id {
		if _, ok := en[k]; !ok {
			t.Errorf("en.json is missing %s", k)
		}
	}
}

func TestInitRejectsBadLanguage(t *testing.T) {
	if err := Init("not a tag!", zerolog.Nop()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTranslate(t *testing.T) {
	initEnglish(t)
	en := catalog(t, "en.json")
	id := catalog(t, "id.json")

	tests := []struct {
		name  string
		langs []string
		want  string
	}{
		{"default language", nil, en["NOT_FOUND"]},
		{"indonesian", []string{"id"}, id["NOT_FOUND"]},
		{"accept-language header", []string{"id-ID,id;q=0.9,en;q=0.8"}, id["NOT_FOUND"]},
		{"unsupported falls back", []string{"fr"}, en["NOT_FOUND"]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.langs != nil {
				ctx = WithLocalizer(ctx, NewLocalizer(tt.langs...))
			}
			if got := T(ctx, "NOT_FOUND"); got != tt.want {
				t.Fatalf("T = %q, want %q", got, tt.want)
			}
		})
	}

	if got := T(context.Background(), "NO_SUCH_MESSAGE"); got != "NO_SUCH_MESSAGE" {
		t.Fatalf("missing id = %q", got)
	}
	if len(Languages()) < 2 {
		t.Fatalf("languages = %v", Languages())
	}
}

func TestMiddlewarePrefersQuery(t *testing.T) {
	initEnglish(t)
	gin.SetMode(gin.TestMode)
	id := catalog(t, "id.json")

	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, T(c.Request.Context(), "NOT_FOUND"))
	})

	req := httptest.NewRequest(http.MethodGet, "/?lang=id", nil)
	req.Header.Set("Accept-Language", "en")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != id["NOT_FOUND"] {
		t.Fatalf("body = %q", w.Body.String())
	}
}
