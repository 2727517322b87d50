package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		acceptLanguage string
		want           string
	}{
		{"", "Credenciais inválidas"},
		{"pt-BR", "Credenciais inválidas"},
		{"en", "Invalid credentials"},
		{"en-GB,en;q=0.8", "Invalid credentials"},
		{"fr-FR, en;q=0.5", "Invalid credentials"},
		{"de", "Credenciais inválidas"},
		{";;;", "Credenciais inválidas"},
	}
	for _, tt := range tests {
		t.Run(tt.acceptLanguage, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.acceptLanguage != "" {
				c.Request.Header.Set("Accept-Language", tt.acceptLanguage)
			}
			if got := translate(c, msgInvalidCredentials); got != tt.want {
				t.Errorf("translate(%q) = %q, want %q", tt.acceptLanguage, got, tt.want)
			}
		})
	}
}

func TestMessagesComplete(t *testing.T) {
	for key := range messages["pt"] {
		if messages["en"][key] == "" {
			t.Errorf("missing English message for %q", key)
		}
	}
	for key := range messages["en"] {
		if messages["pt"][key] == "" {
			t.Errorf("missing Portuguese message for %q", key)
		}
	}
}
