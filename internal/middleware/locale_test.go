package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLocaleNegotiation(t *testing.T) {
	tests := []struct {
		name           string
		xLocale        string
		acceptLanguage string
		want           string
	}{
		{"explicit header wins", "es", "en-US,en;q=0.9", "es"},
		{"accept language fallback", "", "pt-BR,pt;q=0.9", "pt"},
		{"unsupported falls back to default", "", "de-DE", "en"},
		{"no headers", "", "", "en"},
		{"regional variant maps to base", "", "es-CL", "es"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := Locale("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = LocaleFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/pricing", nil)
			if tc.xLocale != "" {
				req.Header.Set("X-Locale", tc.xLocale)
			}
			if tc.acceptLanguage != "" {
				req.Header.Set("Accept-Language", tc.acceptLanguage)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tc.want {
				t.Fatalf("negotiated locale = %q, want %q", got, tc.want)
			}
		})
	}
}
