package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

// LocaleKey is the context key for the negotiated UI locale.
var LocaleKey = localeContextKey{}

var supportedLocales = language.NewMatcher([]language.Tag{
	language.English, // first tag is the fallback
	language.Spanish,
	language.Portuguese,
})

// Locale negotiates the UI language for marketing and pricing copy. An
// explicit X-Locale header wins over Accept-Language.
func Locale(defaultLocale string) func(http.Handler) http.Handler {
	fallback := language.Make(defaultLocale)
	if fallback.IsRoot() {
		fallback = language.English
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag, _ := language.MatchStrings(supportedLocales, r.Header.Get("X-Locale"), r.Header.Get("Accept-Language"))
			if tag.IsRoot() {
				tag = fallback
			}
			base, _ := tag.Base()
			ctx := context.WithValue(r.Context(), LocaleKey, base.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocaleFromContext returns the negotiated locale, defaulting to English.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok && v != "" {
		return v
	}
	return "en"
}
