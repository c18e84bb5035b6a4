package authctx

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey struct{}

// WithToken кладёт bearer-токен вызывающего в контекст запроса.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, token)
}

// Token возвращает токен из контекста, либо пустую строку.
func Token(ctx context.Context) string {
	tok, _ := ctx.Value(ctxKey{}).(string)
	return tok
}

// Middleware снимает Authorization: Bearer с входящего запроса, чтобы
// исходящие вызовы к смежному сервису шли от имени того же вызывающего.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			r = r.WithContext(WithToken(r.Context(), tok))
		}
		next.ServeHTTP(w, r)
	})
}

// Decorate проставляет заголовок Authorization на исходящем запросе,
// если в контексте есть токен.
func Decorate(req *http.Request) {
	if tok := Token(req.Context()); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}
