// Package middleware содержит HTTP middleware маркетплейса.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type contextKey string

const authorityKey contextKey = "authority"

const (
	authCookieName = "auth_token"
	authCookieTTL  = 30 * 24 * time.Hour
)

// AuthMiddleware проверяет подписанный cookie и определяет учётную запись вызывающего.
type AuthMiddleware struct {
	secretKey []byte
	now       func() time.Time
}

// NewAuthMiddleware создаёт AuthMiddleware. Пустой secret заменяется случайным ключом,
// поэтому выданные cookie перестают действовать после перезапуска.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}

	return &AuthMiddleware{
		secretKey: key,
		now:       time.Now,
	}
}

// Middleware отклоняет запрос без действительного cookie и кладёт authority в контекст.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		authority, ok := a.parse(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAuthority(r.Context(), authority)))
	})
}

// SetAuthCookie выдаёт cookie для учётной записи authority.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, authority int64) {
	expires := a.now().Add(authCookieTTL)

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    a.token(authority, expires),
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// token имеет вид "<authority>.<unix expires>.<hex hmac>".
func (a *AuthMiddleware) token(authority int64, expires time.Time) string {
	payload := strconv.FormatInt(authority, 10) + "." + strconv.FormatInt(expires.Unix(), 10)
	return payload + "." + a.sign(payload)
}

func (a *AuthMiddleware) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parse(value string) (int64, bool) {
	i := strings.LastIndexByte(value, '.')
	if i < 0 {
		return 0, false
	}
	payload, signature := value[:i], value[i+1:]

	if !hmac.Equal([]byte(signature), []byte(a.sign(payload))) {
		return 0, false
	}

	idStr, expStr, ok := strings.Cut(payload, ".")
	if !ok {
		return 0, false
	}

	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil || !a.now().Before(time.Unix(exp, 0)) {
		return 0, false
	}

	authority, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || authority <= 0 {
		return 0, false
	}

	return authority, true
}

// WithAuthority возвращает контекст с идентификатором учётной записи вызывающего.
func WithAuthority(ctx context.Context, authority int64) context.Context {
	return context.WithValue(ctx, authorityKey, authority)
}

// AuthorityFromContext извлекает идентификатор учётной записи из контекста запроса.
func AuthorityFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(authorityKey).(int64)
	return id, ok
}
