package server

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/snake-soft/pg-search/pkg/types"
)

const sessionCookieName = "psearch-session"

// SessionManager turns the session cookie into a Viewer. An absent or
// invalid token yields the anonymous viewer, search works without a
// session.
type SessionManager struct {
	Secret []byte
	TTL    time.Duration
}

func NewSessionManager(secret string) *SessionManager {
	return &SessionManager{Secret: []byte(secret), TTL: 24 * time.Hour}
}

func (s *SessionManager) CreateToken(v *types.Viewer) (string, error) {
	claims := jwt.MapClaims{
		"uid":        v.Id,
		"hide_price": v.HidePrice,
		"exp":        time.Now().Add(s.TTL).Unix(),
	}
	if v.Partner != nil {
		claims["partner_id"] = v.Partner.Id
		claims["partner_name"] = v.Partner.Name
		claims["wishlist_link"] = v.Partner.WishlistAsLink
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.Secret)
}

func (s *SessionManager) SetCookie(w http.ResponseWriter, v *types.Viewer) error {
	token, err := s.CreateToken(v)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.TTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

func (s *SessionManager) ViewerFromRequest(r *http.Request) *types.Viewer {
	anonymous := &types.Viewer{}
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return anonymous
	}
	token, err := jwt.Parse(cookie.Value, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.Secret, nil
	})
	if err != nil || !token.Valid {
		return anonymous
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return anonymous
	}
	v := &types.Viewer{Authenticated: true}
	if uid, ok := claims["uid"].(float64); ok {
		v.Id = uint(uid)
	}
	if hide, ok := claims["hide_price"].(bool); ok {
		v.HidePrice = hide
	}
	if pid, ok := claims["partner_id"].(float64); ok {
		partner := &types.Partner{Id: uint(pid)}
		if name, ok := claims["partner_name"].(string); ok {
			partner.Name = name
		}
		if link, ok := claims["wishlist_link"].(bool); ok {
			partner.WishlistAsLink = link
		}
		v.Partner = partner
	}
	return v
}
