package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

// LastLocationCookie is the single key the last resolved location lives under.
const LastLocationCookie = "last_location"

const cookieMaxAge = 30 * 24 * time.Hour

// cookieStore is a domain.LocationStore over one request/response pair. The value is
// URL-escaped JSON; a legacy plain-text value is read as a display string only.
type cookieStore struct {
	r *http.Request
	w http.ResponseWriter
}

func (s cookieStore) Load(context.Context) (domain.SavedLocation, bool, error) {
	c, err := s.r.Cookie(LastLocationCookie)
	if err != nil {
		return domain.SavedLocation{}, false, nil
	}
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		raw = c.Value
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.SavedLocation{}, false, nil
	}

	if strings.HasPrefix(raw, "{") {
		var loc domain.SavedLocation
		if err := json.Unmarshal([]byte(raw), &loc); err != nil {
			return domain.SavedLocation{}, false, err
		}
		return loc, true, nil
	}
	return domain.SavedLocation{Display: raw}, true, nil
}

func (s cookieStore) Save(_ context.Context, loc domain.SavedLocation) error {
	b, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	http.SetCookie(s.w, &http.Cookie{
		Name:     LastLocationCookie,
		Value:    url.QueryEscape(string(b)),
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
