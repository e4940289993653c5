package vendure

import (
	"net/http"
	"strings"
	"time"
)

// Session carries the browser's Vendure cookies across the calls made while
// serving one inbound request. Cookies set by an earlier call are sent on the
// next one, and every Set-Cookie value is kept for relay to the browser.
// A Session is not safe for concurrent use.
type Session struct {
	raw        string
	changed    bool
	order      []string
	values     map[string]string
	setCookies []string
}

// NewSession starts a session from a raw Cookie header value. The header is
// sent as received until a Set-Cookie value changes one of its cookies.
// Browsers list the most specific path first, so when a name repeats the
// first occurrence is the one kept.
func NewSession(cookieHeader string) *Session {
	s := &Session{raw: strings.TrimSpace(cookieHeader), values: make(map[string]string)}
	for _, part := range strings.Split(cookieHeader, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		if _, seen := s.values[name]; seen {
			continue
		}
		s.order = append(s.order, name)
		s.values[name] = value
	}
	return s
}

// SessionFromRequest starts a session from the inbound request's Cookie header.
func SessionFromRequest(r *http.Request) *Session {
	if r == nil {
		return NewSession("")
	}
	return NewSession(strings.Join(r.Header.Values("Cookie"), "; "))
}

// CookieHeader renders the current cookies as a Cookie header value.
func (s *Session) CookieHeader() string {
	if s == nil {
		return ""
	}
	if !s.changed {
		return s.raw
	}
	if len(s.order) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.order))
	for _, name := range s.order {
		parts = append(parts, name+"="+s.values[name])
	}
	return strings.Join(parts, "; ")
}

// SetCookies returns every Set-Cookie value received so far, in arrival order.
func (s *Session) SetCookies() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.setCookies))
	copy(out, s.setCookies)
	return out
}

// Absorb applies Set-Cookie values from a Shop API response: later calls
// send the updated cookies and SetCookies returns them for relay.
func (s *Session) Absorb(setCookies []string) {
	if s == nil {
		return
	}
	now := time.Now()
	for _, raw := range setCookies {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		s.setCookies = append(s.setCookies, raw)

		cookie, err := http.ParseSetCookie(raw)
		if err != nil {
			continue
		}
		if cookie.MaxAge < 0 || (!cookie.Expires.IsZero() && cookie.Expires.Before(now)) {
			s.remove(cookie.Name)
			continue
		}
		s.set(cookie.Name, cookie.Value)
	}
}

func (s *Session) set(name, value string) {
	current, ok := s.values[name]
	if ok && current == value {
		return
	}
	if !ok {
		s.order = append(s.order, name)
	}
	s.values[name] = value
	s.changed = true
}

func (s *Session) remove(name string) {
	if _, ok := s.values[name]; !ok {
		return
	}
	delete(s.values, name)
	s.changed = true
	for i, existing := range s.order {
		if existing == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
