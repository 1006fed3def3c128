package store

import (
	"encoding/base64"
	"net/http"
	"sync"
	"time"
)

// MaxCookieBytes is the per-cookie size browsers reliably accept.
const MaxCookieBytes = 4096

// CookieStorage is a Storage over one HTTP exchange: reads come from the
// request cookies, writes are buffered and emitted by Flush as Set-Cookie.
// Values are base64url encoded so JSON survives cookie syntax.
type CookieStorage struct {
	req     *http.Request
	maxAge  time.Duration
	secure  bool
	mu      sync.Mutex
	pending map[string]*string // nil value means removed
}

func NewCookieStorage(r *http.Request, maxAge time.Duration, secure bool) *CookieStorage {
	return &CookieStorage{
		req:     r,
		maxAge:  maxAge,
		secure:  secure,
		pending: make(map[string]*string),
	}
}

func (c *CookieStorage) GetItem(key string) (string, bool, error) {
	c.mu.Lock()
	v, touched := c.pending[key]
	c.mu.Unlock()
	if touched {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}

	cookie, err := c.req.Cookie(key)
	if err != nil {
		return "", false, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		// Unreadable values look like absent ones to the store.
		return "", false, nil
	}
	return string(raw), true, nil
}

func (c *CookieStorage) SetItem(key, value string) error {
	if len(key)+base64.RawURLEncoding.EncodedLen(len(value)) > MaxCookieBytes {
		return ErrQuotaExceeded
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[key] = &value
	return nil
}

func (c *CookieStorage) RemoveItem(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[key] = nil
	return nil
}

// Flush writes a Set-Cookie header for every key changed since construction.
// It must run before the response status is written.
func (c *CookieStorage) Flush(w http.ResponseWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, v := range c.pending {
		cookie := &http.Cookie{
			Name:     key,
			Path:     "/",
			Secure:   c.secure,
			HttpOnly: false,
			SameSite: http.SameSiteLaxMode,
		}
		if v == nil {
			cookie.MaxAge = -1
		} else {
			cookie.Value = base64.RawURLEncoding.EncodeToString([]byte(*v))
			cookie.MaxAge = int(c.maxAge.Seconds())
		}
		http.SetCookie(w, cookie)
	}
	clear(c.pending)
}
