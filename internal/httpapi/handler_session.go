package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"feedback-app/internal/session"
	"feedback-app/internal/views"
)

const (
	lastVisitCookie = "lastVisit"
	cookieMaxAge    = 24 * time.Hour

	defaultUsername = "Ashish"
	defaultUserID   = "12345"
)

// SessionDemo serves the cookie and session pages. They never touch the
// database.
type SessionDemo struct {
	Sessions *session.Manager
	Log      *zap.Logger
	Now      func() time.Time
}

type firstPage struct {
	Method  string
	URI     string
	Cookies []*http.Cookie
}

type firstPostPage struct {
	Username string
	Message  string
}

type sessionPage struct {
	Cookies map[string]string
	Session map[string]string
}

func (d *SessionDemo) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// FirstGet records the visit time in a cookie and echoes the request line
// and the cookies the client sent.
func (d *SessionDemo) FirstGet(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   lastVisitCookie,
		Value:  strconv.FormatInt(d.now().Unix(), 10),
		Path:   "/",
		MaxAge: int(cookieMaxAge / time.Second),
	})
	render(w, d.Log, http.StatusOK, views.First, firstPage{
		Method:  r.Method,
		URI:     r.URL.RequestURI(),
		Cookies: r.Cookies(),
	})
}

func (d *SessionDemo) FirstPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	render(w, d.Log, http.StatusOK, views.FirstPost, firstPostPage{
		Username: r.PostForm.Get("username"),
		Message:  r.PostForm.Get("message"),
	})
}

// FirstRequest sets the username and userId cookies and stores the same
// pair in the session. Query parameters override the demo values.
func (d *SessionDemo) FirstRequest(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		username = defaultUsername
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = defaultUserID
	}

	for name, value := range map[string]string{"username": username, "userId": userID} {
		http.SetCookie(w, &http.Cookie{
			Name:   name,
			Value:  value,
			Path:   "/",
			MaxAge: int(cookieMaxAge / time.Second),
		})
	}

	attrs := map[string]string{"username": username, "userId": userID}
	if err := d.Sessions.Save(w, attrs); err != nil {
		d.Log.Error("save session", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	render(w, d.Log, http.StatusOK, views.Session, sessionPage{
		Cookies: attrs,
		Session: attrs,
	})
}

// SecondRequest reads back the cookies and session set by FirstRequest.
func (d *SessionDemo) SecondRequest(w http.ResponseWriter, r *http.Request) {
	cookies := map[string]string{}
	for _, c := range r.Cookies() {
		if c.Name == session.CookieName {
			continue
		}
		cookies[c.Name] = c.Value
	}

	// A read counts as activity, so the session cookie is reissued.
	attrs, err := d.Sessions.Get(r)
	if err != nil {
		d.Log.Debug("no session", zap.Error(err))
		attrs = nil
	} else if err := d.Sessions.Save(w, attrs); err != nil {
		d.Log.Error("refresh session", zap.Error(err))
	}

	d.Log.Info("session demo read",
		zap.Any("cookies", cookies),
		zap.Any("session", attrs))

	render(w, d.Log, http.StatusOK, views.Session, sessionPage{
		Cookies: cookies,
		Session: attrs,
	})
}
