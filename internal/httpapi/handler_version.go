package httpapi

import (
	"net/http"
)

// Version is overridden at build time with -ldflags "-X ...httpapi.Version=...".
var Version = "1.0.0"

func VersionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"name":    "feedbackd",
			"version": Version,
		})
	}
}
