package health

import (
	"encoding/json"
	"net/http"
)

// Checker reports whether the service can answer requests.
type Checker interface {
	Ready() bool
}

// Handler reports "ok" once the checker is ready and "loading" with a 503
// before that.
func Handler(checker Checker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := "ok"
		if checker != nil && !checker.Ready() {
			status = "loading"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
}
