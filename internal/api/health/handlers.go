package health

import (
	"net/http"

	"github.com/codr1/ChargeEase/internal/api/apiutil"
)

const (
	rootMessage = "Server is healthy and running!"
	apiMessage  = "API is healthy and running!"
)

// GET /
func HandleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rootMessage))
}

// GET {API_PREFIX}/
func HandleAPI(w http.ResponseWriter, r *http.Request) error {
	return apiutil.SuccessMessage(w, http.StatusOK, nil, apiMessage)
}
