package middleware

import (
	"net/http"

	"github.com/clinicrecords/securelink-server/internal/httputil"
)

type contextKey string

func writeMessage(w http.ResponseWriter, status int, message string) {
	httputil.WriteJSON(w, status, httputil.ErrorResponse{Message: message})
}
