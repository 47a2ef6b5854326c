package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// respondWithError writes a JSON error body. userMsg goes to the client,
// logMsg plus err to the log; with logMsg empty the user message is
// logged instead.
func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Printf("%s: %v", logMsg, err)
	}
	respondWithJSON(w, status, map[string]string{"error": userMsg})
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
