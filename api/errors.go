package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dan13ram/yusd-settlement/intake"
	"github.com/dan13ram/yusd-settlement/ledger"
	"github.com/dan13ram/yusd-settlement/settlement"
	log "github.com/sirupsen/logrus"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

// StatusOf maps an operation error to the HTTP status reported for it.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, settlement.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest), errors.Is(err, intake.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientBalance), errors.Is(err, ledger.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	}

	switch settlement.ClassOf(err) {
	case settlement.ClassValidation:
		return http.StatusBadRequest
	case settlement.ClassAuthentication:
		return http.StatusUnauthorized
	case settlement.ClassAuthorization:
		return http.StatusForbidden
	case settlement.ClassEconomic:
		return http.StatusUnprocessableEntity
	case settlement.ClassStateMachine:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("[API] Error writing response: ", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	response := errorResponse{Error: err.Error()}
	if status == http.StatusInternalServerError {
		response.Error = http.StatusText(status)
	} else if class := settlement.ClassOf(err); class != settlement.ClassInternal {
		response.Class = class.String()
	}
	writeJSON(w, status, response)
}

// fail reports err from an operation.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		log.Error("[API] ", r.Method, " ", r.URL.Path, " failed: ", err)
	} else {
		log.Debug("[API] ", r.Method, " ", r.URL.Path, " rejected: ", err)
	}
	writeError(w, status, err)
}
