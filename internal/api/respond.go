package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/model"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

const kindRateLimited model.ErrorKind = "rate_limited"

type errorBody struct {
	Kind    model.ErrorKind    `json:"kind"`
	Message string             `json:"message"`
	Fields  []model.FieldError `json:"fields,omitempty"`
	JobID   string             `json:"jobId,omitempty"`
}

var statusByKind = map[model.ErrorKind]int{
	model.KindValidation:          http.StatusBadRequest,
	model.KindNotFound:            http.StatusNotFound,
	model.KindInvalidTransition:   http.StatusConflict,
	model.KindConflict:            http.StatusConflict,
	model.KindRecalculationFailed: http.StatusUnprocessableEntity,
	model.KindDivisionByZero:      http.StatusUnprocessableEntity,
	model.KindInternal:            http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeErrorBody(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, map[string]errorBody{"error": body})
}

// writeError maps err to its kind and status. Internal errors are logged
// and their message is not exposed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	body := errorBody{Kind: kind, Message: err.Error()}

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		body.Message = "validation failed"
		body.Fields = verr.Fields
	}
	var rerr *model.RecalculationError
	if errors.As(err, &rerr) {
		body.JobID = rerr.JobID
	}
	if kind == model.KindInternal {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		body.Message = "internal error"
	}
	writeErrorBody(w, statusByKind[kind], body)
}

// decode reads a JSON body into v. An empty body leaves v unchanged; a
// malformed one is a validation error on the "body" field.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		verr := &model.ValidationError{}
		verr.Add("body", "invalid JSON: "+err.Error())
		return verr
	}
	return nil
}

// intParam parses an optional integer query parameter within [min, max].
func intParam(r *http.Request, name string, def, minV, maxV int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < minV || n > maxV {
		verr := &model.ValidationError{}
		verr.Add(name, "must be an integer between "+strconv.Itoa(minV)+" and "+strconv.Itoa(maxV))
		return 0, verr
	}
	return n, nil
}
