package web

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/justestif/go-emotion-music/internal/detector"
	"github.com/justestif/go-emotion-music/internal/emotion"
	"github.com/justestif/go-emotion-music/internal/logging"
	"github.com/justestif/go-emotion-music/internal/playback"
	"github.com/justestif/go-emotion-music/internal/recommend"
	"github.com/justestif/go-emotion-music/internal/vision"
)

// Error codes returned in the "code" field.
const (
	CodeBadRequest        = "bad_request"
	CodeUnknownEmotion    = "unknown_emotion"
	CodeUnsupportedMedia  = "unsupported_media"
	CodeTooLarge          = "too_large"
	CodeNotInitialized    = "not_initialized"
	CodeBusy              = "detection_in_progress"
	CodeNoFace            = "no_face_detected"
	CodeDetectionFailed   = "detection_failed"
	CodeMissingCredential = "missing_credential"
	CodeTimeout           = "timeout"
	CodeAuthFailed        = "authorization_failed"
	CodeNotAuthorized     = "not_authorized"
	CodeSubscription      = "subscription_required"
	CodeSearchFailed      = "search_failed"
	CodePlaybackFailed    = "playback_failed"
	CodeEmptySelection    = "empty_selection"
	CodeInternal          = "internal"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorMappings = []struct {
	target error
	status int
	code   string
}{
	{emotion.ErrUnknownEmotion, http.StatusBadRequest, CodeUnknownEmotion},
	{vision.ErrUnsupportedFrame, http.StatusUnsupportedMediaType, CodeUnsupportedMedia},
	{detector.ErrNotInitialized, http.StatusServiceUnavailable, CodeNotInitialized},
	{detector.ErrDetectionInProgress, http.StatusConflict, CodeBusy},
	{detector.ErrNoFaceDetected, http.StatusUnprocessableEntity, CodeNoFace},
	{detector.ErrDetectionFailed, http.StatusInternalServerError, CodeDetectionFailed},
	{playback.ErrNotInitialized, http.StatusServiceUnavailable, CodeNotInitialized},
	{playback.ErrMissingCredential, http.StatusServiceUnavailable, CodeMissingCredential},
	{playback.ErrTimeout, http.StatusGatewayTimeout, CodeTimeout},
	{playback.ErrNotAuthorized, http.StatusUnauthorized, CodeNotAuthorized},
	{playback.ErrSubscriptionRequired, http.StatusPaymentRequired, CodeSubscription},
	{playback.ErrAuthorizationFailed, http.StatusBadGateway, CodeAuthFailed},
	{playback.ErrSearchFailed, http.StatusBadGateway, CodeSearchFailed},
	{playback.ErrPlaybackFailed, http.StatusBadGateway, CodePlaybackFailed},
	{playback.ErrEmptySelection, http.StatusNotFound, CodeEmptySelection},
	{recommend.ErrNoPlaylists, http.StatusNotFound, CodeEmptySelection},
}

// classify maps a domain error to an HTTP status and error code.
func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("Encoding response failed")
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeDomainError classifies err and writes it.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logging.Error().Err(err).Str("code", code).Msg("Request failed")
	}
	writeError(w, status, code, err.Error())
}
