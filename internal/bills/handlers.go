package bills

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/auto-bills/internal/extract"
	"github.com/zombor/auto-bills/internal/notify"
)

const maxUploadSize = int64(20 << 20)

type statusResponse struct {
	Channel   string       `json:"channel"`
	LastCycle *CycleReport `json:"last_cycle"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// handleHealth reports 503 once the messaging channel has failed
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.channel.State()
	code := http.StatusOK
	if state == notify.StateFailed {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"channel": state.String()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Channel:   s.channel.State().String(),
		LastCycle: s.service.LastCycle(),
	})
}

// handlePoll runs a cycle synchronously
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.RunCycle(r.Context())
	switch {
	case errors.Is(err, ErrCycleInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeJSON(w, http.StatusBadGateway, report)
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

// handleExtract runs the extraction engine on an uploaded document ("file")
// and/or a text body ("text") without notifying anyone.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	msg := extract.Message{Body: r.FormValue("text")}

	f, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case err != nil:
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "Error reading file")
		return
	default:
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			writeError(w, http.StatusBadRequest, "Error reading file")
			return
		}
		msg.Attachments = append(msg.Attachments, extract.Attachment{
			Filename:    header.Filename,
			ContentType: uploadContentType(header.Header.Get("Content-Type"), header.Filename),
			Data:        data,
		})
	}

	if strings.TrimSpace(msg.Body) == "" && len(msg.Attachments) == 0 {
		writeError(w, http.StatusBadRequest, "Provide a file or a text field")
		return
	}

	result, err := s.service.Extract(r.Context(), msg)
	if err != nil {
		slog.Error("Error extracting upload", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// uploadContentType falls back to the extension when the part carries no
// useful type.
func uploadContentType(declared, filename string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
