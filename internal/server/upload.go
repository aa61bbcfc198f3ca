package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"github.com/yourusername/chatbubble/internal/protocol"
)

const maxUploadSize = 32 << 20

// allowedExtensions lists what /api/upload accepts
var allowedExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true,
	"pdf": true, "txt": true, "doc": true, "docx": true,
}

// sniffedExtensions are checked against the file's magic bytes; the rest have no reliable signature
var sniffedExtensions = map[string]string{
	"png": "png", "jpg": "jpg", "jpeg": "jpg", "gif": "gif", "pdf": "pdf",
}

// fileExtension returns the lower-cased extension without the dot, or "" if there is none
func fileExtension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == "." {
		return ""
	}
	return strings.ToLower(ext[1:])
}

func allowedFile(name string) bool {
	return allowedExtensions[fileExtension(name)]
}

// matchesContent reports whether the leading bytes agree with the claimed extension
func matchesContent(ext string, head []byte) bool {
	want, ok := sniffedExtensions[ext]
	if !ok {
		return true
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return false
	}
	return kind.Extension == want
}

// HandleUpload stores a multipart file under the upload directory
func (s *Server) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile(protocol.UploadField)
	if err != nil {
		// a part sent with filename="" is parsed as a plain value
		if r.MultipartForm != nil && len(r.MultipartForm.Value[protocol.UploadField]) > 0 {
			writeJSON(w, http.StatusBadRequest, protocol.ChatResponse{Response: "No file selected for uploading"})
			return
		}
		writeJSON(w, http.StatusBadRequest, protocol.ChatResponse{Response: "No file part in the request"})
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if header.Filename == "" || filename == "." || filename == string(filepath.Separator) {
		writeJSON(w, http.StatusBadRequest, protocol.ChatResponse{Response: "No file selected for uploading"})
		return
	}

	if !allowedFile(filename) {
		writeJSON(w, http.StatusBadRequest, protocol.ChatResponse{Response: "File type not allowed"})
		return
	}

	head := make([]byte, 261) // filetype needs at most 261 bytes
	n, _ := io.ReadFull(file, head)
	if !matchesContent(fileExtension(filename), head[:n]) {
		writeJSON(w, http.StatusBadRequest, protocol.ChatResponse{Response: "File type not allowed"})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		s.logger.Error("rewind upload", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, protocol.ChatResponse{Response: "Could not read the uploaded file"})
		return
	}

	if err := s.saveUpload(filename, file); err != nil {
		s.logger.Error("save upload", zap.String("file", filename), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, protocol.ChatResponse{Response: "Could not save the uploaded file"})
		return
	}

	s.logger.Info("file uploaded", zap.String("file", filename))
	writeJSON(w, http.StatusOK, protocol.ChatResponse{Response: fmt.Sprintf("File %s uploaded successfully!", filename)})
}

func (s *Server) saveUpload(filename string, src io.Reader) error {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.uploadDir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.uploadDir, filename))
}
