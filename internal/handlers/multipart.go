package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// maxUploadBytes bounds an entire multipart request body.
const maxUploadBytes = 512 << 20

// stageUploadedFile copies the named multipart file to a temp file on local
// disk and returns its path. The caller owns the staged file; the media
// manager removes it after the remote upload attempt. Returns an empty path
// when the field is absent.
func stageUploadedFile(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return "", nil
		}
		return "", fmt.Errorf("read multipart field %s: %w", field, err)
	}
	defer file.Close()

	return stageFile(file, header.Filename)
}

func stageFile(src multipart.File, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	tmp, err := os.CreateTemp("", "clipstream-upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close staging file: %w", err)
	}

	return tmp.Name(), nil
}
