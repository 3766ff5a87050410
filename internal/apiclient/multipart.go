package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

type formField struct {
	name  string
	value string
}

type formFile struct {
	field string
	path  string // ローカルファイルパス
}

// multipartRequest はmultipart/form-dataのPOSTリクエストを組み立てる。
// ファイルはすべて読み込んでからボディを確定する。
func multipartRequest(path, endpoint string, fields []formField, files []formFile) (*request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", f.name, err)
		}
	}

	for _, f := range files {
		if err := writeFile(w, f); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	return &request{
		method:      http.MethodPost,
		path:        path,
		endpoint:    endpoint,
		body:        &buf,
		contentType: w.FormDataContentType(),
	}, nil
}

func writeFile(w *multipart.Writer, f formFile) error {
	src, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("failed to open attachment: %w", err)
	}
	defer src.Close()

	part, err := w.CreateFormFile(f.field, filepath.Base(f.path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("failed to copy attachment: %w", err)
	}
	return nil
}
