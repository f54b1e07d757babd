package requester

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"strings"
)

// Body encodes a request payload. Size is -1 when the length is unknown
// until the body has been streamed.
type Body interface {
	encode() (r io.Reader, contentType string, size int64, err error)
}

type jsonBody struct{ v any }

// JSONBody sends v as application/json
func JSONBody(v any) Body { return jsonBody{v: v} }

func (b jsonBody) encode() (io.Reader, string, int64, error) {
	data, err := json.Marshal(b.v)
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return bytes.NewReader(data), "application/json", int64(len(data)), nil
}

type formBody struct{ values url.Values }

// FormBody sends values as application/x-www-form-urlencoded
func FormBody(values url.Values) Body { return formBody{values: values} }

func (b formBody) encode() (io.Reader, string, int64, error) {
	encoded := b.values.Encode()
	return strings.NewReader(encoded), "application/x-www-form-urlencoded", int64(len(encoded)), nil
}

// FilePart is the file section of a multipart body
type FilePart struct {
	Field  string
	Name   string
	Size   int64
	Reader io.Reader
}

// Field is a plain multipart form field
type Field struct {
	Name  string
	Value string
}

// MultipartBody streams a multipart/form-data payload. Progress, when set,
// receives monotonically increasing percentages below 100 as the file is
// consumed by the transport; completion is reported by the caller once the
// server has answered.
type MultipartBody struct {
	Fields   []Field
	File     *FilePart
	Progress func(percent int)
}

func (b *MultipartBody) encode() (io.Reader, string, int64, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(b.write(writer))
	}()

	return pr, writer.FormDataContentType(), -1, nil
}

func (b *MultipartBody) write(writer *multipart.Writer) error {
	if b.File != nil {
		part, err := writer.CreateFormFile(b.File.Field, b.File.Name)
		if err != nil {
			return fmt.Errorf("failed to create form file: %w", err)
		}
		var src io.Reader = b.File.Reader
		if b.Progress != nil && b.File.Size > 0 {
			src = &progressReader{r: src, total: b.File.Size, report: b.Progress}
		}
		if _, err := io.Copy(part, src); err != nil {
			return fmt.Errorf("failed to copy file: %w", err)
		}
	}

	for _, field := range b.Fields {
		if err := writer.WriteField(field.Name, field.Value); err != nil {
			return fmt.Errorf("failed to write form field: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return nil
}

// progressReader reports read progress capped at 99 and only when it grows.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(int)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		percent := int(p.read * 100 / p.total)
		if percent > 99 {
			percent = 99
		}
		if percent > p.last {
			p.last = percent
			p.report(percent)
		}
	}
	return n, err
}
