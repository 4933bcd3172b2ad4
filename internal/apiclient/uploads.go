package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

type uploadResponse struct {
	ImageURL string `json:"image_url"`
}

// UploadImage posts r as the multipart field "image" and returns the
// public URL the server stored it under.
func (c *Client) UploadImage(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", &Error{Op: "upload image", Message: "Image upload failed", Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", &Error{Op: "upload image", Message: "Image upload failed", Err: fmt.Errorf("read file: %w", err)}
	}
	if err := mw.Close(); err != nil {
		return "", &Error{Op: "upload image", Message: "Image upload failed", Err: err}
	}

	req := request{
		op:          "upload image",
		method:      http.MethodPost,
		path:        "/uploads/images",
		body:        &buf,
		contentType: mw.FormDataContentType(),
		authed:      true,
		fallback:    "Image upload failed",
	}
	var out uploadResponse
	if err := c.do(ctx, req, &out); err != nil {
		return "", err
	}
	if out.ImageURL == "" {
		return "", &Error{Op: "upload image", Status: http.StatusOK, Message: "Image upload failed: server returned no URL"}
	}
	return out.ImageURL, nil
}
