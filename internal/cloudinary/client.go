package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.cloudinary.com/v1_1"

// unsigned lists form fields Cloudinary leaves out of the signature.
var unsigned = map[string]bool{"api_key": true, "file": true, "resource_type": true}

// Client uploads student photos to Cloudinary using signed REST uploads.
type Client struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	BaseURL   string
	HTTP      *http.Client

	now func() time.Time
}

func New(cloudName, apiKey, apiSecret, folder string) *Client {
	return &Client{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		BaseURL:   defaultBaseURL,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

// UploadResult is the subset of the upload response the service keeps.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int    `json:"bytes"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// UploadBytes sends a file part. An empty publicID lets Cloudinary name the asset.
func (c *Client) UploadBytes(ctx context.Context, data []byte, filename, publicID string) (*UploadResult, error) {
	return c.upload(ctx, publicID, func(w *multipart.Writer) error {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return err
		}
		_, err = part.Write(data)
		return err
	})
}

// UploadBase64 accepts a data URL ("data:image/jpeg;base64,...") or bare base64.
func (c *Client) UploadBase64(ctx context.Context, data, publicID string) (*UploadResult, error) {
	return c.upload(ctx, publicID, func(w *multipart.Writer) error {
		return w.WriteField("file", data)
	})
}

// fields returns the signed form fields for one upload.
func (c *Client) fields(publicID string) map[string]string {
	f := map[string]string{
		"api_key":   c.APIKey,
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
		"folder":    c.Folder,
	}
	if publicID != "" {
		f["public_id"] = publicID
		f["overwrite"] = "true"
	}
	f["signature"] = c.sign(f)
	return f
}

func (c *Client) upload(ctx context.Context, publicID string, attach func(*multipart.Writer) error) (*UploadResult, error) {
	fields := c.fields(publicID)
	names := make([]string, 0, len(fields))
	for name, v := range fields {
		if v != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)
	for _, name := range names {
		if err := form.WriteField(name, fields[name]); err != nil {
			return nil, fmt.Errorf("cloudinary: write %s: %w", name, err)
		}
	}
	if err := attach(form); err != nil {
		return nil, fmt.Errorf("cloudinary: attach file: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("cloudinary: close form: %w", err)
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/" + c.CloudName + "/image/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: post upload: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("cloudinary: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		reason := strings.TrimSpace(string(raw))
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
			reason = ae.Error.Message
		}
		return nil, fmt.Errorf("cloudinary: upload failed (%d): %s", resp.StatusCode, reason)
	}

	out := new(UploadResult)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("cloudinary: decode response: %w", err)
	}
	return out, nil
}

// sign hashes the sorted name=value pairs followed by the API secret.
func (c *Client) sign(params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if unsigned[k] || v == "" {
			continue
		}
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.APISecret))
	return hex.EncodeToString(sum[:])
}
