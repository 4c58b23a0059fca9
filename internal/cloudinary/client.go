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

	"github.com/pkg/errors"
)

const defaultAPIBase = "https://api.cloudinary.com/v1_1"

// Client uploads profile pictures through the Cloudinary REST API.
type Client struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	APIBase   string
	HTTP      *http.Client
	Now       func() time.Time
}

// New creates a Cloudinary client.
func New(cloudName, apiKey, apiSecret, folder string) *Client {
	return &Client{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		APIBase:   defaultAPIBase,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		Now:       time.Now,
	}
}

// UploadResult holds the response from Cloudinary after a successful upload.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int    `json:"bytes"`
}

// UploadProfilePicture uploads raw image bytes into the user's folder.
func (c *Client) UploadProfilePicture(ctx context.Context, userID string, data []byte, filename string) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, errors.New("cloudinary: empty image")
	}
	return c.upload(ctx, userID, func(w *multipart.Writer) error {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, bytes.NewReader(data))
		return err
	})
}

// UploadProfilePictureBase64 uploads a data URL ("data:image/jpeg;base64,...") or raw base64.
func (c *Client) UploadProfilePictureBase64(ctx context.Context, userID, data string) (*UploadResult, error) {
	if strings.TrimSpace(data) == "" {
		return nil, errors.New("cloudinary: empty image")
	}
	return c.upload(ctx, userID, func(w *multipart.Writer) error {
		return w.WriteField("file", data)
	})
}

func (c *Client) upload(ctx context.Context, userID string, writeFile func(*multipart.Writer) error) (*UploadResult, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(c.Now().Unix(), 10),
		"api_key":   c.APIKey,
	}
	if folder := c.folderFor(userID); folder != "" {
		params["folder"] = folder
	}
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_ = w.WriteField(k, params[k])
	}
	if err := writeFile(w); err != nil {
		return nil, errors.Wrap(err, "cloudinary: write file")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "cloudinary: close form")
	}

	url := fmt.Sprintf("%s/%s/image/upload", strings.TrimRight(c.APIBase, "/"), c.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, errors.Wrap(err, "cloudinary: create request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "cloudinary: request")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, errors.Errorf("cloudinary: upload failed (%d): %s", resp.StatusCode, string(body))
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.Wrap(err, "cloudinary: decode response")
	}
	return &result, nil
}

func (c *Client) folderFor(userID string) string {
	switch {
	case c.Folder == "":
		return userID
	case userID == "":
		return c.Folder
	}
	return c.Folder + "/" + userID
}

// sign computes the API signature. api_key, file and resource_type are not signed.
func (c *Client) sign(params map[string]string) string {
	excluded := map[string]bool{"api_key": true, "file": true, "resource_type": true, "signature": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excluded[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.APISecret))
	return hex.EncodeToString(sum[:])
}
