package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kitchen360/catalog/pkg/core"
)

// Client talks to a running catalog server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the server address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ViewerURL returns the WebSocket address of the viewer endpoint, opening viewID.
func (c *Client) ViewerURL(viewID string) string {
	u := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"
	if viewID != "" {
		u += "?view=" + url.QueryEscape(viewID)
	}
	return u
}

// Healthcheck checks if the server is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(method, path string, body any, want int, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, want, out)
}

func (c *Client) send(req *http.Request, want int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s returned status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ListRooms returns every room.
func (c *Client) ListRooms() ([]core.Room, error) {
	var rooms []core.Room
	err := c.do(http.MethodGet, "/api/rooms", nil, http.StatusOK, &rooms)
	return rooms, err
}

// GetRoom returns a room with its views.
func (c *Client) GetRoom(id string) (core.Room, error) {
	var room core.Room
	err := c.do(http.MethodGet, "/api/rooms/"+url.PathEscape(id), nil, http.StatusOK, &room)
	return room, err
}

// ListAreas returns the storage areas of a view, or all of them for an empty viewID.
func (c *Client) ListAreas(viewID string) ([]core.StorageArea, error) {
	path := "/api/areas"
	if viewID != "" {
		path = "/api/views/" + url.PathEscape(viewID) + "/areas"
	}
	var areas []core.StorageArea
	err := c.do(http.MethodGet, path, nil, http.StatusOK, &areas)
	return areas, err
}

// CreateArea adds a storage area to a view.
func (c *Client) CreateArea(viewID string, area core.StorageArea) (core.StorageArea, error) {
	body := areaRequest{
		Name:        area.Name,
		Type:        string(area.Type),
		Description: area.Description,
		Position:    area.Position,
		ImageURL:    area.ImageURL,
	}
	var created core.StorageArea
	err := c.do(http.MethodPost, "/api/views/"+url.PathEscape(viewID)+"/areas", body, http.StatusCreated, &created)
	return created, err
}

// DeleteArea removes a storage area.
func (c *Client) DeleteArea(id string) error {
	return c.do(http.MethodDelete, "/api/areas/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

// UploadImage sends an image file and returns the URL it is served under.
func (c *Client) UploadImage(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// Create multipart form
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// Write the file in goroutine
	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			errCh <- fmt.Errorf("failed to create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			errCh <- fmt.Errorf("failed to copy file: %w", err)
			return
		}
		errCh <- nil
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/images", pr)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out struct {
		URL string `json:"url"`
	}
	sendErr := c.send(req, http.StatusCreated, &out)

	// Check goroutine error
	if writeErr := <-errCh; writeErr != nil {
		return "", writeErr
	}
	if sendErr != nil {
		return "", sendErr
	}
	return out.URL, nil
}
