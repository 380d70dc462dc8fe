package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TestContext carries one scenario's HTTP state against a running server.
type TestContext struct {
	BaseURL string
	client  *http.Client

	lastStatus  int
	lastHeaders http.Header
	lastBody    []byte

	email      string
	accessCode string
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Reset clears per-scenario state and mints a fresh address so scenarios
// never collide on the one-registration-per-email rule.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastHeaders = nil
	tc.lastBody = nil
	tc.accessCode = ""
	tc.email = fmt.Sprintf("e2e-%d@example.com", time.Now().UnixNano())
}

func (tc *TestContext) POST(path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, bytes.NewReader(payload), map[string]string{
		"Content-Type": "application/json",
	})
}

func (tc *TestContext) POSTRaw(path, body string) error {
	return tc.do(http.MethodPost, path, strings.NewReader(body), map[string]string{
		"Content-Type": "text/plain;charset=UTF-8",
	})
}

func (tc *TestContext) GET(path string, query map[string]string) error {
	if len(query) > 0 {
		values := url.Values{}
		for k, v := range query {
			values.Set(k, v)
		}
		path += "?" + values.Encode()
	}
	return tc.do(http.MethodGet, path, nil, nil)
}

func (tc *TestContext) Request(method, path string) error {
	return tc.do(method, path, nil, nil)
}

func (tc *TestContext) do(method, path string, body io.Reader, headers map[string]string) error {
	req, err := http.NewRequest(method, tc.BaseURL+path, body)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	return nil
}

func (tc *TestContext) GetLastStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) GetLastBody() []byte {
	return tc.lastBody
}

func (tc *TestContext) GetResponseHeader(name string) string {
	return tc.lastHeaders.Get(name)
}

func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(tc.lastBody, &payload); err != nil {
		return nil, fmt.Errorf("decode response %q: %w", tc.lastBody, err)
	}
	value, ok := payload[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response %s", field, tc.lastBody)
	}
	return value, nil
}

func (tc *TestContext) GetEmail() string {
	return tc.email
}

func (tc *TestContext) GetAccessCode() string {
	return tc.accessCode
}

func (tc *TestContext) SetAccessCode(code string) {
	tc.accessCode = code
}
