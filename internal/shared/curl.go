// Importing browser request headers from a "Copy as cURL" command.
package shared

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"|--header\s+'([^']+)'|--header\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`-b\s+'([^']+)'|-b\s+"([^"]+)"|--cookie\s+'([^']+)'|--cookie\s+"([^"]+)"`)
)

// headers the downloader sets itself or that break when replayed
var skippedHeaders = map[string]bool{
	"content-length":  true,
	"content-type":    true,
	"host":            true,
	"accept-encoding": true,
	"connection":      true,
}

// RequestHeaders are extra HTTP headers forwarded to the external downloader.
type RequestHeaders struct {
	Headers map[string]string `json:"headers"`
	Cookie  string            `json:"cookie,omitempty"`
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts headers.
func ParseCurlFile(path string) (*RequestHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(string(content))
}

// ParseCurlCommand parses a cURL command string and extracts headers and cookies.
//
// An explicit -b/--cookie value takes precedence over a Cookie header.
func ParseCurlCommand(curlCmd string) (*RequestHeaders, error) {
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	headers := make(map[string]string)
	var headerCookie string

	for _, match := range curlHeaderRe.FindAllStringSubmatch(curlCmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch lower := strings.ToLower(key); {
		case lower == "cookie":
			headerCookie = value
		case skippedHeaders[lower], strings.HasPrefix(lower, "sec-"):
			continue
		default:
			headers[key] = value
		}
	}

	cookie := headerCookie
	if m := curlCookieRe.FindStringSubmatch(curlCmd); m != nil {
		cookie = firstGroup(m)
	}

	if len(headers) == 0 && cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}

	return &RequestHeaders{Headers: headers, Cookie: cookie}, nil
}

func firstGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// Fields returns the headers as FIELD:VALUE pairs in a stable order, cookie last.
func (h *RequestHeaders) Fields() []string {
	if h == nil {
		return nil
	}
	keys := make([]string, 0, len(h.Headers))
	for k := range h.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s:%s", k, h.Headers[k]))
	}
	if h.Cookie != "" {
		fields = append(fields, "Cookie:"+h.Cookie)
	}
	return fields
}

// SaveHeadersFile writes headers as JSON, readable only by the owner.
func SaveHeadersFile(path string, h *RequestHeaders) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create headers directory: %w", err)
	}
	data, err := MarshalJSON(h, true)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write headers file: %w", err)
	}
	return nil
}

// LoadHeadersFile reads a headers file written by [SaveHeadersFile].
func LoadHeadersFile(path string) (*RequestHeaders, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read headers file: %w", err)
	}
	var h RequestHeaders
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: headers file: %v", ErrInvalidConfig, err)
	}
	return &h, nil
}
