// Utilities for importing browser credentials from a "Copy as cURL" command.
package shared

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`-b\s+'([^']+)'|-b\s+"([^"]+)"`)
)

// CurlHeaders represents parsed headers and cookies from a cURL command.
type CurlHeaders struct {
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts headers.
func ParseCurlFile(filepath string) (*CurlHeaders, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(string(content))
}

// ParseCurlCommand extracts -H headers and the cookie from a cURL command line.
//
// A -b cookie wins over a Cookie header.
func ParseCurlCommand(curlCmd string) (*CurlHeaders, error) {
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	headers := make(map[string]string)
	var headerCookie, cookie string

	for _, match := range curlHeaderRe.FindAllStringSubmatch(curlCmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		if strings.EqualFold(key, "cookie") {
			if headerCookie == "" {
				headerCookie = value
			}
			continue
		}
		headers[key] = value
	}

	if m := curlCookieRe.FindStringSubmatch(curlCmd); m != nil {
		cookie = firstGroup(m)
	}
	if cookie == "" {
		cookie = headerCookie
	}

	if len(headers) == 0 && cookie == "" {
		return nil, fmt.Errorf("no headers found in curl command")
	}

	return &CurlHeaders{Headers: headers, Cookie: cookie}, nil
}

func firstGroup(match []string) string {
	if match[1] != "" {
		return match[1]
	}
	return match[2]
}

// hop-by-hop and request-specific headers that make no sense to replay against the media source.
var skippedCurlHeaders = map[string]bool{
	"accept-encoding": true,
	"content-length":  true,
	"content-type":    true,
	"host":            true,
	"connection":      true,
}

// Apply copies the parsed browser identity into the yt-dlp settings.
//
// User-Agent and Referer map to their dedicated fields; the cookie and the
// remaining headers are forwarded with --add-header.
func (c *CurlHeaders) Apply(yt *YouTubeConfig) {
	if yt.Headers == nil {
		yt.Headers = make(map[string]string)
	}

	for key, value := range c.Headers {
		switch lower := strings.ToLower(key); {
		case lower == "user-agent":
			yt.UserAgent = value
		case lower == "referer":
			yt.Referer = value
		case skippedCurlHeaders[lower]:
		default:
			yt.Headers[key] = value
		}
	}

	if c.Cookie != "" {
		yt.Headers["Cookie"] = c.Cookie
	}
}
