package tester

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	expectClause = regexp.MustCompile(`EXPECT\s+(\d+)`)
	bodyClause   = regexp.MustCompile(`BODY\s+(\{.*\})`)
)

// HTTPCase is a parsed `METHOD /path [BODY <json>] [EXPECT <status>]` line.
type HTTPCase struct {
	Method string
	Path   string
	Body   []byte
	// Expect is zero when the line carries no expectation.
	Expect int
}

// Name is how the case is reported.
func (h HTTPCase) Name() string { return h.Method + " " + h.Path }

// ParseHTTPLine reads one HTTP test line.
func ParseHTTPLine(line string) (HTTPCase, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return HTTPCase{}, fmt.Errorf("invalid test format")
	}
	hc := HTTPCase{Method: strings.ToUpper(parts[0]), Path: parts[1]}
	rest := strings.Join(parts[2:], " ")

	if m := expectClause.FindStringSubmatch(rest); m != nil {
		code, err := strconv.Atoi(m[1])
		if err != nil {
			return HTTPCase{}, fmt.Errorf("invalid expected status")
		}
		hc.Expect = code
	}
	if m := bodyClause.FindStringSubmatch(rest); m != nil {
		if !json.Valid([]byte(m[1])) {
			return HTTPCase{}, fmt.Errorf("invalid JSON body")
		}
		hc.Body = []byte(m[1])
	}
	return hc, nil
}

// Evaluate decides pass/fail for an observed status.
func (h HTTPCase) Evaluate(status int) (bool, string) {
	if h.Expect != 0 {
		return status == h.Expect, fmt.Sprintf("Status %d (expected %d)", status, h.Expect)
	}
	return status >= 200 && status < 400, fmt.Sprintf("Status %d", status)
}

// do sends the request; connection failures report status 0.
func (h HTTPCase) do(ctx context.Context, client *http.Client, baseURL string) int {
	var body io.Reader
	if h.Body != nil {
		body = bytes.NewReader(h.Body)
	}
	req, err := http.NewRequestWithContext(ctx, h.Method, strings.TrimRight(baseURL, "/")+h.Path, body)
	if err != nil {
		return 0
	}
	if h.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

// RunHTTP executes every line against baseURL.
func RunHTTP(ctx context.Context, client *http.Client, baseURL string, lines []string) *Suite {
	suite := &Suite{}
	for _, line := range lines {
		start := time.Now()
		hc, err := ParseHTTPLine(line)
		if err != nil {
			suite.add(Case{Name: line, Message: err.Error()})
			continue
		}
		status := hc.do(ctx, client, baseURL)
		passed, msg := hc.Evaluate(status)
		suite.add(Case{Name: hc.Name(), Passed: passed, Message: msg, Duration: time.Since(start)})
	}
	return suite
}
