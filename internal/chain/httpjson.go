package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DoRequest 发送请求并按状态码归类错误
// 404 -> ErrNotFound，其余非 2xx 及网络错误 -> TransientError
func DoRequest(ctx context.Context, hc *http.Client, method, url string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, Transient(method+" "+url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, Transient(method+" "+url, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, Transient(method+" "+url, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}
	return data, nil
}

// GetJSON GET 并解码 JSON，解码失败也算 TransientError
func GetJSON(ctx context.Context, hc *http.Client, url string, out interface{}) error {
	data, err := DoRequest(ctx, hc, http.MethodGet, url, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return Transient("decode "+url, err)
	}
	return nil
}
