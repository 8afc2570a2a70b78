package clientcmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// APIBase returns the server base URL, honoring DRIFTQ_HTTP.
func APIBase() string {
	if v := os.Getenv("DRIFTQ_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

func postJSON(url string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return http.Post(url, "application/json", bytes.NewReader(b))
}

// printResponse pretty-prints a JSON response body to stdout, falling back
// to the raw bytes when the body is not JSON.
func printResponse(resp *http.Response) error {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(b))
	}
	var buf bytes.Buffer
	if json.Indent(&buf, bytes.TrimSpace(b), "", "  ") == nil && buf.Len() > 0 {
		fmt.Println(buf.String())
		return nil
	}
	fmt.Println(resp.Status)
	return nil
}
