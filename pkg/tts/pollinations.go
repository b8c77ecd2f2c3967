package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

const (
	pollinationsBaseURL    = "https://text.pollinations.ai/"
	pollinationsURLLimit   = 4000
	pollinationsTextRepair = "chết"
	pollinationsTextFixed  = "chít"
)

// PollinationsProvider calls the free-tier Pollinations text-to-speech
// endpoint by GET request with the text embedded in the URL path.
type PollinationsProvider struct {
	HTTPClient *http.Client
}

func (p *PollinationsProvider) Name() string { return "pollinations" }

func (p *PollinationsProvider) Synthesize(ctx context.Context, text, voiceName string, speed float64, outputPath string) error {
	processed := strings.ReplaceAll(text, pollinationsTextRepair, pollinationsTextFixed)
	apiURL := pollinationsBaseURL + url.PathEscape(processed)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("build pollinations request: %w", err)
	}
	q := req.URL.Query()
	q.Set("model", "openai-audio")
	q.Set("voice", voiceName)
	req.URL.RawQuery = q.Encode()

	if len(req.URL.String()) > pollinationsURLLimit {
		// Matches the source's warning-only behavior: the request still
		// goes out, it may just be rejected by the server.
	}

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call pollinations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return fmt.Errorf("pollinations returned %d: %s", resp.StatusCode, string(detail))
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "audio/mpeg") {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return fmt.Errorf("expected audio/mpeg, got %q: %s", contentType, string(detail))
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write audio file: %w", err)
	}

	// Minimum-size enforcement (§4.5.1 step 4) happens once, in
	// pkg/tts.ProduceChunkAudio, against the configured threshold rather
	// than here per-provider.
	return nil
}
