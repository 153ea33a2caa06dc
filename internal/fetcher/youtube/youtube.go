// Package youtube fetches video transcripts over the public timedtext
// endpoint. It satisfies the crawler's transcript fetcher contract.
package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	neturl "net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultEndpoint = "https://www.youtube.com/api/timedtext"
	defaultLanguage = "en"

	maxTranscriptBytes = 8 << 20
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?(?:.*&)?v=([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`youtube\.com/embed/([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`youtube\.com/v/([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{6,})`),
}

// ExtractVideoID pulls the video ID out of any supported YouTube URL form.
func ExtractVideoID(url string) (string, bool) {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// CanonicalURL returns the watch URL for a video ID.
func CanonicalURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// Fetcher retrieves transcripts for recognized video URLs.
type Fetcher struct {
	client   *http.Client
	endpoint string
	language string
	logger   *zap.Logger
}

func New(timeout time.Duration, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		endpoint: defaultEndpoint,
		language: defaultLanguage,
		logger:   logger,
	}
}

// Matches reports whether the URL is a recognizable video URL.
func (f *Fetcher) Matches(url string) bool {
	_, ok := ExtractVideoID(url)
	return ok
}

// Canonical collapses short and embed URL forms onto the watch URL, so a
// video transcript lands in the same place no matter which form the site
// linked. URLs with no recognizable video ID come back unchanged.
func (f *Fetcher) Canonical(url string) string {
	id, ok := ExtractVideoID(url)
	if !ok {
		return url
	}
	return CanonicalURL(id)
}

type timedText struct {
	XMLName xml.Name `xml:"transcript"`
	Lines   []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

// Transcript fetches the caption track and renders it as a markdown
// document headed by the video ID.
func (f *Fetcher) Transcript(ctx context.Context, videoURL string) (string, error) {
	id, ok := ExtractVideoID(videoURL)
	if !ok {
		return "", fmt.Errorf("no video id in %q", videoURL)
	}

	query := neturl.Values{"lang": {f.language}, "v": {id}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build transcript request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch transcript for %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcript for %s: unexpected status %d", id, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTranscriptBytes))
	if err != nil {
		return "", fmt.Errorf("read transcript for %s: %w", id, err)
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse transcript for %s: %w", id, err)
	}
	lines := make([]string, 0, len(tt.Lines))
	for _, l := range tt.Lines {
		// Caption text arrives double-escaped ("&amp;#39;").
		text := html.UnescapeString(l.Text)
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			continue
		}
		lines = append(lines, text)
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("no transcript available for %s", id)
	}
	f.logger.Debug("transcript fetched", zap.String("video", id), zap.Int("lines", len(lines)))
	return fmt.Sprintf("# YouTube video %s\n\n%s", id, strings.Join(lines, "\n")), nil
}
