// Package vision adapts the external image-labeling service. The service is
// a black box: it takes an image reference and returns short text labels
// describing the visual content. Matching only ever consumes its output.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

// Labeler returns descriptive text labels for an image reference.
type Labeler interface {
	LabelImage(ctx context.Context, imageRef string) ([]string, error)
}

// maxLabels caps how many labels are requested per image.
const maxLabels = 10

// HTTPLabeler calls a Vision-style annotate endpoint authenticated with an
// OAuth2 client-credentials token source.
type HTTPLabeler struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPLabeler creates an HTTPLabeler. The returned client refreshes its
// access token automatically via the client-credentials grant.
func NewHTTPLabeler(endpoint, clientID, clientSecret, tokenURL string) *HTTPLabeler {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	client := cfg.Client(context.Background())
	client.Timeout = 15 * time.Second

	return &HTTPLabeler{endpoint: endpoint, httpClient: client}
}

type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateEntry struct {
	Image    annotateImage     `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateImage struct {
	Source struct {
		ImageURI string `json:"imageUri"`
	} `json:"source"`
}

type annotateFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateResponse struct {
	Responses []struct {
		LabelAnnotations []struct {
			Description string  `json:"description"`
			Score       float64 `json:"score"`
		} `json:"labelAnnotations"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// LabelImage submits one LABEL_DETECTION annotate request for the image.
func (l *HTTPLabeler) LabelImage(ctx context.Context, imageRef string) ([]string, error) {
	entry := annotateEntry{
		Features: []annotateFeature{{Type: "LABEL_DETECTION", MaxResults: maxLabels}},
	}
	entry.Image.Source.ImageURI = imageRef
	req := annotateRequest{Requests: []annotateEntry{entry}}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal annotate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build annotate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("annotate: status %d: %s", resp.StatusCode, string(b))
	}

	var out annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode annotate response: %w", err)
	}
	if len(out.Responses) == 0 {
		return nil, nil
	}
	if apiErr := out.Responses[0].Error; apiErr != nil {
		return nil, fmt.Errorf("annotate: %s", apiErr.Message)
	}

	labels := make([]string, 0, len(out.Responses[0].LabelAnnotations))
	for _, ann := range out.Responses[0].LabelAnnotations {
		labels = append(labels, ann.Description)
	}
	return labels, nil
}

// Ping submits an empty annotate batch to confirm the endpoint is reachable
// and the client credentials still mint a token. The service answers an empty
// batch with an empty response, so a 2xx means the whole auth path works.
func (l *HTTPLabeler) Ping(ctx context.Context) error {
	body := []byte(`{"requests":[]}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build vision ping: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vision ping: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vision ping: status %d", resp.StatusCode)
	}
	return nil
}

// NoopLabeler logs the request and returns no labels. Use in development
// when the vision service is not configured; unlabeled postings simply never
// match.
type NoopLabeler struct {
	logger *zap.Logger
}

// NewNoopLabeler creates a NoopLabeler backed by the given logger.
func NewNoopLabeler(logger *zap.Logger) *NoopLabeler {
	return &NoopLabeler{logger: logger}
}

// LabelImage logs and returns an empty label set.
func (n *NoopLabeler) LabelImage(_ context.Context, imageRef string) ([]string, error) {
	n.logger.Info("vision labeling (noop — no labels)", zap.String("image_ref", imageRef))
	return []string{}, nil
}
