package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dailybrief/internal/config"
	"dailybrief/internal/core"
	"dailybrief/internal/logger"
	"dailybrief/internal/pipeline"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model for enrichment calls.
	DefaultModel = "gemini-2.0-flash"
	// DefaultMaxRetries bounds how often a failed batch call is retried
	// before the pipeline falls back to its statistical result.
	DefaultMaxRetries = 2
	// defaultRetryDelay is the base wait between attempts; it grows
	// linearly with the attempt number.
	defaultRetryDelay = 2 * time.Second
	// snippetLen is how much article content goes into a prompt line.
	snippetLen = 200

	dedupPromptTemplate = `You are a deduplication assistant. Given a list of articles (index, title, snippet), identify groups of articles that cover the same story or event.

Only include groups with 2 or more articles. Indices not in any group are unique.

Articles:
%s`

	groupPromptTemplate = `You are a content curator. Given a list of articles (index, title, snippet), group them by topic, provide a label and summary for each group, mark the primary (most comprehensive) article in each group, and write a brief summary for each article.

Every article must appear in exactly one group. Single-article groups are fine.

Articles:
%s`
)

// Client calls Gemini to propose semantic duplicate clusters and topic
// groupings. It implements pipeline.Oracle; every batch call carries its
// own bounded retry loop, so callers see at most one error per batch.
type Client struct {
	modelName   string
	temperature float32
	maxRetries  int
	retryDelay  time.Duration
	gClient     *genai.Client
	log         zerolog.Logger
}

var _ pipeline.Oracle = (*Client)(nil)

// NewClient creates an enrichment client. The API key is read from the
// GEMINI_API_KEY environment variable or the llm.api_key config key.
func NewClient(modelName string) (*Client, error) {
	cfg := config.Get().LLM

	apiKey := config.GetLLMAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY or llm.api_key in the config file")
	}

	if modelName == "" {
		modelName = cfg.Model
		if modelName == "" {
			modelName = DefaultModel
		}
	}

	maxRetries := DefaultMaxRetries
	if cfg.MaxRetries >= 0 {
		maxRetries = cfg.MaxRetries
	}

	ctx := context.Background()
	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		modelName:   modelName,
		temperature: cfg.Temperature,
		maxRetries:  maxRetries,
		retryDelay:  defaultRetryDelay,
		gClient:     gClient,
		log:         logger.Get(),
	}, nil
}

// DeduplicateBatch asks the model which articles in the batch cover the
// same story. Singleton groups are discarded before returning.
func (c *Client) DeduplicateBatch(ctx context.Context, articles []core.Article) ([][]int, error) {
	prompt := fmt.Sprintf(dedupPromptTemplate, formatArticles(articles))

	response, err := c.generateJSON(ctx, prompt, dedupResponseSchema())
	if err != nil {
		return nil, err
	}

	return ParseDedupResponse(response)
}

// GroupBatch asks the model to partition the batch into labeled,
// summarized topic groups.
func (c *Client) GroupBatch(ctx context.Context, articles []core.Article) ([]pipeline.OracleGroup, error) {
	prompt := fmt.Sprintf(groupPromptTemplate, formatArticles(articles))

	response, err := c.generateJSON(ctx, prompt, groupResponseSchema())
	if err != nil {
		return nil, err
	}

	return ParseGroupResponse(response)
}

// generateJSON runs one structured-output generation with retries.
func (c *Client) generateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	temp := c.temperature
	config := &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, config)
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Int("attempt", attempt+1).Msg("enrichment call failed")
			continue
		}

		text := resp.Text()
		if text == "" {
			lastErr = fmt.Errorf("empty response from model")
			continue
		}
		return text, nil
	}

	return "", fmt.Errorf("enrichment call failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// formatArticles renders one prompt line per article: index, title, and
// a content snippet.
func formatArticles(articles []core.Article) string {
	var b strings.Builder
	for i, a := range articles {
		snippet := a.ContentText
		if runes := []rune(snippet); len(runes) > snippetLen {
			snippet = string(runes[:snippetLen])
		}
		fmt.Fprintf(&b, "[%d] %s - %s\n", i, a.Title, snippet)
	}
	return b.String()
}

func dedupResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"groups": {
				Type:        genai.TypeArray,
				Description: "Groups of article indices that cover the same story (2+ members each)",
				Items: &genai.Schema{
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeInteger},
				},
			},
		},
		Required: []string{"groups"},
	}
}

func groupResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"groups": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"topic_label": {
							Type:        genai.TypeString,
							Description: "Short human-readable topic label",
						},
						"article_indices": {
							Type:  genai.TypeArray,
							Items: &genai.Schema{Type: genai.TypeInteger},
						},
						"primary_index": {
							Type:        genai.TypeInteger,
							Description: "Index of the most comprehensive article in the group",
						},
						"group_summary": {
							Type: genai.TypeString,
						},
						"article_summaries": {
							Type: genai.TypeArray,
							Items: &genai.Schema{
								Type: genai.TypeObject,
								Properties: map[string]*genai.Schema{
									"index":   {Type: genai.TypeInteger},
									"summary": {Type: genai.TypeString},
								},
								Required: []string{"index", "summary"},
							},
						},
					},
					Required: []string{"topic_label", "article_indices", "primary_index", "group_summary"},
				},
			},
		},
		Required: []string{"groups"},
	}
}

type dedupResponse struct {
	Groups [][]int `json:"groups"`
}

type groupResponse struct {
	Groups []struct {
		TopicLabel       string `json:"topic_label"`
		ArticleIndices   []int  `json:"article_indices"`
		PrimaryIndex     int    `json:"primary_index"`
		GroupSummary     string `json:"group_summary"`
		ArticleSummaries []struct {
			Index   int    `json:"index"`
			Summary string `json:"summary"`
		} `json:"article_summaries"`
	} `json:"groups"`
}

// ParseDedupResponse decodes a dedup response and discards singleton
// groups. Malformed JSON is an error so callers fall back rather than
// trusting a half-understood payload.
func ParseDedupResponse(text string) ([][]int, error) {
	var parsed dedupResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse dedup response: %w", err)
	}

	groups := make([][]int, 0, len(parsed.Groups))
	for _, g := range parsed.Groups {
		if len(g) >= 2 {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// ParseGroupResponse decodes a grouping response into oracle groups.
func ParseGroupResponse(text string) ([]pipeline.OracleGroup, error) {
	var parsed groupResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse grouping response: %w", err)
	}

	groups := make([]pipeline.OracleGroup, 0, len(parsed.Groups))
	for _, g := range parsed.Groups {
		summaries := make(map[int]string, len(g.ArticleSummaries))
		for _, s := range g.ArticleSummaries {
			summaries[s.Index] = s.Summary
		}
		groups = append(groups, pipeline.OracleGroup{
			Label:            g.TopicLabel,
			ArticleIndices:   g.ArticleIndices,
			PrimaryIndex:     g.PrimaryIndex,
			GroupSummary:     g.GroupSummary,
			ArticleSummaries: summaries,
		})
	}
	return groups, nil
}
