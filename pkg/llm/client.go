// Package llm wraps the gRPC-based content-generation sidecar used by the
// Content Worker: outline drafting, per-section prose generation, and title
// translation (§4.3.1, §4.3.2).
package llm

import (
	"context"
	"fmt"
	"os"

	pb "github.com/mediaforge/contentpipe/proto"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the gRPC connection to the content-generation sidecar.
type Client struct {
	conn         *grpc.ClientConn
	client       pb.ContentServiceClient
	defaultModel string
}

// NewClient dials addr and configures a default model from CONTENT_LLM_MODEL
// (falling back to a conservative default), mirroring the teacher's
// env-driven model selection.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to content generation service: %w", err)
	}

	model := os.Getenv("CONTENT_LLM_MODEL")
	if model == "" {
		model = "gemini-2.0-flash"
	}

	return &Client{
		conn:         conn,
		client:       pb.NewContentServiceClient(conn),
		defaultModel: model,
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) resolveModel(model string) string {
	if model != "" {
		return model
	}
	return c.defaultModel
}

// OutlineParams are the inputs to GenerateOutline.
type OutlineParams struct {
	GenerationID string
	Language     string
	SeedTopic    string // from_topic
	SourceScript string // rewrite_script
	TargetChars  int
	NumQuotes    int
	NumStories   int
	Model        string
}

// OutlineResult is the sidecar's outline draft.
type OutlineResult struct {
	OutlineMarkdown string
	SEOTitle        string
}

// GenerateOutline implements §4.3.1 step 2 / §4.3.2 step 1: produce a
// Markdown outline (and an SEO title) from a seed topic or source script.
func (c *Client) GenerateOutline(ctx context.Context, p OutlineParams) (OutlineResult, error) {
	resp, err := c.client.GenerateOutline(ctx, &pb.OutlineRequest{
		GenerationId: p.GenerationID,
		Language:     p.Language,
		SeedTopic:    p.SeedTopic,
		SourceScript: p.SourceScript,
		TargetChars:  int32(p.TargetChars),
		NumQuotes:    int32(p.NumQuotes),
		NumStories:   int32(p.NumStories),
		Model:        c.resolveModel(p.Model),
	})
	if err != nil {
		return OutlineResult{}, fmt.Errorf("generate outline: %w", err)
	}
	return OutlineResult{
		OutlineMarkdown: resp.GetOutlineMarkdown(),
		SEOTitle:        resp.GetSeoTitle(),
	}, nil
}

// SectionContentParams are the inputs to GenerateSectionContent.
type SectionContentParams struct {
	GenerationID          string
	Language              string
	SectionTitle          string
	SectionType           string
	OutlineContext        string
	ExistingSectionTitles []string
	Model                 string
	TargetChars           int
}

// SectionContentResult is the sidecar's generated prose for one outline node.
type SectionContentResult struct {
	TextContent      string
	ResolvedItemType string
}

// GenerateSectionContent implements §4.3.1 step 5: expand one flattened
// outline node into narratable prose.
func (c *Client) GenerateSectionContent(ctx context.Context, p SectionContentParams) (SectionContentResult, error) {
	resp, err := c.client.GenerateSectionContent(ctx, &pb.SectionContentRequest{
		GenerationId:          p.GenerationID,
		Language:              p.Language,
		SectionTitle:          p.SectionTitle,
		SectionType:           p.SectionType,
		OutlineContext:        p.OutlineContext,
		ExistingSectionTitles: p.ExistingSectionTitles,
		Model:                 c.resolveModel(p.Model),
		TargetChars:           int32(p.TargetChars),
	})
	if err != nil {
		return SectionContentResult{}, fmt.Errorf("generate section content: %w", err)
	}
	return SectionContentResult{
		TextContent:      resp.GetTextContent(),
		ResolvedItemType: resp.GetResolvedItemType(),
	}, nil
}

// SuggestTitles implements the suggest operation (§4.2): asks the sidecar
// for count candidate titles derived from seed.
func (c *Client) SuggestTitles(ctx context.Context, seed, language string, count int, model string) ([]string, error) {
	resp, err := c.client.SuggestTitles(ctx, &pb.SuggestTitlesRequest{
		Seed:     seed,
		Language: language,
		Count:    int32(count),
		Model:    c.resolveModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("suggest titles: %w", err)
	}
	return resp.GetTitles(), nil
}

// Translate implements the seed-topic-suggestion translation step (§4.2).
func (c *Client) Translate(ctx context.Context, text, targetLanguage, model string) (string, error) {
	resp, err := c.client.Translate(ctx, &pb.TranslateRequest{
		Text:           text,
		TargetLanguage: targetLanguage,
		Model:          c.resolveModel(model),
	})
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	return resp.GetTranslatedText(), nil
}
