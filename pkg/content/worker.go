// Package content implements the Content Worker (§4.3): drains pending
// Generations and produces an outline then script chunks for each, either
// from a seed topic (§4.3.1) or by rewriting a supplied script (§4.3.2).
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/mediaforge/contentpipe/ent"
	"github.com/mediaforge/contentpipe/ent/generation"
	"github.com/mediaforge/contentpipe/ent/scriptchunk"
	"github.com/mediaforge/contentpipe/pkg/config"
	"github.com/mediaforge/contentpipe/pkg/llm"
	"github.com/mediaforge/contentpipe/pkg/outline"
	"github.com/mediaforge/contentpipe/pkg/queue"
	"github.com/mediaforge/contentpipe/pkg/sizing"
	"github.com/mediaforge/contentpipe/pkg/store"
	"github.com/mediaforge/contentpipe/pkg/textsplit"
)

// errAborted signals an operator-initiated reset/delete observed mid-pipeline
// (§5, §7 "Operator interventions") — the worker stops without writing a
// terminal status.
var errAborted = errors.New("generation aborted by external status change")

const (
	// maxSourceScriptChars bounds the source script handed to the outline
	// step so it fits the provider's context window (§4.3.2 step 1).
	maxSourceScriptChars = 12000

	// defaultRewriteChunkChars is the audio-sized piece length used to split
	// a rewritten script into chunks (§4.3.2 step 4, §4.5.1).
	defaultRewriteChunkChars = 1800

	// minPaddingChunkChars floors the per-padding-chunk target so the length
	// enforcement loop (§4.3.1 step 6) doesn't ask for degenerate output.
	minPaddingChunkChars = 200
)

var scriptNameDisallowed = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Executor implements queue.TaskExecutor for the Content Worker.
type Executor struct {
	store        *store.Store
	llm          *llm.Client
	cpm          config.CPMConfig
	chunkWorkers int
}

var _ queue.TaskExecutor = (*Executor)(nil)

// NewExecutor builds a Content Worker executor. chunkWorkers bounds the
// per-generation fan-out of §4.3.1 step 5 (default 4 if <= 0).
func NewExecutor(s *store.Store, llmClient *llm.Client, cpm config.CPMConfig, chunkWorkers int) *Executor {
	if chunkWorkers <= 0 {
		chunkWorkers = 4
	}
	return &Executor{store: s, llm: llmClient, cpm: cpm, chunkWorkers: chunkWorkers}
}

// Name identifies this executor in health reporting.
func (e *Executor) Name() string { return "content" }

// PollAndExecute implements §4.3 steps 2-5: claim one Generation, process it
// in a new unit of work, and write the resulting terminal or transient
// status.
func (e *Executor) PollAndExecute(ctx context.Context) error {
	gen, err := e.store.ClaimNext(ctx,
		[]generation.Status{generation.StatusPending, generation.StatusOutlineFailed, generation.StatusContentFailed},
		"", generation.StatusProcessingLock, store.ClaimOrderContent)
	if err != nil {
		return fmt.Errorf("claim next generation: %w", err)
	}
	if gen == nil {
		return queue.ErrNoTasksAvailable
	}

	log := slog.With("generation_id", gen.ID, "task_type", gen.TaskType)
	log.Info("generation claimed")

	var procErr error
	if gen.TaskType == generation.TaskTypeRewriteScript {
		procErr = e.processRewrite(ctx, gen)
	} else {
		procErr = e.processFromTopic(ctx, gen)
	}

	switch {
	case procErr == nil:
		if err := e.store.AdvanceStatus(context.Background(), gen.ID, generation.StatusContentReady); err != nil {
			log.Error("failed to mark content ready", "error", err)
			return err
		}
		log.Info("content ready")
	case errors.Is(procErr, errAborted):
		log.Warn("generation aborted by external status change, leaving status untouched")
	default:
		log.Error("content generation failed", "error", procErr)
		if err := e.store.FailWithError(context.Background(), gen.ID, generation.StatusContentFailed, "content_worker", procErr.Error()); err != nil {
			log.Error("failed to record content failure", "error", err)
			return err
		}
	}

	return nil
}

// checkpoint implements the abort checkpoints of §4.3.1 step 7: it re-reads
// the live status and fails with errAborted if it no longer matches any
// status this worker itself would have written.
func (e *Executor) checkpoint(ctx context.Context, id string, expected ...generation.Status) error {
	status, err := e.store.ReadStatus(ctx, id)
	if err != nil {
		return fmt.Errorf("checkpoint read: %w", err)
	}
	for _, s := range expected {
		if status == s {
			return nil
		}
	}
	return errAborted
}

func (e *Executor) processFromTopic(ctx context.Context, gen *ent.Generation) error {
	id := gen.ID

	topic, err := e.store.GetTopic(ctx, gen.TopicID)
	if err != nil {
		return fmt.Errorf("load topic: %w", err)
	}

	if gen.ScriptName == nil {
		if err := e.store.SetScriptName(ctx, id, buildScriptName(topic.Title, id)); err != nil {
			return fmt.Errorf("set script name: %w", err)
		}
	}

	targetChars, numQuotes, numStories := valueOrZero(gen.TargetChars), valueOrZero(gen.NumQuotes), valueOrZero(gen.NumStories)
	if gen.TargetChars == nil {
		est := sizing.EstimateFor(gen.TargetDurationMinutes, e.cpm.Get(gen.Language))
		if err := e.store.SetEstimates(ctx, id, est.TargetChars, est.NumQuotes, est.NumStories); err != nil {
			return fmt.Errorf("persist sizing estimates: %w", err)
		}
		targetChars, numQuotes, numStories = est.TargetChars, est.NumQuotes, est.NumStories
	}

	if err := e.checkpoint(ctx, id, generation.StatusProcessingLock); err != nil {
		return err
	}

	var outlineMarkdown string
	if gen.Outline != nil {
		outlineMarkdown = *gen.Outline
		if err := e.store.AdvanceStatus(ctx, id, generation.StatusContentGenerating); err != nil {
			return fmt.Errorf("advance to content_generating: %w", err)
		}
	} else {
		if err := e.store.AdvanceStatus(ctx, id, generation.StatusGeneratingOutline); err != nil {
			return fmt.Errorf("advance to generating_outline: %w", err)
		}

		result, err := e.llm.GenerateOutline(ctx, llm.OutlineParams{
			GenerationID: id,
			Language:     gen.Language,
			SeedTopic:    topic.Title,
			TargetChars:  targetChars,
			NumQuotes:    numQuotes,
			NumStories:   numStories,
			Model:        valueOrEmpty(gen.Model),
		})
		if err != nil {
			return fmt.Errorf("generate outline: %w", err)
		}

		outlineMarkdown = result.OutlineMarkdown
		if err := e.store.SetOutline(ctx, id, outlineMarkdown, generation.StatusContentGenerating); err != nil {
			return fmt.Errorf("persist outline: %w", err)
		}
		if result.SEOTitle != "" && gen.SeoTitle == nil {
			if err := e.store.SetSEOTitle(ctx, id, result.SEOTitle); err != nil {
				return fmt.Errorf("persist seo title: %w", err)
			}
		}
	}

	if err := e.translateTopicTitleIfNeeded(ctx, gen, topic); err != nil {
		return err
	}

	if err := e.checkpoint(ctx, id, generation.StatusContentGenerating); err != nil {
		return err
	}

	items := outline.Flatten(outline.Parse(outlineMarkdown))
	if len(items) == 0 {
		return fmt.Errorf("outline flattened to zero items")
	}

	if err := e.generateChunks(ctx, gen, items, targetChars, numQuotes, numStories); err != nil {
		return err
	}

	return nil
}

// translateTopicTitleIfNeeded implements §4.3.1 step 4's translation half:
// if the Topic's display language differs from the Generation's target
// language and no translation exists yet, ask the LLM once and persist it.
func (e *Executor) translateTopicTitleIfNeeded(ctx context.Context, gen *ent.Generation, topic *ent.Topic) error {
	if topic.Language == gen.Language || topic.TranslatedTitle != nil {
		return nil
	}
	translated, err := e.llm.Translate(ctx, topic.Title, gen.Language, valueOrEmpty(gen.Model))
	if err != nil {
		return fmt.Errorf("translate topic title: %w", err)
	}
	if err := e.store.SetTranslatedTitle(ctx, topic.ID, translated); err != nil {
		return fmt.Errorf("persist translated topic title: %w", err)
	}
	return nil
}

// generateChunks implements §4.3.1 steps 5-6: resumed fan-out generation of
// remaining flat items, then length-target enforcement.
func (e *Executor) generateChunks(ctx context.Context, gen *ent.Generation, items []outline.FlatItem, targetChars, numQuotes, numStories int) error {
	id := gen.ID

	maxIdx, err := e.store.MaxSectionIndex(ctx, id)
	if err != nil {
		return fmt.Errorf("read max section index: %w", err)
	}
	startIndex := maxIdx + 1

	ancestorContext := computeAncestorContext(items)
	perItemTarget := perItemTargetChars(targetChars, len(items))

	pending := make([]outline.FlatItem, 0, len(items))
	for _, it := range items {
		if it.Index >= startIndex {
			pending = append(pending, it)
		}
	}

	if err := e.dispatchChunks(ctx, gen, pending, ancestorContext, perItemTarget); err != nil {
		return err
	}

	if err := e.checkpoint(ctx, id, generation.StatusContentGenerating); err != nil {
		return err
	}

	return e.enforceLengthTarget(ctx, gen, targetChars, numQuotes, numStories)
}

// computeAncestorContext resolves, for every flat item, the content of its
// nearest ancestor (the most recently emitted item at a shallower level) —
// the "parent context" fed to the per-item LLM prompt (§4.3.1 step 5).
func computeAncestorContext(items []outline.FlatItem) map[int]string {
	ancestorByIndex := make(map[int]string, len(items))
	contentByLevel := map[int]string{}
	for _, it := range items {
		var ancestor string
		for lvl := it.Level - 1; lvl >= 0; lvl-- {
			if c, ok := contentByLevel[lvl]; ok {
				ancestor = c
				break
			}
		}
		ancestorByIndex[it.Index] = ancestor

		content := it.Content
		if content == "" {
			content = it.Title
		}
		contentByLevel[it.Level] = content
	}
	return ancestorByIndex
}

func perItemTargetChars(targetChars, itemCount int) int {
	if itemCount == 0 {
		return minPaddingChunkChars
	}
	per := targetChars / itemCount
	if per < minPaddingChunkChars {
		return minPaddingChunkChars
	}
	return per
}

// dispatchChunks fans work out to a bounded worker pool (§5 "within a
// generation dispatches up to 4 chunk-generation calls in parallel").
func (e *Executor) dispatchChunks(ctx context.Context, gen *ent.Generation, items []outline.FlatItem, ancestorContext map[int]string, perItemTarget int) error {
	if len(items) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.chunkWorkers)

	for _, it := range items {
		item := it
		g.Go(func() error {
			return e.generateOneChunk(gctx, gen, item, ancestorContext[item.Index], perItemTarget)
		})
	}

	return g.Wait()
}

func (e *Executor) generateOneChunk(ctx context.Context, gen *ent.Generation, item outline.FlatItem, ancestorContext string, targetChars int) error {
	titles, err := e.store.ExistingChunkTitles(ctx, gen.ID)
	if err != nil {
		return fmt.Errorf("load existing chunk titles: %w", err)
	}

	result, err := e.llm.GenerateSectionContent(ctx, llm.SectionContentParams{
		GenerationID:          gen.ID,
		Language:              gen.Language,
		SectionTitle:          item.Title,
		SectionType:           item.Type,
		OutlineContext:        ancestorContext,
		ExistingSectionTitles: titles,
		Model:                 valueOrEmpty(gen.Model),
		TargetChars:           targetChars,
	})
	if err != nil {
		return fmt.Errorf("generate section content for %q: %w", item.Title, err)
	}

	itemType := item.Type
	if result.ResolvedItemType != "" {
		itemType = result.ResolvedItemType
	}

	return e.store.UpsertChunk(ctx, store.UpsertChunkParams{
		GenerationID: gen.ID,
		SectionIndex: item.Index,
		Title:        item.Title,
		Text:         result.TextContent,
		Level:        item.Level,
		ItemType:     scriptchunk.ItemType(itemType),
	})
}

// enforceLengthTarget implements §4.3.1 step 6: append quote_added /
// story_added chunks, rotating between the two, until the concatenated
// script reaches 90% of target_chars or the iteration cap is hit (testable
// property 8).
func (e *Executor) enforceLengthTarget(ctx context.Context, gen *ent.Generation, targetChars, numQuotes, numStories int) error {
	id := gen.ID
	maxIterations := numQuotes + numStories + 20
	wantQuote := true

	for i := 0; i < maxIterations; i++ {
		if err := e.checkpoint(ctx, id, generation.StatusContentGenerating); err != nil {
			return err
		}

		text, err := e.store.TextOf(ctx, id)
		if err != nil {
			return fmt.Errorf("measure generation length: %w", err)
		}
		if float64(len(text)) >= 0.9*float64(targetChars) {
			return nil
		}

		titles, err := e.store.ExistingChunkTitles(ctx, id)
		if err != nil {
			return fmt.Errorf("load existing chunk titles for padding: %w", err)
		}
		nextIndex, err := e.store.MaxSectionIndex(ctx, id)
		if err != nil {
			return fmt.Errorf("read max section index for padding: %w", err)
		}
		nextIndex++

		sectionType := "story_suggestion"
		itemType := scriptchunk.ItemTypeStoryAdded
		if wantQuote {
			sectionType = "quote_suggestion"
			itemType = scriptchunk.ItemTypeQuoteAdded
		}
		wantQuote = !wantQuote

		result, err := e.llm.GenerateSectionContent(ctx, llm.SectionContentParams{
			GenerationID:          id,
			Language:              gen.Language,
			SectionTitle:          fmt.Sprintf("additional %s", sectionType),
			SectionType:           sectionType,
			ExistingSectionTitles: titles,
			Model:                 valueOrEmpty(gen.Model),
			TargetChars:           minPaddingChunkChars,
		})
		if err != nil {
			return fmt.Errorf("generate padding chunk: %w", err)
		}

		if err := e.store.UpsertChunk(ctx, store.UpsertChunkParams{
			GenerationID: id,
			SectionIndex: nextIndex,
			Title:        truncateTitle(result.TextContent),
			Text:         result.TextContent,
			Level:        0,
			ItemType:     itemType,
		}); err != nil {
			return fmt.Errorf("persist padding chunk: %w", err)
		}
	}

	// Iteration cap exhausted without reaching target — §9 "length-budget
	// under-run" is not an error, just a flag for observers.
	return e.store.SetTargetLengthCapped(ctx, id)
}

func (e *Executor) processRewrite(ctx context.Context, gen *ent.Generation) error {
	id := gen.ID

	if gen.SourceScript == nil {
		return fmt.Errorf("rewrite_script generation missing source_script")
	}

	if gen.ScriptName == nil {
		topic, err := e.store.GetTopic(ctx, gen.TopicID)
		if err != nil {
			return fmt.Errorf("load topic: %w", err)
		}
		if err := e.store.SetScriptName(ctx, id, buildScriptName(topic.Title, id)); err != nil {
			return fmt.Errorf("set script name: %w", err)
		}
	}

	targetChars := valueOrZero(gen.TargetChars)
	if gen.TargetChars == nil {
		est := sizing.EstimateFor(gen.TargetDurationMinutes, e.cpm.Get(gen.Language))
		if err := e.store.SetEstimates(ctx, id, est.TargetChars, est.NumQuotes, est.NumStories); err != nil {
			return fmt.Errorf("persist sizing estimates: %w", err)
		}
		targetChars = est.TargetChars
	}

	if err := e.checkpoint(ctx, id, generation.StatusProcessingLock); err != nil {
		return err
	}
	if err := e.store.AdvanceStatus(ctx, id, generation.StatusContentGenerating); err != nil {
		return fmt.Errorf("advance to content_generating: %w", err)
	}

	derivedOutline := valueOrEmpty(gen.DerivedOutline)
	if derivedOutline == "" {
		result, err := e.llm.GenerateOutline(ctx, llm.OutlineParams{
			GenerationID: id,
			Language:     gen.Language,
			SourceScript: truncateForContextWindow(*gen.SourceScript),
			TargetChars:  targetChars,
		})
		if err != nil {
			return fmt.Errorf("derive outline from source script: %w", err)
		}
		derivedOutline = result.OutlineMarkdown
		if err := e.store.SetDerivedOutline(ctx, id, derivedOutline); err != nil {
			return fmt.Errorf("persist derived outline: %w", err)
		}
	}

	if err := e.checkpoint(ctx, id, generation.StatusContentGenerating); err != nil {
		return err
	}

	rewritten, err := e.llm.GenerateSectionContent(ctx, llm.SectionContentParams{
		GenerationID:   id,
		Language:       gen.Language,
		SectionTitle:   "full rewritten script",
		SectionType:    "rewrite_chunk",
		OutlineContext: derivedOutline,
		Model:          valueOrEmpty(gen.Model),
		TargetChars:    targetChars,
	})
	if err != nil {
		return fmt.Errorf("generate rewritten script: %w", err)
	}

	if err := e.checkpoint(ctx, id, generation.StatusContentGenerating); err != nil {
		return err
	}

	if err := e.store.DeleteChunks(ctx, id); err != nil {
		return fmt.Errorf("delete prior chunks before rewrite insert: %w", err)
	}

	pieces := textsplit.Split(rewritten.TextContent, defaultRewriteChunkChars)
	for i, piece := range pieces {
		if err := e.store.UpsertChunk(ctx, store.UpsertChunkParams{
			GenerationID: id,
			SectionIndex: i,
			Title:        fmt.Sprintf("rewrite chunk %d", i),
			Text:         piece,
			Level:        0,
			ItemType:     scriptchunk.ItemTypeRewriteChunk,
		}); err != nil {
			return fmt.Errorf("persist rewrite chunk %d: %w", i, err)
		}
	}

	return nil
}

func truncateForContextWindow(s string) string {
	if len(s) <= maxSourceScriptChars {
		return s
	}
	return s[:maxSourceScriptChars]
}

func buildScriptName(title, generationID string) string {
	suffix := generationID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return scriptNameDisallowed.ReplaceAllString(title, "_") + "_" + suffix
}

func truncateTitle(text string) string {
	const maxTitleLen = 60
	if len(text) <= maxTitleLen {
		return text
	}
	return text[:maxTitleLen]
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func valueOrZero(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
