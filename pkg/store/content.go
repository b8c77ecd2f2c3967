package store

import (
	"context"
	"fmt"

	"github.com/mediaforge/contentpipe/ent"
	"github.com/mediaforge/contentpipe/ent/generation"
)

// SetEstimates persists the §4.3.1 step 1 sizing outputs the first time they
// are computed for a Generation.
func (s *Store) SetEstimates(ctx context.Context, id string, targetChars, numQuotes, numStories int) error {
	err := s.client.Generation.UpdateOneID(id).
		SetTargetChars(targetChars).
		SetNumQuotes(numQuotes).
		SetNumStories(numStories).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("set generation estimates: %w", err)
	}
	return nil
}

// SetOutline persists the §4.3.1 step 2 outline draft and advances status in
// a single write, so observers never see an outline without the status that
// implies it exists.
func (s *Store) SetOutline(ctx context.Context, id, outline string, status generation.Status) error {
	err := s.client.Generation.UpdateOneID(id).
		SetOutline(outline).
		SetStatus(status).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("set generation outline: %w", err)
	}
	return nil
}

// SetDerivedOutline persists the §4.3.2 step 1 derived outline for a
// rewrite_script Generation.
func (s *Store) SetDerivedOutline(ctx context.Context, id, outline string) error {
	err := s.client.Generation.UpdateOneID(id).SetDerivedOutline(outline).Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("set derived outline: %w", err)
	}
	return nil
}

// SetScriptName persists the stable token used to name the audio directory
// (§4.3.1 step 4, §6). Only ever set once; callers pass the same value on
// repeat calls during resumption.
func (s *Store) SetScriptName(ctx context.Context, id, scriptName string) error {
	err := s.client.Generation.UpdateOneID(id).SetScriptName(scriptName).Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("set script name: %w", err)
	}
	return nil
}

// SetSEOTitle persists the §4.3.1 step 4 metadata pass's SEO title. It writes
// unconditionally; the Content Worker calls it only while no SEO title is set.
func (s *Store) SetSEOTitle(ctx context.Context, id, seoTitle string) error {
	err := s.client.Generation.UpdateOneID(id).SetSeoTitle(seoTitle).Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("set seo title: %w", err)
	}
	return nil
}

// SetTargetLengthCapped flags that §4.3.1 step 6's iteration cap was reached
// before target_chars*0.9 was met (testable property 8).
func (s *Store) SetTargetLengthCapped(ctx context.Context, id string) error {
	err := s.client.Generation.UpdateOneID(id).SetTargetLengthCapped(true).Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("set target length capped: %w", err)
	}
	return nil
}

// ReadStatus returns just the current status, used by the abort checkpoints
// of §4.3.1 step 7 and §5's operator-intervention handling — a lighter read
// than GetGeneration for a hot polling path.
func (s *Store) ReadStatus(ctx context.Context, id string) (generation.Status, error) {
	gen, err := s.client.Generation.Query().
		Where(generation.IDEQ(id)).
		Select(generation.FieldStatus).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read generation status: %w", err)
	}
	return gen.Status, nil
}
