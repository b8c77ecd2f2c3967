package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mediaforge/contentpipe/ent"
	"github.com/mediaforge/contentpipe/ent/topic"
)

// CreateOrGetTopic implements the §4.2 suggestion-intake upsert: a Topic is
// keyed by (title, language); re-suggesting an existing title returns the
// existing row untouched rather than duplicating it.
func (s *Store) CreateOrGetTopic(ctx context.Context, title, language, translatedTitle string) (*ent.Topic, error) {
	existing, err := s.client.Topic.Query().
		Where(topic.TitleEQ(title), topic.LanguageEQ(language)).
		Only(ctx)
	switch {
	case ent.IsNotFound(err):
		builder := s.client.Topic.Create().
			SetID(uuid.New().String()).
			SetTitle(title).
			SetLanguage(language).
			SetStatus(topic.StatusSuggested)
		if translatedTitle != "" {
			builder = builder.SetTranslatedTitle(translatedTitle)
		}
		created, createErr := builder.Save(ctx)
		if createErr != nil {
			return nil, fmt.Errorf("create topic: %w", createErr)
		}
		return created, nil
	case err != nil:
		return nil, fmt.Errorf("query topic: %w", err)
	default:
		return existing, nil
	}
}

// GetTopic fetches a Topic by id.
func (s *Store) GetTopic(ctx context.Context, id string) (*ent.Topic, error) {
	t, err := s.client.Topic.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return t, nil
}

// LinkGeneration records the Generation a Topic now points to and moves its
// status to generation_requested (§4.2 enqueue_from_topic).
func (s *Store) LinkGeneration(ctx context.Context, topicID, generationID string) error {
	err := s.client.Topic.UpdateOneID(topicID).
		SetGenerationRef(generationID).
		SetStatus(topic.StatusGenerationRequested).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("link generation to topic: %w", err)
	}
	return nil
}

// UnlinkTopic clears a Topic's generation_ref, used after delete_generation
// removes the Generation it pointed to (§4.2 ordering).
func (s *Store) UnlinkTopic(ctx context.Context, topicID string) error {
	err := s.client.Topic.UpdateOneID(topicID).
		ClearGenerationRef().
		SetStatus(topic.StatusGenerationReset).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("unlink topic: %w", err)
	}
	return nil
}

// DeleteTopic implements the delete_topic admin action: only a Topic in
// status=suggested with no generation_ref may be deleted outright (§4.2).
// A linked or already-requested Topic returns ErrNotDeletable; callers that
// want to remove a linked Topic must delete its Generation first.
func (s *Store) DeleteTopic(ctx context.Context, id string) error {
	t, err := s.GetTopic(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != topic.StatusSuggested || t.GenerationRef != nil {
		return ErrNotDeletable
	}
	if err := s.client.Topic.DeleteOneID(id).Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete topic: %w", err)
	}
	return nil
}

// SetTranslatedTitle persists the §4.3.1 step 4 metadata pass's translation
// of a Topic's title into the Generation's display language, only ever
// called when no translation exists yet.
func (s *Store) SetTranslatedTitle(ctx context.Context, topicID, translatedTitle string) error {
	err := s.client.Topic.UpdateOneID(topicID).SetTranslatedTitle(translatedTitle).Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("set topic translated title: %w", err)
	}
	return nil
}

// ResetTopicLink implements reset_topic_link: used when a Topic's linked
// Generation was deleted out from under it (e.g. a crash mid-admin-action),
// returning the Topic to a re-suggestible state.
func (s *Store) ResetTopicLink(ctx context.Context, topicID string) error {
	return s.UnlinkTopic(ctx, topicID)
}

// ListSuggested returns Topics awaiting a user decision, newest first, for
// the suggestion review surface (§4.2).
func (s *Store) ListSuggested(ctx context.Context, language string, limit int) ([]*ent.Topic, error) {
	query := s.client.Topic.Query().
		Where(topic.StatusEQ(topic.StatusSuggested))
	if language != "" {
		query = query.Where(topic.LanguageEQ(language))
	}
	topics, err := query.
		Order(ent.Desc(topic.FieldCreatedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list suggested topics: %w", err)
	}
	return topics, nil
}
