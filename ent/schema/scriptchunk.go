package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ScriptChunk holds the schema definition for the ScriptChunk entity: one
// atomic unit of narration belonging to a Generation.
type ScriptChunk struct {
	ent.Schema
}

// Fields of the ScriptChunk.
func (ScriptChunk) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("generation_id").
			Immutable(),
		field.Int("section_index").
			Comment("Dense, 0-based, ordered within a Generation"),
		field.String("section_title").
			Optional(),
		field.Enum("item_type").
			Values(
				"intro",
				"outro",
				"section_header",
				"quote_suggestion",
				"story_suggestion",
				"quote",
				"story",
				"point",
				"rewrite_chunk",
				"quote_added",
				"story_added",
			).
			Default("point"),
		field.Int("level").
			Default(0).
			Comment("Outline nesting depth"),
		field.Text("text_content").
			Optional(),
		field.String("audio_path").
			Optional().
			Nillable(),
		field.Bool("audio_ready").
			Default(false),
		field.String("audio_error").
			Optional().
			Nillable(),

		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the ScriptChunk.
func (ScriptChunk) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("generation_id", "section_index").
			Unique(),
		index.Fields("generation_id", "audio_ready"),
	}
}

func (ScriptChunk) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
