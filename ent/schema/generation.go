package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Generation holds the schema definition for the Generation entity: one
// pipeline execution for a Topic.
type Generation struct {
	ent.Schema
}

// Fields of the Generation.
func (Generation) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("topic_id").
			Comment("Owning Topic id"),
		field.Enum("task_type").
			Values("from_topic", "rewrite_script"),
		field.String("language"),
		field.String("model").
			Optional().
			Nillable(),
		field.Int("priority").
			Default(2).
			Comment("1 highest, 3 lowest"),
		field.Int("target_duration_minutes"),
		field.Text("source_script").
			Optional().
			Nillable().
			Comment("Set only for task_type=rewrite_script"),

		field.Text("outline").
			Optional().
			Nillable(),
		field.Text("derived_outline").
			Optional().
			Nillable(),
		field.Int("target_chars").
			Optional().
			Nillable(),
		field.Int("num_quotes").
			Optional().
			Nillable(),
		field.Int("num_stories").
			Optional().
			Nillable(),
		field.String("script_name").
			Optional().
			Nillable().
			Comment("Stable token naming the audio directory"),
		field.String("seo_title").
			Optional().
			Nillable(),
		field.Bool("target_length_capped").
			Default(false).
			Comment("Set when the §4.3.1 step 6 iteration cap is reached"),

		field.Enum("status").
			Values(
				"pending",
				"processing_lock",
				"generating_outline",
				"content_generating",
				"content_ready",
				"content_failed",
				"outline_failed",
				"audio_processing_lock",
				"audio_generating",
				"audio_failed",
				"completed",
				"deleted",
			).
			Default("pending"),
		field.String("error_stage").
			Optional().
			Nillable(),
		field.String("error_message").
			Optional().
			Nillable(),
		field.Time("error_at").
			Optional().
			Nillable(),
		field.String("stuck_note").
			Optional().
			Nillable().
			Comment("Informational note left by stuck-lock recovery"),
		field.String("final_audio_path").
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

// Edges of the Generation.
func (Generation) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("chunks", ScriptChunk.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Generation.
func (Generation) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("topic_id"),
		index.Fields("status", "priority", "created_at"),
		index.Fields("language", "status"),
	}
}

func (Generation) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
