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

// Topic holds the schema definition for the Topic entity.
type Topic struct {
	ent.Schema
}

// Fields of the Topic.
func (Topic) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("language").
			Comment("Display language, e.g. 'english', 'vietnamese'"),
		field.String("title"),
		field.String("translated_title").
			Optional().
			Nillable(),
		field.Enum("status").
			Values("suggested", "generation_requested", "generation_pending", "generation_reset", "deleted").
			Default("suggested"),
		field.String("generation_ref").
			Optional().
			Nillable().
			Comment("Linked Generation id, if any"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the Topic.
func (Topic) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("generations", Generation.Type).
			Annotations(entsql.OnDelete(entsql.SetNull)),
	}
}

// Indexes of the Topic.
func (Topic) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("title", "language").
			Unique(),
		index.Fields("status"),
		index.Fields("generation_ref"),
	}
}

func (Topic) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
