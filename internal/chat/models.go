package chat

import (
	"encoding/json"
	"time"

	"github.com/suPer8Hu/providentia/internal/rag"
)

// Interaction is the persisted record of one completed exchange. Rows
// are append-only: the pipeline inserts them after generation succeeds
// and never updates or deletes them.
type Interaction struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	InteractionID string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"interaction_id"`
	UserID        uint64    `gorm:"not null;index:idx_interactions_user_created,priority:1" json:"-"`
	Question      string    `gorm:"type:text;not null" json:"question"`
	Answer        string    `gorm:"type:text;not null" json:"answer"`
	SourceContext string    `gorm:"type:text" json:"-"`
	CreatedAt     time.Time `gorm:"index:idx_interactions_user_created,priority:2" json:"created_at"`
}

func (Interaction) TableName() string { return "chat_interactions" }

// SetContext serializes the passages in their retrieval-rank order.
func (in *Interaction) SetContext(passages []rag.Passage) error {
	if passages == nil {
		passages = []rag.Passage{}
	}
	b, err := json.Marshal(passages)
	if err != nil {
		return err
	}
	in.SourceContext = string(b)
	return nil
}

func (in *Interaction) Context() ([]rag.Passage, error) {
	if in.SourceContext == "" {
		return []rag.Passage{}, nil
	}
	var passages []rag.Passage
	if err := json.Unmarshal([]byte(in.SourceContext), &passages); err != nil {
		return nil, err
	}
	return passages, nil
}
