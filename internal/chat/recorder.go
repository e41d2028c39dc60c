package chat

import (
	"context"

	"github.com/suPer8Hu/providentia/internal/store/rabbitmq"
)

// Recorder persists a completed interaction. Called only after a
// successful response exists; failures are the caller's to swallow.
type Recorder interface {
	Record(ctx context.Context, in *Interaction) error
}

// DBRecorder writes the row directly.
type DBRecorder struct {
	repo *Repo
}

func NewDBRecorder(repo *Repo) *DBRecorder {
	return &DBRecorder{repo: repo}
}

func (r *DBRecorder) Record(ctx context.Context, in *Interaction) error {
	return r.repo.InsertInteraction(ctx, in)
}

// QueueRecorder hands the interaction to the audit queue; the worker
// process does the insert. Keeps DB latency out of the request path and
// survives short DB outages via the retry queue.
type QueueRecorder struct {
	pub *rabbitmq.Publisher
}

func NewQueueRecorder(pub *rabbitmq.Publisher) *QueueRecorder {
	return &QueueRecorder{pub: pub}
}

func (r *QueueRecorder) Record(ctx context.Context, in *Interaction) error {
	return r.pub.PublishInteraction(ctx, rabbitmq.InteractionMessage{
		InteractionID: in.InteractionID,
		UserID:        in.UserID,
		Question:      in.Question,
		Answer:        in.Answer,
		SourceContext: in.SourceContext,
		CreatedAt:     in.CreatedAt,
	})
}
