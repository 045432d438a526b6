// Package queue connects the scheduler to the sync workers through an
// in-process pub/sub channel. Messages carry nothing but the user's email;
// workers reload all state from the repository.
package queue

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sourcegraph/conc"
)

const syncTopic = "sync.user"

type Queue struct {
	pubSub *gochannel.GoChannel
}

func New() *Queue {
	logger := watermill.NewSlogLogger(nil)
	return &Queue{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 256,
			},
			logger,
		),
	}
}

// Publish enqueues one sync job.
func (q *Queue) Publish(ctx context.Context, email string) error {
	msg := message.NewMessage(watermill.NewUUID(), []byte(email))
	msg.SetContext(ctx)
	return q.pubSub.Publish(syncTopic, msg)
}

// Consume runs the handler with the given concurrency until the context is
// canceled. Messages are always acked: a failed cycle is recorded as the
// user's sync error and retried by the scheduler's backoff gate, not by
// message redelivery.
func (q *Queue) Consume(ctx context.Context, workers int, handler func(ctx context.Context, email string)) error {
	messages, err := q.pubSub.Subscribe(ctx, syncTopic)
	if err != nil {
		return err
	}

	var wg conc.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Go(func() {
			for msg := range messages {
				handler(ctx, string(msg.Payload))
				msg.Ack()
			}
		})
	}
	wg.Wait()
	return nil
}

func (q *Queue) Close() error {
	return q.pubSub.Close()
}
