// Package feed consumes the push-based order snapshots for one truck.
// Every emission replaces the full set of raw records; there are no
// deltas, and an empty array is a valid "no orders" state.
package feed

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"foodtruck-kds/internal/common/logger"
	"foodtruck-kds/internal/common/mq"
	"foodtruck-kds/internal/domain"
)

// Snapshot is one full-set emission.
type Snapshot struct {
	TruckID      string               `json:"truck_id"`
	Orders       []domain.OrderRecord `json:"orders"`
	ReceivedAtMs int64                `json:"-"`
}

type Subscriber struct {
	client  *mq.Client
	truckID string
	log     *logger.Logger
}

func NewSubscriber(client *mq.Client, truckID string, log *logger.Logger) *Subscriber {
	return &Subscriber{client: client, truckID: truckID, log: log}
}

// Subscribe binds an exclusive queue to the feed exchange for this truck
// and returns a channel of snapshots. The channel closes when the
// consumer stops (ctx canceled or broker channel closed).
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	ch, err := s.client.Channel()
	if err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	routingKey := "feed." + s.truckID
	if err := ch.QueueBind(q.Name, routingKey, mq.FeedExchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	closeCh := ch.NotifyClose(make(chan *amqp.Error, 1))
	out := make(chan Snapshot)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-closeCh:
				if e != nil {
					s.log.Error("feed_channel_closed", e, map[string]any{"truck_id": s.truckID})
				}
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				snap, err := decode(d.Body)
				if err != nil {
					// Unreadable emission: drop it, the next full
					// snapshot supersedes it anyway.
					s.log.Warn("feed_decode_failed", err, map[string]any{"truck_id": s.truckID})
					_ = d.Ack(false)
					continue
				}
				snap.ReceivedAtMs = time.Now().UnixMilli()
				_ = d.Ack(false)
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	s.log.Info("feed_subscribed", map[string]any{"truck_id": s.truckID, "queue": q.Name})
	return out, nil
}

func decode(body []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
