package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"dragonfly-id/internal/model"
)

// SightingStore is the remote database side of the sync.
type SightingStore interface {
	ExistsByEventID(eventID string) (bool, error)
	Create(sighting *model.Sighting) error
}

// SightingSyncWorker mirrors published sightings into the remote database.
type SightingSyncWorker struct {
	conn      *amqp.Connection
	store     SightingStore
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSightingSyncWorker(conn *amqp.Connection, store SightingStore, queueName string) *SightingSyncWorker {
	return &SightingSyncWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
	}
}

func (w *SightingSyncWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if w.handle(d.Body) {
					_ = d.Ack(false)
				} else {
					_ = d.Nack(false, false)
				}
			}
		}
	}()

	return nil
}

// handle persists one delivery body and reports whether it should be acked.
// Already-synced sightings are acked without a second insert.
func (w *SightingSyncWorker) handle(body []byte) bool {
	var sighting model.Sighting
	if err := json.Unmarshal(body, &sighting); err != nil {
		log.Printf("worker decode sighting failed: %v", err)
		return false
	}
	if sighting.EventID == "" {
		log.Printf("worker drop sighting without event id")
		return false
	}

	exists, err := w.store.ExistsByEventID(sighting.EventID)
	if err != nil {
		log.Printf("worker check sighting %s failed: %v", sighting.EventID, err)
		return false
	}
	if exists {
		return true
	}

	sighting.ID = 0
	if err := w.store.Create(&sighting); err != nil {
		log.Printf("worker persist sighting %s failed: %v", sighting.EventID, err)
		return false
	}
	return true
}

func (w *SightingSyncWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
