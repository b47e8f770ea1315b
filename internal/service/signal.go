package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"

	doci "github.com/fronsciers/doci-gateway"
	"github.com/fronsciers/doci-gateway/internal/domain"
)

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, channel string, event doci.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channel, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime streams gateway events to output, filtered by the namespace
// prefixes most recently received on input. An empty filter forwards
// everything. Returns when ctx is cancelled or input closes.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- doci.Event) {
	pubsub := s.rdb.Subscribe(ctx, domain.EventChannel)
	defer pubsub.Close()

	messages := pubsub.Channel()

	var prefixes []string
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-input:
			if !ok {
				return
			}
			prefixes = update
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event doci.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			if !matchesPrefixes(prefixes, event.Code) {
				continue
			}

			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func matchesPrefixes(prefixes []string, code string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(code, prefix+"/") {
			return true
		}
	}
	return false
}
