package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// DefaultRelayChannel – канал Redis для событий комнат
const DefaultRelayChannel = "sendix:rooms"

// relayEnvelope – событие комнаты с идентификатором экземпляра-отправителя
type relayEnvelope struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Event  json.RawMessage `json:"event"`
}

// RedisRelay доставляет события комнат между экземплярами через Redis Pub/Sub
type RedisRelay struct {
	client  *redis.Client
	manager *Manager
	channel string
	origin  string
}

// NewRedisClient создает клиента Redis по адресу из конфигурации
func NewRedisClient(addr string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})
	log.Println("🔧 Redis initialized with address:", addr)
	return client
}

// NewRedisRelay создает пересылку и подключает её к менеджеру
func NewRedisRelay(client *redis.Client, manager *Manager, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	r := &RedisRelay{
		client:  client,
		manager: manager,
		channel: channel,
		origin:  uuid.NewString(),
	}
	manager.SetRelay(r)
	return r
}

func (r *RedisRelay) encode(room string, payload []byte) ([]byte, error) {
	return json.Marshal(relayEnvelope{Origin: r.origin, Room: room, Event: payload})
}

// Forward публикует событие для остальных экземпляров; ошибки только логируются
func (r *RedisRelay) Forward(room string, payload []byte) {
	data, err := r.encode(room, payload)
	if err != nil {
		log.Printf("Ошибка сериализации события для Redis: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		log.Printf("Ошибка публикации события в Redis: %v", err)
	}
}

// Run слушает канал до отмены ctx и доставляет чужие события в локальные комнаты
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Printf("📡 Подписка на канал Redis %s", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle([]byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) handle(data []byte) {
	var env relayEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("Некорректное событие из Redis: %v", err)
		return
	}
	if env.Origin == r.origin || env.Room == "" {
		return
	}
	r.manager.Deliver(env.Room, env.Event)
}
