package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
)

const anomalyChannel = "fuel:anomalies"

// LiveStore mirrors per-vehicle live state into redis for downstream
// dashboards and publishes anomalies on a pub/sub channel. All writes are
// best-effort; the record store stays the source of truth.
type LiveStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLiveStore returns a redis-backed live mirror.
func NewLiveStore(client *redis.Client, ttl time.Duration) *LiveStore {
	return &LiveStore{client: client, ttl: ttl}
}

func stateKey(plate string) string {
	return fmt.Sprintf("fuel:vehicle:%s:state", plate)
}

func ongoingKey(plate string) string {
	return fmt.Sprintf("fuel:vehicle:%s:ongoing", plate)
}

// UpdateVehicleState writes the latest reading for a plate as a hash with TTL.
func (s *LiveStore) UpdateVehicleState(ctx context.Context, reading *models.TelemetryReading, sessionID string) error {
	fields := map[string]interface{}{
		"plate":         reading.Plate,
		"device_time":   reading.DeviceTime.Unix(),
		"received_time": reading.ReceivedTime.Unix(),
		"fuel_level":    reading.FuelLevel,
		"fuel_volume":   reading.FuelVolume,
		"fuel_pct":      reading.FuelPercentage,
		"lat":           reading.Latitude,
		"lng":           reading.Longitude,
		"status":        reading.StatusText,
		"signal":        string(reading.Signal),
		"session_id":    sessionID,
	}

	key := stateKey(reading.Plate)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis state update: %w", err)
	}
	return nil
}

// CacheOngoing stores the open session for a plate so a restarted process
// can warm up without a full store scan.
func (s *LiveStore) CacheOngoing(ctx context.Context, session *models.OperatingSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, ongoingKey(session.Plate), data, 0).Err()
}

// DropOngoing removes the cached open session for a plate.
func (s *LiveStore) DropOngoing(ctx context.Context, plate string) error {
	return s.client.Del(ctx, ongoingKey(plate)).Err()
}

// PublishAnomaly pushes a newly created anomaly to subscribers.
func (s *LiveStore) PublishAnomaly(ctx context.Context, anomaly *models.FuelAnomaly) error {
	payload, err := json.Marshal(anomaly)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, anomalyChannel, payload).Err()
}
