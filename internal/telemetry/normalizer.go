package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
)

// ErrMissingPlate marks a frame with no parsable vehicle identifier. Such
// frames are dropped by the transport, logged, never propagated.
var ErrMissingPlate = errors.New("telemetry: frame has no plate")

// RawFrame is the wire shape of one telemetry frame as delivered by the
// transports. Fuel fields are pointers so an absent reading is
// distinguishable from a zero one.
type RawFrame struct {
	Plate          string   `json:"plate"`
	DeviceID       string   `json:"device_id"`
	Status         string   `json:"status"`
	FuelLevel      *float64 `json:"fuel_level"`
	FuelVolume     *float64 `json:"fuel_volume"`
	FuelPercentage *float64 `json:"fuel_percentage"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	TimestampMs    int64    `json:"timestamp_ms"`
	DeviceTime     string   `json:"device_time"`
}

// Normalizer turns raw frames into canonical readings and classifies the
// engine-status signal.
type Normalizer struct {
	classifier *StatusClassifier
}

// NewNormalizer builds a normalizer around the given classifier.
func NewNormalizer(classifier *StatusClassifier) *Normalizer {
	return &Normalizer{classifier: classifier}
}

// ParseFrame decodes a raw JSON frame.
func ParseFrame(data []byte) (*RawFrame, error) {
	var frame RawFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("telemetry: decode frame: %w", err)
	}
	return &frame, nil
}

// Normalize converts a frame into a TelemetryReading. A frame without a
// plate fails with ErrMissingPlate. A frame without fuel fields is still a
// valid reading (for status purposes) with HasFuel=false.
func (n *Normalizer) Normalize(frame *RawFrame, receivedAt time.Time) (*models.TelemetryReading, error) {
	plate := strings.TrimSpace(frame.Plate)
	if plate == "" {
		plate = strings.TrimSpace(frame.DeviceID)
	}
	if plate == "" {
		return nil, ErrMissingPlate
	}

	reading := &models.TelemetryReading{
		Plate:        strings.ToUpper(plate),
		DeviceTime:   n.deviceTime(frame, receivedAt),
		ReceivedTime: receivedAt.UTC(),
		Latitude:     frame.Latitude,
		Longitude:    frame.Longitude,
		StatusText:   frame.Status,
		Signal:       n.classifier.Classify(frame.Status),
	}

	if frame.FuelLevel != nil {
		reading.FuelLevel = *frame.FuelLevel
		reading.HasFuel = true
	}
	if frame.FuelVolume != nil {
		reading.FuelVolume = *frame.FuelVolume
		reading.HasFuel = true
	}
	if frame.FuelPercentage != nil {
		reading.FuelPercentage = *frame.FuelPercentage
	}

	return reading, nil
}

// deviceTime prefers the millisecond epoch field, then the RFC3339 field,
// then falls back to arrival time.
func (n *Normalizer) deviceTime(frame *RawFrame, receivedAt time.Time) time.Time {
	if frame.TimestampMs > 0 {
		return time.UnixMilli(frame.TimestampMs).UTC()
	}
	if frame.DeviceTime != "" {
		if t, err := time.Parse(time.RFC3339, frame.DeviceTime); err == nil {
			return t.UTC()
		}
	}
	return receivedAt.UTC()
}
