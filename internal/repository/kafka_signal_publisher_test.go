package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"MarketSignal/internal/domain/models"
	pkgkafka "MarketSignal/pkg/kafka"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaSignalPublisher_KeysBySymbol(t *testing.T) {
	w := &captureWriter{}
	pub := NewKafkaSignalPublisher(pkgkafka.NewProducerWithWriter(w, "gzip"), "signals")

	ev := &models.SignalEvent{
		Symbol:      "BTC",
		Pair:        "BTCUSDT",
		Interval:    "1h",
		GeneratedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Signal:      models.SignalBuy,
		Score:       2.5,
		Confidence:  0.5,
	}
	require.NoError(t, pub.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "signals", w.msgs[0].Topic)
	assert.Equal(t, []byte("BTC"), w.msgs[0].Key)

	var got models.SignalEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, models.SignalBuy, got.Signal)
	assert.Equal(t, 2.5, got.Score)
}

func TestKafkaSignalPublisher_Errors(t *testing.T) {
	w := &captureWriter{err: errors.New("broker down")}
	pub := NewKafkaSignalPublisher(pkgkafka.NewProducerWithWriter(w, "gzip"), "signals")

	err := pub.Publish(context.Background(), &models.SignalEvent{Symbol: "ETH"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	assert.Error(t, pub.Publish(context.Background(), nil))
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), nil))
}
