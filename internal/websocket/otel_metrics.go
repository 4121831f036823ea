package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds the WebSocket instruments. A nil *OTelMetrics records
// nothing.
type OTelMetrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	messagesTotal      metric.Int64Counter
	messageBytes       metric.Int64Counter
	droppedMessages    metric.Int64Counter
	clientCount        metric.Int64Gauge
}

// NewOTelMetrics registers the WebSocket instruments on meter
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	if m.connectionsTotal, err = meter.Int64Counter("websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections")); err != nil {
		return nil, err
	}
	if m.connectionsActive, err = meter.Int64UpDownCounter("websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections")); err != nil {
		return nil, err
	}
	if m.connectionDuration, err = meter.Float64Histogram("websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.messagesTotal, err = meter.Int64Counter("websocket_messages_total",
		metric.WithDescription("Total number of WebSocket messages")); err != nil {
		return nil, err
	}
	if m.messageBytes, err = meter.Int64Counter("websocket_message_bytes_total",
		metric.WithDescription("Total bytes of WebSocket messages"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.droppedMessages, err = meter.Int64Counter("websocket_dropped_messages_total",
		metric.WithDescription("Messages dropped because a buffer was full")); err != nil {
		return nil, err
	}
	if m.clientCount, err = meter.Int64Gauge("websocket_client_count",
		metric.WithDescription("Current number of connected WebSocket clients")); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordConnection records a new client
func (m *OTelMetrics) RecordConnection(ctx context.Context, clients int) {
	if m == nil {
		return
	}
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
	m.clientCount.Record(ctx, int64(clients))
}

// RecordDisconnection records a client leaving after duration
func (m *OTelMetrics) RecordDisconnection(ctx context.Context, duration time.Duration, reason string, clients int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("disconnect_reason", reason))
	m.connectionsActive.Add(ctx, -1, attrs)
	m.connectionDuration.Record(ctx, duration.Seconds(), attrs)
	m.clientCount.Record(ctx, int64(clients))
}

// RecordMessage records one message in direction "inbound" or "outbound"
func (m *OTelMetrics) RecordMessage(ctx context.Context, direction string, size int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("direction", direction))
	m.messagesTotal.Add(ctx, 1, attrs)
	m.messageBytes.Add(ctx, int64(size), attrs)
}

// RecordDroppedMessage records a message that was not delivered
func (m *OTelMetrics) RecordDroppedMessage(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.droppedMessages.Add(ctx, 1, metric.WithAttributes(attribute.String("drop_reason", reason)))
}
