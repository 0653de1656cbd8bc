// Package notify pushes crash notifications to a ZeroMQ consumer.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"
	"go.uber.org/zap"

	"statsdb/models"
)

// CrashNotifier sends crash notifications to the triage service
type CrashNotifier struct {
	mu sync.Mutex

	zmqSocket *zmq4.Socket

	zmqEndpoint string

	isConnected bool

	log *zap.Logger
}

// NewCrashNotifier connects a PUSH socket to zmqEndpoint. An empty endpoint
// gives a disconnected notifier that only logs.
func NewCrashNotifier(zmqEndpoint string, log *zap.Logger) (*CrashNotifier, error) {

	if log == nil {
		log = zap.NewNop()
	}

	if zmqEndpoint == "" {
		return &CrashNotifier{log: log}, nil
	}

	socket, err := zmq4.NewSocket(zmq4.PUSH)

	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ socket: %w", err)
	}

	// pending notifications are dropped on shutdown
	if err := socket.SetLinger(0); err != nil {

		socket.Close()

		return nil, fmt.Errorf("failed to configure ZMQ socket: %w", err)
	}

	if err := socket.Connect(zmqEndpoint); err != nil {

		socket.Close()

		return nil, fmt.Errorf("failed to connect to ZMQ endpoint %s: %w", zmqEndpoint, err)
	}

	log.Info("connected to crash notification endpoint", zap.String("endpoint", zmqEndpoint))

	return &CrashNotifier{

		zmqSocket: socket,

		zmqEndpoint: zmqEndpoint,

		isConnected: true,

		log: log,
	}, nil
}

// Close closes the ZMQ socket
func (n *CrashNotifier) Close() {

	n.mu.Lock()

	defer n.mu.Unlock()

	if n.zmqSocket != nil && n.isConnected {

		n.zmqSocket.Close()

		n.isConnected = false
	}
}

type CrashMessage struct {
	CrashID uint `json:"crash_id"`

	MachineConfigID uint `json:"machine_config_id"`

	Product string `json:"product"`

	Version string `json:"version"`

	OS string `json:"os"`

	LogType string `json:"log_type"`

	RecordedAt time.Time `json:"recorded_at"`
}

// NotifyCrash sends a notification without waiting for a consumer. When no
// consumer is ready the message is dropped and an error returned.
func (n *CrashNotifier) NotifyCrash(ctx context.Context, mc *models.MachineConfig, crash *models.Crash) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()

	defer n.mu.Unlock()

	if !n.isConnected || n.zmqSocket == nil {

		n.log.Debug("ZMQ not connected, skipping crash notification", zap.Uint("crash_id", crash.ID))

		return nil
	}

	msg := CrashMessage{

		CrashID: crash.ID,

		MachineConfigID: mc.ID,

		Product: mc.Product,

		Version: mc.Version,

		OS: mc.OS,

		LogType: crash.LogType,

		RecordedAt: crash.RecordedAt,
	}

	jsonData, err := json.Marshal(msg)

	if err != nil {
		return fmt.Errorf("failed to marshal crash message: %w", err)
	}

	if _, err := n.zmqSocket.SendBytes(jsonData, zmq4.DONTWAIT); err != nil {
		return fmt.Errorf("failed to send crash message: %w", err)
	}

	n.log.Debug("sent crash notification", zap.Uint("crash_id", crash.ID))

	return nil
}
