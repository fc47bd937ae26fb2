package clientmqtt

import (
	"encoding/json"

	"discoagent/internal/logger"
)

// Agent phases reported on the status topic.
const (
	StatusDiscovering = "discovering"
	StatusRegistering = "registering"
	StatusConnected   = "connected"
	StatusStreaming   = "streaming"
	StatusStopped     = "stopped"
)

// StatusReporter publishes agent phase changes. Failures are logged only.
type StatusReporter struct {
	log        logger.Logger
	pub        Publisher
	topic      string
	controller string
}

// NewStatusReporter constructor. A nil pub gives a reporter that only logs.
func NewStatusReporter(log logger.Logger, pub Publisher, controller, topic string) *StatusReporter {
	return &StatusReporter{log: log, pub: pub, topic: topic, controller: controller}
}

// Report publishes status with an optional detail.
func (r *StatusReporter) Report(status, detail string) {
	log := r.log.With(logger.Fields{"module": "mqtt"})
	log.Debugf("status %s %s", status, detail)
	if r.pub == nil {
		return
	}
	msg, err := json.Marshal(StatusPayload{Controller: r.controller, Status: status, Detail: detail})
	if err != nil {
		log.Errorf("status payload: %v", err)
		return
	}
	if err := r.pub.Publish(r.topic, msg); err != nil {
		log.Errorf("failed to publish status: %v", err)
	}
}
