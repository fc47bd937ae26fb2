// Package registrar announces the agent to the master over HTTP.
package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"discoagent/internal/config"
	"discoagent/internal/disco"
	"discoagent/internal/logger"
	"github.com/hashicorp/go-cleanhttp"
)

// maxBodyLog caps how much of a response body is logged per attempt.
const maxBodyLog = 1024

// RegistrationRejected is a non-200 answer from the master.
type RegistrationRejected struct {
	StatusCode int
	Body       string
}

func (e *RegistrationRejected) Error() string {
	return fmt.Sprintf("registration rejected with status %d: %s", e.StatusCode, e.Body)
}

// Registrar posts the hardware descriptor until the master accepts it.
type Registrar struct {
	log      logger.Logger
	client   *http.Client
	url      string
	interval time.Duration
}

// New creates a Registrar. If client is nil a pooled client with cfg.Timeout
// is used.
func New(log logger.Logger, cfg config.RegisterConf, client *http.Client) *Registrar {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
		client.Timeout = cfg.Timeout.Duration
	}
	return &Registrar{
		log:      log,
		client:   client,
		url:      cfg.URL(),
		interval: cfg.Interval.Duration,
	}
}

// Register retries forever at a fixed interval until the master answers 200.
// It only returns an error when ctx is done or the descriptor cannot be encoded.
func (r *Registrar) Register(ctx context.Context, desc disco.HardwareDescriptor) error {
	body, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("failed to encode descriptor: %w", err)
	}
	log := r.log.With(logger.Fields{"module": "registrar", "url": r.url})

	for attempt := 1; ; attempt++ {
		err := r.post(ctx, body)
		if err == nil {
			log.Infof("registered as %s after %d attempt(s)", desc.ControllerID, attempt)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf("attempt %d: %v, retrying in %s", attempt, err, r.interval)

		t := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (r *Registrar) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(io.LimitReader(res.Body, maxBodyLog))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	r.log.With(logger.Fields{"module": "registrar"}).Infof("master answered %d: %s", res.StatusCode, resBody)

	if res.StatusCode != http.StatusOK {
		return &RegistrationRejected{StatusCode: res.StatusCode, Body: string(resBody)}
	}
	return nil
}
