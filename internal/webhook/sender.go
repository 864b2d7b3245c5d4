package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/printdesk/printdesk/internal/config"
)

type Event string

const (
	EventJobQueued     Event = "job_queued"
	EventJobCancelled  Event = "job_cancelled"
	EventJobPrinted    Event = "job_printed"
	EventPrintFailed   Event = "print_failed"
	EventTerminalStale Event = "terminal_stale"
)

type Payload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// JobEventData describes a queue lifecycle change for integrators.
type JobEventData struct {
	PrintID    int64  `json:"print_id"`
	Username   string `json:"username"`
	TerminalID string `json:"terminal_id,omitempty"`
	Pages      int64  `json:"pages,omitempty"`
	Bill       int64  `json:"bill,omitempty"`
	Error      string `json:"error,omitempty"`
}

type TerminalEventData struct {
	TerminalID string `json:"terminal_id"`
	UpdateFlag int64  `json:"update_flag"`
}

type task struct {
	endpoint config.WebhookEndpoint
	payload  *Payload
	attempt  int
}

// Sender fans events out to the configured endpoints asynchronously.
// Delivery is at-most-retryCount-times and never blocks the caller: when
// the internal queue is full the event is dropped with a log line.
type Sender struct {
	endpoints  []config.WebhookEndpoint
	httpClient *http.Client
	retryCount int
	retryDelay time.Duration
	queue      chan *task
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

func NewSender(cfg config.WebhooksConfig) *Sender {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	s := &Sender{
		endpoints: cfg.Endpoints,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryCount: cfg.RetryCount,
		retryDelay: cfg.RetryDelay,
		queue:      make(chan *task, cfg.QueueSize),
		stopCh:     make(chan struct{}),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	return s
}

func (s *Sender) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Send enqueues event for every endpoint subscribed to it.
func (s *Sender) Send(event Event, data interface{}) {
	payload := &Payload{
		Event:     string(event),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	for _, ep := range s.endpoints {
		if !subscribed(ep, event) {
			continue
		}
		select {
		case s.queue <- &task{endpoint: ep, payload: payload}:
		default:
			log.Printf("webhook: queue full, dropping %s for %s", event, ep.Name)
		}
	}
}

func subscribed(ep config.WebhookEndpoint, event Event) bool {
	if len(ep.Events) == 0 {
		return true
	}
	for _, e := range ep.Events {
		if e == string(event) {
			return true
		}
	}
	return false
}

func (s *Sender) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			s.deliver(t)
		}
	}
}

func (s *Sender) deliver(t *task) {
	body, err := json.Marshal(t.payload)
	if err != nil {
		log.Printf("webhook: failed to marshal payload: %v", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, t.endpoint.URL, bytes.NewReader(body))
	if err != nil {
		log.Printf("webhook: failed to build request for %s: %v", t.endpoint.Name, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if t.endpoint.Secret != "" {
		req.Header.Set("X-Printdesk-Signature", sign(body, t.endpoint.Secret))
	}

	resp, err := s.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return
		}
		log.Printf("webhook: %s returned %d for %s", t.endpoint.Name, resp.StatusCode, t.payload.Event)
	} else {
		log.Printf("webhook: delivery to %s failed: %v", t.endpoint.Name, err)
	}

	if t.attempt+1 >= s.retryCount {
		log.Printf("webhook: giving up on %s for %s after %d attempts", t.payload.Event, t.endpoint.Name, t.attempt+1)
		return
	}

	t.attempt++
	time.AfterFunc(s.retryDelay, func() {
		select {
		case s.queue <- t:
		case <-s.stopCh:
		default:
		}
	})
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
