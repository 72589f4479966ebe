package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/fusionguard/recommender/internal/config"
	"github.com/fusionguard/recommender/internal/logging"
	"github.com/fusionguard/recommender/internal/metrics"
	"github.com/fusionguard/recommender/internal/recommend"
)

const (
	storeTimeout = 5 * time.Second
	drainTimeout = 10 * time.Second
)

// BusRequest is the payload accepted on the requests subject.
type BusRequest struct {
	RequestID        string   `json:"request_id,omitempty"`
	ItemID           string   `json:"item_id"`
	CartValue        float64  `json:"cart_value"`
	LastPurchaseDays *float64 `json:"last_purchase_days,omitempty"`
}

// BusResult is published on the results subject and sent as the reply.
type BusResult struct {
	RequestID  string                     `json:"request_id"`
	ItemID     string                     `json:"item_id,omitempty"`
	Messages   []string                   `json:"messages"`
	Products   []recommend.Recommendation `json:"products"`
	RulesFired []recommend.RuleID         `json:"rules_fired"`
	Lines      []string                   `json:"lines"`
	Error      string                     `json:"error,omitempty"`
}

type Recommender interface {
	Infer(req recommend.Request) recommend.Result
}

type ResultStore interface {
	StoreResult(ctx context.Context, requestID string, req recommend.Request, res recommend.Result) error
}

// publisher is the part of *nats.Conn the message handler needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

type Processor struct {
	cfg         config.NATSConfig
	nc          *nats.Conn
	closed      chan struct{}
	pub         publisher
	recommender Recommender
	store       ResultStore
	log         zerolog.Logger
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

func New(cfg config.NATSConfig, recommender Recommender, store ResultStore) (*Processor, error) {
	closed := make(chan struct{})
	nc, err := nats.Connect(cfg.URL,
		nats.Name("recommender"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DrainTimeout(drainTimeout),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	p := newProcessor(cfg, nc, recommender, store)
	p.nc = nc
	p.closed = closed
	return p, nil
}

func newProcessor(cfg config.NATSConfig, pub publisher, recommender Recommender, store ResultStore) *Processor {
	return &Processor{
		cfg:         cfg,
		pub:         pub,
		recommender: recommender,
		store:       store,
		log:         logging.With("processor"),
	}
}

func (p *Processor) Close() {
	p.closeOnce.Do(func() {
		// Drain lets in-flight handlers finish before storage writes are awaited.
		if p.nc != nil && !p.nc.IsClosed() {
			if err := p.nc.Drain(); err != nil {
				p.log.Warn().Err(err).Msg("drain nats")
				p.nc.Close()
			}
			<-p.closed
		}

		// Wait for pending storage operations
		p.wg.Wait()
	})
}

func (p *Processor) Start(ctx context.Context) error {
	_, err := p.nc.QueueSubscribe(p.cfg.SubjectRequests, p.cfg.QueueGroup, p.handleMsg)
	if err != nil {
		return err
	}

	if err := p.nc.Flush(); err != nil {
		return err
	}

	p.log.Info().
		Str("subject", p.cfg.SubjectRequests).
		Str("queue", p.cfg.QueueGroup).
		Msg("listening for recommendation requests")

	go func() {
		<-ctx.Done()
		p.Close()
	}()

	return nil
}

func (p *Processor) handleMsg(msg *nats.Msg) {
	result, ok := p.process(msg.Data)
	if !ok {
		metrics.BusMessages.WithLabelValues("invalid").Inc()
	} else {
		metrics.BusMessages.WithLabelValues("processed").Inc()
	}

	payload, err := json.Marshal(result)
	if err != nil {
		p.log.Error().Err(err).Msg("encode result")
		return
	}

	if msg.Reply != "" {
		if err := p.pub.Publish(msg.Reply, payload); err != nil {
			p.log.Warn().Err(err).Str("request_id", result.RequestID).Msg("reply")
		}
	}
	if ok && p.cfg.SubjectResults != "" {
		if err := p.pub.Publish(p.cfg.SubjectResults, payload); err != nil {
			p.log.Warn().Err(err).Str("request_id", result.RequestID).Msg("publish result")
		}
	}
}

// process decodes and evaluates one request. The boolean is false when the
// payload was rejected; the returned result then carries the error text.
func (p *Processor) process(data []byte) (BusResult, bool) {
	var in BusRequest
	if err := json.Unmarshal(data, &in); err != nil {
		p.log.Warn().Err(err).Msg("decode recommendation request")
		return BusResult{RequestID: in.RequestID, Error: "invalid payload"}, false
	}

	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}
	in.ItemID = recommend.NormalizeItemID(in.ItemID)
	if in.ItemID == "" {
		return BusResult{RequestID: in.RequestID, Error: "item_id is required"}, false
	}

	req := recommend.Request{CurrentItemID: in.ItemID, CartValue: in.CartValue}
	if in.LastPurchaseDays != nil {
		req.History = &recommend.History{LastPurchaseDays: *in.LastPurchaseDays}
	}

	res := p.recommender.Infer(req)
	p.storeAsync(in.RequestID, req, res)

	out := BusResult{
		RequestID:  in.RequestID,
		ItemID:     in.ItemID,
		Messages:   res.Messages,
		Products:   res.Products,
		RulesFired: res.Fired,
		Lines:      res.Lines(),
	}
	if out.Messages == nil {
		out.Messages = []string{}
	}
	if out.Products == nil {
		out.Products = []recommend.Recommendation{}
	}
	if out.RulesFired == nil {
		out.RulesFired = []recommend.RuleID{}
	}
	return out, true
}

func (p *Processor) storeAsync(requestID string, req recommend.Request, res recommend.Result) {
	if p.store == nil {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if err := p.store.StoreResult(ctx, requestID, req, res); err != nil {
			p.log.Warn().Err(err).Str("request_id", requestID).Msg("store recommendation")
		}
	}()
}
