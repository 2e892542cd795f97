package brokers

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/gate"
	"rul-pipeline/internal/pipeline"
	"rul-pipeline/internal/pipeline/stages"
)

// Verdict is the published outcome of the metrics gate.
type Verdict struct {
	RunID     string                 `json:"run_id"`
	Passed    bool                   `json:"passed"`
	Policy    gate.Policy            `json:"policy"`
	Metrics   map[string]gate.Record `json:"metrics"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewVerdict builds a verdict from a gate report.
func NewVerdict(runID string, report *gate.Report) *Verdict {
	return &Verdict{
		RunID:     runID,
		Passed:    report.Passed(),
		Policy:    report.Policy,
		Metrics:   report.Metrics,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher sends verdicts through a broker.
type Publisher struct {
	broker Broker
	topic  string
	logger logging.Logger
}

// NewPublisher creates a verdict publisher.
func NewPublisher(broker Broker, topic string, logger logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Publisher{broker: broker, topic: topic, logger: logger}
}

// Publish sends one verdict.
func (p *Publisher) Publish(ctx context.Context, v *Verdict) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errors.InternalError("failed to encode verdict", err)
	}

	msg := &Message{
		Topic: p.topic,
		Headers: map[string]string{
			"run_id":       v.RunID,
			"passed":       strconv.FormatBool(v.Passed),
			"content_type": "application/json",
		},
		Body:      body,
		Timestamp: v.Timestamp,
		MessageID: uuid.NewString(),
	}
	if err := p.broker.Publish(ctx, msg); err != nil {
		return err
	}

	p.logger.Info("Verdict published",
		logging.String("broker", p.broker.Name()),
		logging.String("topic", p.topic),
		logging.String("run_id", v.RunID),
		logging.Bool("passed", v.Passed),
	)
	return nil
}

// StageFinished implements pipeline.Observer.
func (p *Publisher) StageFinished(*pipeline.RunContext, pipeline.StageResult) {}

// RunFinished publishes the verdict of a run that reached the gate. Publish
// failures are logged and never fail the run.
func (p *Publisher) RunFinished(rc *pipeline.RunContext, _ *pipeline.Result) {
	v, ok := rc.Get(stages.ValueGateReport)
	if !ok {
		return
	}
	report, ok := v.(*gate.Report)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Publish(ctx, NewVerdict(rc.RunID, report)); err != nil {
		p.logger.Error("Failed to publish verdict", err,
			logging.String("broker", p.broker.Name()),
			logging.String("run_id", rc.RunID),
		)
	}
}
