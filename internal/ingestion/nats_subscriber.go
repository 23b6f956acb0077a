package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"FairSwap/internal/command"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds raw
// commands into the core via commandChan. NATS is the primary
// high-throughput ingestion surface; each subject maps to one command
// kind.
type NATSSubscriber struct {
	js          jetstream.JetStream
	commandChan chan<- RawCommand
	consumers   []jetstream.ConsumeContext
}

// RawCommand is the received-but-untyped command from NATS, ready for
// the shell to validate and convert before sending to the core.
type RawCommand struct {
	Subject  string
	Data     []byte
	Received time.Time
	AckFunc  func() // Call to ACK the NATS message after successful processing
	NakFunc  func() // Call to NAK on failure (will be redelivered)
}

// SubjectConfig maps NATS subjects to command kinds.
type SubjectConfig struct {
	Subject      string
	Kind         command.Kind
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject configuration. Each
// command kind has its own subject so producers can scale
// independently.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "amm.pairs.create.>", Kind: command.KindCreatePair, ConsumerName: "amm-pair-create", StreamName: "AMM_PAIRS"},
		{Subject: "amm.liquidity.add.>", Kind: command.KindAddLiquidity, ConsumerName: "amm-liquidity-add", StreamName: "AMM_LIQUIDITY"},
		{Subject: "amm.liquidity.remove.>", Kind: command.KindRemoveLiquidity, ConsumerName: "amm-liquidity-remove", StreamName: "AMM_LIQUIDITY"},
		{Subject: "amm.swaps.currency.>", Kind: command.KindSwapCurrencyForAsset, ConsumerName: "amm-swap-currency", StreamName: "AMM_SWAPS"},
		{Subject: "amm.swaps.asset.>", Kind: command.KindSwapAssetForCurrency, ConsumerName: "amm-swap-asset", StreamName: "AMM_SWAPS"},
		{Subject: "amm.intents.currency.>", Kind: command.KindAddSwapCurrencyForAsset, ConsumerName: "amm-intent-currency", StreamName: "AMM_INTENTS"},
		{Subject: "amm.intents.asset.>", Kind: command.KindAddSwapAssetForCurrency, ConsumerName: "amm-intent-asset", StreamName: "AMM_INTENTS"},
		{Subject: "amm.settle.>", Kind: command.KindSettle, ConsumerName: "amm-settle", StreamName: "AMM_SETTLE"},
		{Subject: "amm.deposits.>", Kind: command.KindDeposit, ConsumerName: "amm-deposits", StreamName: "AMM_DEPOSITS"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, commandChan chan<- RawCommand) *NATSSubscriber {
	return &NATSSubscriber{
		js:          js,
		commandChan: commandChan,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawCommand{
				Subject:  msg.Subject(),
				Data:     msg.Data(),
				Received: time.Now(),
				AckFunc:  func() { msg.Ack() },
				NakFunc:  func() { msg.Nak() },
			}

			select {
			case ns.commandChan <- raw:
				// Successfully queued for processing
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		log.Printf("INFO: subscribed to %s (consumer=%s)", cfg.Subject, cfg.ConsumerName)
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't
// exist. Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      "AMM_PAIRS",
			Subjects:  []string{"amm.pairs.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "AMM_LIQUIDITY",
			Subjects:  []string{"amm.liquidity.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "AMM_SWAPS",
			Subjects:  []string{"amm.swaps.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "AMM_INTENTS",
			Subjects:  []string{"amm.intents.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "AMM_SETTLE",
			Subjects:  []string{"amm.settle.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "AMM_DEPOSITS",
			Subjects:  []string{"amm.deposits.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Printf("INFO: ensured stream %s", cfg.Name)
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	log.Println("INFO: NATS subscribers stopped")
}

// KindForSubject resolves the command kind a subject carries.
func KindForSubject(subject string, subjects []SubjectConfig) (command.Kind, bool) {
	for _, cfg := range subjects {
		prefix := cfg.Subject[:len(cfg.Subject)-1] // strip trailing '>'
		if len(subject) >= len(prefix) && subject[:len(prefix)] == prefix {
			return cfg.Kind, true
		}
	}
	return "", false
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
