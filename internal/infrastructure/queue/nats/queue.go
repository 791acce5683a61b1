// Package nats carries crawled content batches from the crawler to the
// indexing worker over core NATS.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
	"github.com/oncare-clinic/rag-chatbot/internal/infrastructure/resilience"
)

type Queue struct {
	conn    *nats.Conn
	subject string
	exec    *resilience.Executor
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	Executor       *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}

	conn, err := nats.Connect(
		url,
		nats.Name("rag-chatbot"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:    conn,
		subject: subject,
		exec:    options.Executor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishIngestBatch(ctx context.Context, batch domain.IngestBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal ingest batch: %w", err)
	}

	publish := func(context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.exec != nil {
		err = q.exec.Run(ctx, "nats.publish", transientNATSError, publish)
	} else {
		err = publish(ctx)
	}
	if err != nil && transientNATSError(err) {
		return domain.WrapError(domain.ErrTemporary, "publish ingest batch", err)
	}
	return err
}

// SubscribeIngestBatch consumes batches on a shared worker queue group and
// blocks until ctx is done. Malformed payloads are dropped with a log line
// so one bad message cannot wedge the subscription.
func (q *Queue) SubscribeIngestBatch(ctx context.Context, handler func(context.Context, domain.IngestBatch) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, "ingest-workers", func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}

		var batch domain.IngestBatch
		if err := json.Unmarshal(msg.Data, &batch); err != nil {
			slog.Error("ingest_batch_malformed", "error", err, "bytes", len(msg.Data))
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, batch); err != nil {
			slog.Error("ingest_batch_failed", "table", batch.Table, "items", len(batch.Items), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func transientNATSError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) ||
		resilience.IsCircuitOpen(err)
}
