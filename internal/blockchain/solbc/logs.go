package solbc

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"
)

// LogNotification is one transaction that mentioned the watched program.
type LogNotification struct {
	Signature solana.Signature
	Failed    bool
	Logs      []string
}

// LogStream subscribes to logs mentioning a program over websocket.
type LogStream struct {
	wsURL      string
	commitment rpc.CommitmentType
	logger     *zap.Logger
}

func NewLogStream(wsURL string, commitment rpc.CommitmentType, logger *zap.Logger) *LogStream {
	return &LogStream{wsURL: wsURL, commitment: commitment, logger: logger.Named("log-stream")}
}

// logReceiver is the part of ws.LogSubscription the stream reads from.
type logReceiver interface {
	Recv() (*ws.LogResult, error)
}

// Run delivers notifications to handle until ctx is cancelled or the
// subscription fails. A handler error stops the stream. Cancellation is not an
// error.
func (s *LogStream) Run(ctx context.Context, program solana.PublicKey, handle func(LogNotification) error) error {
	client, err := ws.Connect(ctx, s.wsURL)
	if err != nil {
		return fmt.Errorf("failed to connect websocket: %w", err)
	}

	sub, err := client.LogsSubscribeMentions(program, s.commitment)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to subscribe to logs: %w", err)
	}

	// Recv не знает про ctx: закрытый сокет будит его ошибкой чтения
	stop := make(chan struct{})
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		select {
		case <-ctx.Done():
		case <-stop:
			sub.Unsubscribe()
		}
		client.Close()
	}()
	defer func() {
		close(stop)
		<-closed
	}()

	s.logger.Info("Subscribed to program logs",
		zap.String("program", program.String()),
		zap.String("commitment", string(s.commitment)))

	return s.consume(ctx, sub, handle)
}

func (s *LogStream) consume(ctx context.Context, sub logReceiver, handle func(LogNotification) error) error {
	for {
		msg, err := sub.Recv()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Debug("Log stream stopped", zap.Error(ctx.Err()))
				return nil
			}
			return fmt.Errorf("log subscription: %w", err)
		}
		if msg == nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		n := LogNotification{
			Signature: msg.Value.Signature,
			Failed:    msg.Value.Err != nil,
			Logs:      msg.Value.Logs,
		}
		if err := handle(n); err != nil {
			return err
		}
	}
}
