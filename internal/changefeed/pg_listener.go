package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"familytree-backend/internal/logger"
)

// Channel is the NOTIFY channel the schema trigger publishes on.
const Channel = "table_changes"

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// PGListener turns postgres NOTIFY payloads into Changes on an embedded Broker.
type PGListener struct {
	*Broker
	listener *pq.Listener

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewPGListener(connStr string) (*PGListener, error) {
	l := pq.NewListener(connStr, minReconnectInterval, maxReconnectInterval, logListenerEvent)
	if err := l.Listen(Channel); err != nil {
		l.Close()
		return nil, fmt.Errorf("listen on %s: %w", Channel, err)
	}
	return &PGListener{
		Broker:   NewBroker(),
		listener: l,
		done:     make(chan struct{}),
	}, nil
}

func logListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		logger.Info("Change feed connected", "channel", Channel)
	case pq.ListenerEventDisconnected:
		logger.Warn("Change feed disconnected", "channel", Channel, "error", err)
	case pq.ListenerEventReconnected:
		logger.Info("Change feed reconnected", "channel", Channel)
	case pq.ListenerEventConnectionAttemptFailed:
		logger.Error("Change feed connection attempt failed", "channel", Channel, "error", err)
	}
}

// Start dispatches notifications from one goroutine until ctx ends or Close is called.
func (p *PGListener) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop(ctx)
	}()
}

func (p *PGListener) loop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case n, ok := <-p.listener.Notify:
			if !ok {
				return
			}
			// nil after a reconnect; events sent while disconnected are lost
			if n == nil {
				logger.Warn("Change feed resumed, events during the outage were dropped")
				continue
			}
			p.dispatch(n.Extra)
		case <-ticker.C:
			go func() {
				if err := p.listener.Ping(); err != nil {
					logger.Warn("Change feed ping failed", "error", err)
				}
			}()
		}
	}
}

func (p *PGListener) dispatch(payload string) {
	change, err := DecodeChange([]byte(payload))
	if err != nil {
		logger.Error("Dropping undecodable change payload", "error", err)
		return
	}
	p.Publish(change)
}

// DecodeChange parses a trigger payload.
func DecodeChange(payload []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(payload, &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if c.Table == "" {
		return Change{}, fmt.Errorf("decode change: missing table")
	}
	// json null decodes to the literal "null"
	if string(c.New) == "null" {
		c.New = nil
	}
	if string(c.Old) == "null" {
		c.Old = nil
	}
	return c, nil
}

func (p *PGListener) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.listener.Close()
		p.wg.Wait()
	})
	return err
}
