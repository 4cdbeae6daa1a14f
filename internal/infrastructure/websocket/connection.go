package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"realtime-gateway/internal/domain"
	"realtime-gateway/pkg/logger"
	"realtime-gateway/pkg/realtime"
)

// ConnectionOptions tune the per-connection pumps.
type ConnectionOptions struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func DefaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
	}
}

// Connection wraps one upgraded websocket session. Writes go through a
// buffered channel drained by a single write pump, so Send never writes to
// the socket concurrently.
type Connection struct {
	id       string
	identity domain.Identity
	conn     *websocket.Conn
	options  ConnectionOptions
	log      logger.Logger

	sendChan chan []byte
	done     chan struct{}
	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
}

func NewConnection(id string, identity domain.Identity, conn *websocket.Conn,
	options ConnectionOptions, log logger.Logger) *Connection {
	return &Connection{
		id:       id,
		identity: identity,
		conn:     conn,
		options:  options,
		log:      log.With("connection_id", id),
		sendChan: make(chan []byte, options.SendBuffer),
		done:     make(chan struct{}),
	}
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Identity() domain.Identity {
	return c.identity
}

// Send queues an event for delivery. It never blocks; a slow consumer whose
// buffer is full loses the event, matching the best-effort delivery contract.
func (c *Connection) Send(event realtime.Event) error {
	message, err := realtime.Encode(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrConnectionClosed
	}
	c.mu.Unlock()

	select {
	case c.sendChan <- message:
		return nil
	case <-c.done:
		return domain.ErrConnectionClosed
	default:
		return domain.ErrSendBufferFull
	}
}

// Close is idempotent; a second call returns nil without touching the socket.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)

	if err := c.conn.Close(); err != nil {
		c.log.Debug("error closing websocket", "error", err)
	}

	c.wg.Wait()
	return nil
}

// Start launches the write pump. Reads are driven by the handler's read loop.
func (c *Connection) Start() {
	c.wg.Add(1)
	go c.writePump()
}

func (c *Connection) writePump() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.options.WriteTimeout))
			return

		case message := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("websocket write error", "error", err)
				// Closing the socket unblocks the read loop so the
				// connection gets unregistered.
				c.conn.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("websocket ping error", "error", err)
				c.conn.Close()
				return
			}
		}
	}
}
