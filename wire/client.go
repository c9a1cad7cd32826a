package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"bufio"

	"github.com/52funny/egcda-uavs/protoerr"
)

// Client is a serialized, single-connection RPC client: one call is
// in flight at a time, matching every TA/GS/UAV client in this module
// (none pipeline requests).
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

// Dial opens a connection to addr. timeout bounds both the initial connect
// and every subsequent Call; zero disables deadlines.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn), timeout: timeout}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends method(req) and decodes the response into resp. resp may be nil
// for methods with no return payload.
func (c *Client) Call(method string, req any, resp any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
		defer c.conn.SetDeadline(time.Time{})
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	body, err := json.Marshal(envelope{Method: method, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := WriteFrame(c.conn, body); err != nil {
		return mapTimeout(err)
	}

	frame, err := ReadFrame(c.r)
	if err != nil {
		return mapTimeout(err)
	}

	var reply replyEnvelope
	if err := json.Unmarshal(frame, &reply); err != nil {
		return fmt.Errorf("unmarshal reply: %w", err)
	}
	if reply.Error != "" {
		return errors.New(reply.Error)
	}
	if resp == nil || len(reply.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(reply.Payload, resp)
}

func mapTimeout(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", protoerr.ErrTimeout, err)
	}
	return err
}
