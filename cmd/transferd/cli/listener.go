package cli

import (
	"net"
	"time"
)

// Listener wraps a net.Listener, tracking open-connection counts and
// applying read/write deadlines per accepted connection.
type Listener struct {
	net.Listener
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (l *Listener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	go MetricsOpenConnections.Inc()

	if l.ReadTimeout > 0 {
		err = c.SetReadDeadline(time.Now().Add(l.ReadTimeout))
	} else {
		err = c.SetReadDeadline(time.Time{})
	}
	if err != nil {
		return nil, err
	}

	if l.WriteTimeout > 0 {
		err = c.SetWriteDeadline(time.Now().Add(l.WriteTimeout))
	} else {
		err = c.SetWriteDeadline(time.Time{})
	}
	if err != nil {
		return nil, err
	}

	return &Conn{Conn: c, ReadTimeout: l.ReadTimeout, WriteTimeout: l.WriteTimeout}, nil
}

// Conn wraps a net.Conn, refreshing a read/write deadline after every
// successful operation so long-lived chunk uploads are not penalized by a
// single fixed per-connection deadline.
type Conn struct {
	net.Conn
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	closeRecorded bool
}

func (c *Conn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if !isTimeoutError(err) && c.ReadTimeout > 0 {
		if err2 := c.Conn.SetReadDeadline(time.Now().Add(c.ReadTimeout)); err == nil {
			err = err2
		}
	}
	return n, err
}

func (c *Conn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if !isTimeoutError(err) && c.WriteTimeout > 0 {
		if err2 := c.Conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout)); err == nil {
			err = err2
		}
	}
	return n, err
}

func (c *Conn) Close() error {
	if !c.closeRecorded {
		c.closeRecorded = true
		MetricsOpenConnections.Dec()
	}
	return c.Conn.Close()
}

// NewListener binds a TCP listener at addr with the given per-connection
// deadlines.
func NewListener(addr string, readTimeout, writeTimeout time.Duration) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{Listener: l, ReadTimeout: readTimeout, WriteTimeout: writeTimeout}, nil
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	netErr, ok := err.(*net.OpError)
	if !ok {
		return false
	}
	return netErr.Timeout()
}
