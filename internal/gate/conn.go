package gate

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/access"
)

var (
	// ErrLineTooLong is returned when a peer sends a line over the limit.
	// The rest of the line is discarded.
	ErrLineTooLong = fmt.Errorf("line too long: %w", access.ErrMalformedLine)
	// ErrInvalidEncoding is returned for lines that are not UTF-8.
	ErrInvalidEncoding = fmt.Errorf("line is not valid utf-8: %w", access.ErrMalformedLine)
)

// LineConn reads and writes newline-terminated UTF-8 lines on a
// connection. Every read is bounded by the idle timeout.
type LineConn struct {
	conn         net.Conn
	r            *bufio.Reader
	idleTimeout  time.Duration
	writeTimeout time.Duration
	maxLine      int
}

// NewLineConn wraps c. A zero timeout disables the deadline; maxLine <= 0
// means no limit beyond memory.
func NewLineConn(c net.Conn, idleTimeout, writeTimeout time.Duration, maxLine int) *LineConn {
	return &LineConn{
		conn:         c,
		r:            bufio.NewReader(c),
		idleTimeout:  idleTimeout,
		writeTimeout: writeTimeout,
		maxLine:      maxLine,
	}
}

// ReadLine returns the next line without its terminator. A final line
// cut short by the peer closing is still returned; the following call
// returns io.EOF.
func (c *LineConn) ReadLine() (string, error) {
	if c.idleTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
			return "", err
		}
	}

	var (
		buf     []byte
		tooLong bool
	)
	for {
		chunk, err := c.r.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, chunk...)
			if c.maxLine > 0 && len(buf) > c.maxLine+2 {
				// Keep reading to the terminator so the next call starts
				// on a fresh line.
				tooLong, buf = true, nil
			}
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && (len(buf) > 0 || tooLong) {
			break
		}
		return "", err
	}
	if tooLong {
		return "", ErrLineTooLong
	}

	line := strings.TrimRight(string(buf), "\r\n")
	if c.maxLine > 0 && len(line) > c.maxLine {
		return "", ErrLineTooLong
	}
	if !utf8.ValidString(line) {
		return "", ErrInvalidEncoding
	}
	return line, nil
}

// WriteLine sends line followed by a newline.
func (c *LineConn) WriteLine(line string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

// Close closes the underlying connection.
func (c *LineConn) Close() error {
	return c.conn.Close()
}
