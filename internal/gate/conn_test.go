package gate

import (
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/access"
)

// pipe returns a LineConn over one end of an in-memory connection and the
// raw peer end.
func pipe(t *testing.T, idle time.Duration, maxLine int) (*LineConn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return NewLineConn(server, idle, time.Second, maxLine), client
}

func TestReadLine(t *testing.T) {
	lc, peer := pipe(t, time.Second, 64)

	go func() {
		_, _ = io.WriteString(peer, "ID_JOUEUR:158\r\nDATE_NAISSANCE:1998-04-12\nQR_CODE:RES-12")
		_ = peer.Close()
	}()

	line, err := lc.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "ID_JOUEUR:158", line)

	line, err = lc.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "DATE_NAISSANCE:1998-04-12", line)

	line, err = lc.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "QR_CODE:RES-12", line, "unterminated final line is returned")

	_, err = lc.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLineTooLong(t *testing.T) {
	lc, peer := pipe(t, time.Second, 16)

	go func() {
		_, _ = io.WriteString(peer, strings.Repeat("x", 40)+"\n")
	}()

	_, err := lc.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestReadLineTooLongDiscardsRest(t *testing.T) {
	lc, peer := pipe(t, time.Second, 16)

	go func() {
		_, _ = io.WriteString(peer, strings.Repeat("x", 5000)+"\nID_JOUEUR:158\n")
	}()

	_, err := lc.ReadLine()
	require.ErrorIs(t, err, ErrLineTooLong)
	assert.ErrorIs(t, err, access.ErrMalformedLine)

	line, err := lc.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "ID_JOUEUR:158", line)
}

func TestReadLineInvalidUTF8(t *testing.T) {
	lc, peer := pipe(t, time.Second, 64)

	go func() {
		_, _ = peer.Write([]byte("ID_JOUEUR:\xff\xfe\n"))
	}()

	_, err := lc.ReadLine()
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	assert.ErrorIs(t, err, access.ErrMalformedLine)
}

func TestReadLineAcceptsAccents(t *testing.T) {
	lc, peer := pipe(t, time.Second, 64)

	go func() {
		_, _ = io.WriteString(peer, "NOM_EQUIPE:Les Éperviers\n")
	}()

	line, err := lc.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "NOM_EQUIPE:Les Éperviers", line)
}

func TestReadLineIdleTimeout(t *testing.T) {
	lc, _ := pipe(t, 20*time.Millisecond, 64)

	_, err := lc.ReadLine()
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestWriteLine(t *testing.T) {
	lc, peer := pipe(t, time.Second, 64)

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := peer.Read(buf)
		got <- string(buf[:n])
	}()

	require.NoError(t, lc.WriteLine("QR_CODE:?"))
	assert.Equal(t, "QR_CODE:?\n", <-got)
}
