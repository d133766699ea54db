package notify

import (
	"context"
	"net"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"ipwatch/internal/config"
	ntpl "ipwatch/internal/notify/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// startFakeSMTP accepts a single plain SMTP session and reports the DATA payload
func startFakeSMTP(t *testing.T) (string, int, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP fake")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				_ = tp.PrintfLine("250-localhost")
				_ = tp.PrintfLine("250 8BITMIME")
			case strings.HasPrefix(cmd, "HELO"):
				_ = tp.PrintfLine("250 localhost")
			case strings.HasPrefix(cmd, "DATA"):
				_ = tp.PrintfLine("354 go ahead")
				data, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				received <- string(data)
				_ = tp.PrintfLine("250 queued")
			case strings.HasPrefix(cmd, "QUIT"):
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("250 ok")
			}
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port, received
}

func newTestEmailNotifier(t *testing.T, cfg *config.SMTPConfig) *EmailNotifier {
	t.Helper()
	templates, err := ntpl.NewSet(zaptest.NewLogger(t))
	require.NoError(t, err)
	n, err := NewEmailNotifier(cfg, templates, zaptest.NewLogger(t))
	require.NoError(t, err)
	return n
}

func TestEmailNotifySendsHTMLMessage(t *testing.T) {
	host, port, received := startFakeSMTP(t)

	n := newTestEmailNotifier(t, &config.SMTPConfig{
		Enabled: true,
		From:    "IP Watcher <watcher@example.com>",
		To:      "admin@example.com",
		Server:  host,
		Port:    port,
		Timeout: 5 * time.Second,
	})

	require.NoError(t, n.Notify(context.Background(), testMessage(false)))

	select {
	case data := <-received:
		assert.Contains(t, data, "Subject: [IP Watcher] External IP changed: 198.51.100.9")
		assert.Contains(t, data, "To: admin@example.com")
		assert.Contains(t, data, "Content-Type: text/html; charset=UTF-8")
		assert.Contains(t, data, "Message-ID: <")
		assert.Contains(t, data, "@example.com>")
		assert.Contains(t, data, "Time: 2024-05-01T12:30:00Z")
		assert.Contains(t, data, "Current external IP: <b>198.51.100.9</b>")
		assert.Contains(t, data, "Previous external IP: 203.0.113.5")
		assert.Contains(t, data, "This email was sent automatically by ip-watcher.")
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestEmailNotifyConnectionFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	n := newTestEmailNotifier(t, &config.SMTPConfig{
		Enabled: true,
		From:    "watcher@example.com",
		To:      "admin@example.com",
		Server:  "127.0.0.1",
		Port:    addr.Port,
		Timeout: time.Second,
	})

	err = n.Notify(context.Background(), testMessage(true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send email")
}

func TestRenderFirstOmitsPrevious(t *testing.T) {
	n := newTestEmailNotifier(t, &config.SMTPConfig{Enabled: true})

	body, err := n.render(testMessage(true))
	require.NoError(t, err)
	assert.Contains(t, body, "<title>[IP Watcher] First external IP detected: 198.51.100.9</title>")
	assert.NotContains(t, body, "Previous external IP")
	assert.Contains(t, body, "Address family: IPV4")
}

func TestCustomTemplateOverridesDefault(t *testing.T) {
	file := filepath.Join(t.TempDir(), "address.html")
	require.NoError(t, os.WriteFile(file, []byte(`<p>{{ .Observation.Address }} at {{ formatTime .Observation.ObservedAt }}</p>`), 0o600))

	templates, err := ntpl.NewSet(zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, templates.Override(map[string]string{ntpl.Address: file}))

	n, err := NewEmailNotifier(&config.SMTPConfig{Enabled: true}, templates, zaptest.NewLogger(t))
	require.NoError(t, err)

	body, err := n.render(testMessage(true))
	require.NoError(t, err)
	assert.Equal(t, "<p>198.51.100.9 at 2024-05-01T12:30:00Z</p>", body)
}

func TestBuildEmailMessageHelpers(t *testing.T) {
	assert.Equal(t, "watcher@example.com", cleanEmailAddress("IP Watcher <watcher@example.com>"))
	assert.Equal(t, "watcher@example.com", cleanEmailAddress("watcher@example.com"))
	assert.Equal(t, "example.com", messageIDDomain("watcher@example.com"))
	assert.Equal(t, "localhost", messageIDDomain("nobody"))

	msg := string(buildEmailMessage("a@example.com", "b@example.com", "hi", "<p>x</p>"))
	assert.True(t, strings.HasPrefix(msg, "From: a@example.com\r\nTo: b@example.com\r\nSubject: hi\r\n"))
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>x</p>\r\n"))
}
