// Package bot maintains the auxiliary Twitch chat connection.
//
// The connection is established once at process startup and lives alongside
// the HTTP surface, independent of it. Twitch chat speaks IRC; the only
// protocol obligations after login are answering PING probes, so the client
// is deliberately small: authenticate, read lines, keep the link alive.
package bot

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	defaultAddr = "irc.chat.twitch.tv:6697"
	dialTimeout = 10 * time.Second
)

// Config holds the chat connection settings.
type Config struct {
	Username string
	Token    string

	// Addr overrides the chat server address for tests.
	Addr string
	// PlainTCP disables TLS for tests against a local listener.
	PlainTCP bool
}

// Bot is a live chat connection.
type Bot struct {
	conn     net.Conn
	logger   *slog.Logger
	username string

	closeOnce sync.Once
	done      chan struct{}
}

// Connect dials the chat server, authenticates, and starts the read loop.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Bot, error) {
	if cfg.Username == "" || cfg.Token == "" {
		return nil, errors.New("bot username and token are required")
	}

	addr := cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}

	dialer := &net.Dialer{Timeout: dialTimeout}

	var conn net.Conn
	var err error
	if cfg.PlainTCP {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("dial chat server: %w", err)
	}

	b := &Bot{
		conn:     conn,
		logger:   logger,
		username: cfg.Username,
		done:     make(chan struct{}),
	}

	token := cfg.Token
	if !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}

	if err := b.send("PASS " + token); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send credentials: %w", err)
	}
	if err := b.send("NICK " + strings.ToLower(cfg.Username)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send nick: %w", err)
	}

	go b.readLoop()

	logger.Info("chat bot connected", "username", cfg.Username, "addr", addr)

	return b, nil
}

// send writes a single IRC line.
func (b *Bot) send(line string) error {
	_, err := b.conn.Write([]byte(line + "\r\n"))
	return err
}

// readLoop consumes server lines until the connection closes.
func (b *Bot) readLoop() {
	defer close(b.done)

	scanner := bufio.NewScanner(b.conn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		if reply, ok := pingReply(line); ok {
			if err := b.send(reply); err != nil {
				b.logger.Error("chat bot failed to answer ping", "error", err)
				return
			}
			continue
		}

		if isLoginFailure(line) {
			b.logger.Error("chat bot login rejected", "line", line)
			return
		}

		b.logger.Debug("chat bot received", "line", line)
	}

	if err := scanner.Err(); err != nil {
		b.logger.Warn("chat bot connection closed", "error", err)
	}
}

// Close shuts down the chat connection, waiting for the read loop to drain
// until the context expires.
func (b *Bot) Close(ctx context.Context) error {
	var err error
	b.closeOnce.Do(func() {
		_ = b.send("QUIT")
		err = b.conn.Close()

		select {
		case <-b.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

// pingReply returns the PONG line answering a server PING.
func pingReply(line string) (string, bool) {
	if line == "PING" {
		return "PONG", true
	}
	const prefix = "PING "
	if strings.HasPrefix(line, prefix) {
		return "PONG " + line[len(prefix):], true
	}
	return "", false
}

// isLoginFailure reports whether the line is the Twitch authentication
// rejection notice.
func isLoginFailure(line string) bool {
	return strings.Contains(line, "NOTICE") &&
		(strings.Contains(line, "Login authentication failed") ||
			strings.Contains(line, "Improperly formatted auth"))
}
