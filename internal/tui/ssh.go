package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/rs/zerolog"
)

// SSHConfig controls the dashboard SSH server.
type SSHConfig struct {
	Addr           string
	HostKeyPath    string
	AuthorizedKeys string // empty accepts any client
	Logger         zerolog.Logger
}

// NewSSHServer serves one AppModel per SSH session. A missing host key is
// generated on first start.
func NewSSHServer(svc Services, cfg SSHConfig) (*ssh.Server, error) {
	opts := []ssh.Option{
		wish.WithAddress(cfg.Addr),
		wish.WithHostKeyPath(cfg.HostKeyPath),
	}
	if cfg.AuthorizedKeys != "" {
		opts = append(opts, wish.WithAuthorizedKeys(cfg.AuthorizedKeys))
	}
	opts = append(opts, wish.WithMiddleware(
		bm.Middleware(sessionHandler(svc)),
		activeterm.Middleware(),
		loggingMiddleware(cfg.Logger),
	))

	srv, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ssh server: %w", err)
	}
	return srv, nil
}

func sessionHandler(svc Services) bm.Handler {
	return func(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
		s := svc
		s.Username = sess.User()
		m := NewAppModel(s)
		if pty, _, ok := sess.Pty(); ok {
			m.SetSize(pty.Window.Width, pty.Window.Height)
		}
		return m, []tea.ProgramOption{tea.WithAltScreen()}
	}
}

func loggingMiddleware(log zerolog.Logger) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			start := time.Now()
			l := log.With().Str("user", sess.User()).Str("remote", sess.RemoteAddr().String()).Logger()
			l.Info().Msg("ssh session started")
			next(sess)
			l.Info().Dur("duration", time.Since(start)).Msg("ssh session ended")
		}
	}
}
