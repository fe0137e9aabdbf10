// Package app runs a match in the terminal: it samples input, ticks the
// session at a fixed rate, draws the court and feeds spectators.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/1ureka/netpong/internal/config"
	"github.com/1ureka/netpong/internal/game"
	"github.com/1ureka/netpong/internal/metrics"
	"github.com/1ureka/netpong/internal/protocol"
	"github.com/1ureka/netpong/internal/spectate"
	"github.com/1ureka/netpong/internal/util"
)

// maxDt caps the simulated time of one tick so a stalled process does not
// teleport the ball through a paddle.
const maxDt = float32(0.1)

// ErrQuit is returned by Run when the user left the match.
var ErrQuit = errors.New("quit by user")

// Run starts the match described by cfg and ticks it until it ends, the user
// quits or ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m := metrics.New(metrics.WithConstLabels(prometheus.Labels{"role": string(cfg.Role)}))
	session := game.NewSession(cfg, game.WithObserver(m))
	defer session.Close()

	var hub *spectate.Hub
	if cfg.SpectateAddr != "" {
		hub = spectate.NewHub()
		srv, err := spectate.Start(cfg.SpectateAddr, spectate.NewRouter(hub, m.Registry()))
		if err != nil {
			return err
		}
		defer func() {
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			srv.Close(shutdownCtx)
		}()
	}

	if err := start(ctx, session, cfg); err != nil {
		return err
	}
	util.StartStatsReporter(ctx)

	// Input and output.
	var (
		source Source
		quit   <-chan struct{}
		draw   = func(game.RenderState) {}
	)
	if !cfg.Headless {
		kb := NewKeyboardInput(cfg.Role)
		kb.Start()
		defer kb.Stop()
		source, quit = kb, kb.Quit()

		r := NewRenderer(cfg.Physics, helpLine(cfg.Role))
		if err := r.Start(); err != nil {
			return err
		}
		util.RedirectLogs(r.Logs())
		defer func() {
			r.Stop()
			util.RedirectLogs(os.Stdout)
		}()
		draw = r.Draw
	}
	if cfg.Bot {
		source = botSource{base: source, bots: botsFor(cfg)}
	}

	return loop(ctx, session, cfg.TickInterval(), source, quit, func(rs game.RenderState) {
		draw(rs)
		if hub != nil {
			hub.Publish(rs)
		}
	})
}

func start(ctx context.Context, s *game.Session, cfg config.Config) error {
	switch cfg.Role {
	case config.RoleHost:
		return s.Host(ctx, cfg.Port)
	case config.RoleClient:
		return s.Join(ctx, cfg.HostAddr, cfg.Port)
	default:
		s.StartLocal()
		return nil
	}
}

// loop ticks s every interval. It returns nil when ctx is done, ErrQuit when
// quit closes, and the session's error message once the match ends.
func loop(ctx context.Context, s *game.Session, interval time.Duration, source Source, quit <-chan struct{}, out func(game.RenderState)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	rs := s.Snapshot()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-quit:
			return ErrQuit

		case now := <-ticker.C:
			dt := min(float32(now.Sub(last).Seconds()), maxDt)
			last = now

			var in game.Input
			if source != nil {
				in = source.Sample(rs)
			}
			rs = s.Tick(in, dt)
			out(rs)

			if rs.State == protocol.StateMenu {
				if rs.Error != "" {
					return fmt.Errorf("match ended: %s", rs.Error)
				}
				return nil
			}
		}
	}
}

// botsFor returns a bot for every paddle this process controls.
func botsFor(cfg config.Config) []Bot {
	bot := func(p int32) Bot {
		return Bot{Player: p, Physics: cfg.Physics, DeadZone: cfg.Physics.PaddleHeight / 8}
	}
	switch cfg.Role {
	case config.RoleHost:
		return []Bot{bot(0)}
	case config.RoleClient:
		return []Bot{bot(1)}
	default:
		return []Bot{bot(0), bot(1)}
	}
}

func helpLine(role config.Role) string {
	if role == config.RoleLocal {
		return " P1: W/S move, P pause   P2: ↑/↓ move, Space pause   Q/Esc quit"
	}
	return " W/S or ↑/↓ move, P or Space pause/resume, Q/Esc quit"
}
