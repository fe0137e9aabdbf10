package app

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/1ureka/netpong/internal/config"
	"github.com/1ureka/netpong/internal/game"
	"github.com/1ureka/netpong/internal/protocol"
)

// Court size in terminal cells.
const (
	courtCols = 60
	courtRows = 20
)

// Renderer redraws the court in place with a pterm area. Log lines written
// while it runs are kept in a small tail shown under the court.
type Renderer struct {
	phys config.Physics
	area *pterm.AreaPrinter
	tail *logTail
	help string
}

// NewRenderer creates a renderer for the given court. help is the key legend.
func NewRenderer(phys config.Physics, help string) *Renderer {
	return &Renderer{phys: phys, tail: newLogTail(4), help: help}
}

// Start takes over the terminal.
func (r *Renderer) Start() error {
	area, err := pterm.DefaultArea.WithRemoveWhenDone().Start()
	if err != nil {
		return fmt.Errorf("failed to start renderer: %w", err)
	}
	r.area = area
	return nil
}

// Logs is where log output should go while the renderer runs.
func (r *Renderer) Logs() io.Writer { return r.tail }

// Draw replaces the area content with rs.
func (r *Renderer) Draw(rs game.RenderState) {
	if r.area == nil {
		return
	}
	var sb strings.Builder
	sb.WriteString(drawCourt(rs, r.phys, courtCols, courtRows))
	sb.WriteString(pterm.Gray(r.help))
	sb.WriteByte('\n')
	for _, line := range r.tail.Lines() {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	// The keyboard listener puts the terminal in raw mode, where a bare
	// newline does not return the carriage.
	r.area.Update(strings.ReplaceAll(sb.String(), "\n", "\r\n"))
}

// Stop gives the terminal back.
func (r *Renderer) Stop() {
	if r.area != nil {
		r.area.Stop()
		r.area = nil
	}
}

// drawCourt renders rs as plain text: a status line, the framed court and a
// state banner.
func drawCourt(rs game.RenderState, phys config.Physics, cols, rows int) string {
	grid := make([][]rune, rows)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", cols))
		grid[y][cols/2] = '┊'
	}

	cellX := func(x float32) int { return clampInt(int(x/phys.WorldWidth*float32(cols)), 0, cols-1) }
	cellY := func(y float32) int { return clampInt(int(y/phys.WorldHeight*float32(rows)), 0, rows-1) }

	for p, col := range [2]int{0, cols - 1} {
		top := cellY(rs.Players[p].Pos - phys.PaddleHeight/2)
		bottom := cellY(rs.Players[p].Pos + phys.PaddleHeight/2 - 1)
		for y := top; y <= bottom; y++ {
			grid[y][col] = '█'
		}
	}

	if rs.State == protocol.StatePlaying || rs.State == protocol.StatePaused {
		grid[cellY(rs.Ball.Pos.Y)][cellX(rs.Ball.Pos.X)] = '●'
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, " P1 %3d : %-3d P2   %-8s %s\n", rs.Players[0].Score, rs.Players[1].Score, rs.Role, rs.State)
	sb.WriteString("┌" + strings.Repeat("─", cols) + "┐\n")
	for _, line := range grid {
		sb.WriteString("│" + string(line) + "│\n")
	}
	sb.WriteString("└" + strings.Repeat("─", cols) + "┘\n")
	sb.WriteString(banner(rs))
	sb.WriteByte('\n')
	return sb.String()
}

func banner(rs game.RenderState) string {
	switch rs.State {
	case protocol.StatePaused:
		return fmt.Sprintf(" PAUSED by P%d", rs.Pauser+1)
	case protocol.StateWaitingForPeer:
		return " waiting for the other player..."
	case protocol.StateMenu:
		if rs.Error != "" {
			return " match ended: " + rs.Error
		}
		return " match ended"
	default:
		return fmt.Sprintf(" rally %d", rs.Collisions)
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// logTail keeps the last few complete lines written to it.
type logTail struct {
	mu    sync.Mutex
	max   int
	lines []string
	part  []byte
}

func newLogTail(max int) *logTail {
	return &logTail{max: max}
}

func (t *logTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.part = append(t.part, p...)
	for {
		i := bytes.IndexByte(t.part, '\n')
		if i < 0 {
			break
		}
		t.lines = append(t.lines, string(t.part[:i]))
		t.part = t.part[i+1:]
	}
	if over := len(t.lines) - t.max; over > 0 {
		t.lines = append(t.lines[:0], t.lines[over:]...)
	}
	return len(p), nil
}

// Lines returns a copy of the kept lines, oldest first.
func (t *logTail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}
