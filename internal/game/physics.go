package game

import "github.com/1ureka/netpong/internal/protocol"

// stepBall advances the ball by dt on the authoritative side and publishes
// the result. A goal ends the step: the relaunched ball is not integrated
// until the next tick.
func (e *Engine) stepBall(dt float32) {
	if e.checkScore() {
		return
	}

	for p := int32(0); p < 2; p++ {
		if e.collide(p) {
			break
		}
	}

	b := &e.ball
	b.Pos.X += b.Vel.X * dt
	b.Pos.Y += b.Vel.Y * dt

	r := e.phys.BallRadius
	switch {
	case b.Pos.Y-r < 0:
		b.Pos.Y = r
		b.Vel.Y = -b.Vel.Y
	case b.Pos.Y+r > e.phys.WorldHeight:
		b.Pos.Y = e.phys.WorldHeight - r
		b.Vel.Y = -b.Vel.Y
	}

	e.publishBall()
}

// checkScore credits the player on the far side when the ball reaches a
// goal line, then relaunches from the centre.
func (e *Engine) checkScore() bool {
	r := e.phys.BallRadius
	x := e.ball.Pos.X

	var scorer int32
	switch {
	case x-r <= 0:
		scorer = 1
	case x+r >= e.phys.WorldWidth:
		scorer = 0
	default:
		return false
	}

	score := e.players[scorer].Score + 1
	e.players[scorer].Score = score
	e.publish(protocol.ScoreUpdate{Score: score, Player: scorer})

	e.resetBall()
	e.publishBall()
	return true
}

// collide bounces the ball off player p's paddle if they overlap and the
// ball is not already heading away from it. Each hit speeds the ball up by a
// tenth of the base speed.
func (e *Engine) collide(p int32) bool {
	paddle := e.paddleRect(p)
	if !e.ballRect().overlaps(paddle) {
		return false
	}

	b := &e.ball
	r := e.phys.BallRadius
	speed := e.phys.BallBaseSpeed + float32(e.collisions)*(e.phys.BallBaseSpeed/10)

	if p == 0 {
		if b.Vel.X > 0 {
			return false
		}
		b.Vel.X = speed
		b.Pos.X = paddle.x + paddle.w + r
	} else {
		if b.Vel.X < 0 {
			return false
		}
		b.Vel.X = -speed
		b.Pos.X = paddle.x - r
	}

	half := e.phys.PaddleHeight / 2
	rel := clamp((b.Pos.Y-e.players[p].Pos)/half, -1, 1)
	b.Vel.Y = rel*e.phys.MaxDeflect + e.players[p].VertVelocity*e.phys.SpinScale

	e.collisions++
	return true
}

// resetBall centres the ball and launches it horizontally toward a random
// side at base speed.
func (e *Engine) resetBall() {
	dir := float32(1)
	if e.rng.IntN(2) == 0 {
		dir = -1
	}
	e.ball = Ball{
		Pos: protocol.Vec2{X: e.phys.WorldWidth / 2, Y: e.phys.WorldHeight / 2},
		Vel: protocol.Vec2{X: dir * e.phys.BallBaseSpeed},
	}
	e.collisions = 0
}

// paddleRect is player p's paddle. Player 0 sits flush with the left wall,
// player 1 with the right.
func (e *Engine) paddleRect(p int32) rect {
	x := float32(0)
	if p == 1 {
		x = e.phys.WorldWidth - e.phys.PaddleWidth
	}
	return rect{
		x: x,
		y: e.players[p].Pos - e.phys.PaddleHeight/2,
		w: e.phys.PaddleWidth,
		h: e.phys.PaddleHeight,
	}
}

func (e *Engine) ballRect() rect {
	r := e.phys.BallRadius
	return rect{x: e.ball.Pos.X - r, y: e.ball.Pos.Y - r, w: 2 * r, h: 2 * r}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
