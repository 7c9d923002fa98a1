package tia

// drawPixel evaluates the six hit predicates at visibleX, latches
// every pairwise collision, and writes the resulting color into the
// framebuffer if the current scanline is within the visible window.
func (t *TIA) drawPixel(visibleX int) {
	p0 := t.playerHit(0, visibleX)
	p1 := t.playerHit(1, visibleX)
	m0 := t.missileHit(0, visibleX)
	m1 := t.missileHit(1, visibleX)
	bl := t.ballHit(visibleX)
	pf := t.playfieldHit(visibleX)

	t.latch(cM0P0, m0 && p0)
	t.latch(cM0P1, m0 && p1)
	t.latch(cM1P0, m1 && p0)
	t.latch(cM1P1, m1 && p1)
	t.latch(cP0PF, p0 && pf)
	t.latch(cP0BL, p0 && bl)
	t.latch(cP1PF, p1 && pf)
	t.latch(cP1BL, p1 && bl)
	t.latch(cM0PF, m0 && pf)
	t.latch(cM0BL, m0 && bl)
	t.latch(cM1PF, m1 && pf)
	t.latch(cM1BL, m1 && bl)
	t.latch(cBLPF, bl && pf)
	t.latch(cP0P1, p0 && p1)
	t.latch(cM0M1, m0 && m1)

	if t.y < firstVisibleLine || t.y >= firstVisibleLine+linesVisible {
		return
	}
	t.frame.Pixels[t.y-firstVisibleLine][visibleX] = t.pickColor(p0, p1, m0, m1, bl, pf, visibleX)
}

// latch is a monotone OR: once a collision bit is set it only clears
// on CXCLR.
func (t *TIA) latch(idx int, hit bool) {
	if hit {
		t.collision[idx] = 1
	}
}

func (t *TIA) playerHit(idx int, x int) bool {
	p := &t.p[idx]
	if p.dup == 0 {
		w := 8 * p.scale
		if x < p.x || x >= p.x+w {
			return false
		}
		bit := (x - p.x) / p.scale
		return (p.mask>>uint(bit))&1 != 0
	}
	if x < p.x {
		return false
	}
	rel := x - p.x
	copyIdx := rel / 8
	if copyIdx > 8 || (p.dup>>uint(copyIdx))&1 == 0 {
		return false
	}
	bit := rel % 8
	return (p.mask>>uint(bit))&1 != 0
}

func (t *TIA) missileHit(idx int, x int) bool {
	m := &t.m[idx]
	if !m.enable {
		return false
	}
	if m.dup == 0 {
		return x >= m.x && x < m.x+m.size
	}
	if x < m.x {
		return false
	}
	rel := x - m.x
	copyIdx := rel / 8
	if copyIdx > 8 || (m.dup>>uint(copyIdx))&1 == 0 {
		return false
	}
	return rel%8 < m.size
}

func (t *TIA) ballHit(x int) bool {
	return t.bl.enable && x >= t.bl.x && x < t.bl.x+t.bl.size
}

func (t *TIA) playfieldHit(x int) bool {
	cell := x / 4
	if cell < 0 || cell > 39 {
		return false
	}
	return (t.pf.mask>>uint(cell))&1 != 0
}

// pickColor applies the chip's drawing priority rule. In score
// mode the left half of the playfield shows player0's color and the
// right half shows player1's, in place of COLUPF.
func (t *TIA) pickColor(p0, p1, m0, m1, bl, pf bool, x int) uint8 {
	pfColor := t.pf.color
	if t.pf.scoreMode {
		if x < visibleClocks/2 {
			pfColor = t.p[0].color
		} else {
			pfColor = t.p[1].color
		}
	}

	if t.pf.priority {
		switch {
		case pf || bl:
			return pfColor
		case p0 || m0:
			return t.p[0].color
		case p1 || m1:
			return t.p[1].color
		default:
			return t.bg
		}
	}
	switch {
	case p0 || m0:
		return t.p[0].color
	case p1 || m1:
		return t.p[1].color
	case pf:
		return pfColor
	case bl:
		return pfColor
	default:
		return t.bg
	}
}
