package tia

// commit applies one staged register write at the end of a CPU
// instruction's TIA catch-up; everything below is a direct write, not
// itself re-deferred.
func (t *TIA) commit(addr uint16, val uint8) {
	switch addr {
	case regVSYNC:
		t.writeVSYNC(val)
	case regVBLANK:
		t.vblank = val&0x02 != 0
	case regRSYNC:
		// Real hardware resets the horizontal counter for factory test;
		// no VCS game relies on it, so it's a no-op here.
	case regNUSIZ0:
		t.writeNUSIZ(0, val)
	case regNUSIZ1:
		t.writeNUSIZ(1, val)
	case regCOLUP0:
		t.p[0].color = val
	case regCOLUP1:
		t.p[1].color = val
	case regCOLUPF:
		t.pf.color = val
	case regCOLUBK:
		t.bg = val
	case regCTRLPF:
		t.pf.mirrored = val&0x01 != 0
		t.pf.scoreMode = val&0x02 != 0
		t.pf.priority = val&0x04 != 0
		t.rebuildPlayfield()
	case regREFP0:
		t.writeREFP(0, val)
	case regREFP1:
		t.writeREFP(1, val)
	case regPF0:
		t.pf.pf0 = val
		t.rebuildPlayfield()
	case regPF1:
		t.pf.pf1 = val
		t.rebuildPlayfield()
	case regPF2:
		t.pf.pf2 = val
		t.rebuildPlayfield()
	case regRESP0:
		t.resetSpritePosition(&t.p[0].x, 3, 5)
	case regRESP1:
		t.resetSpritePosition(&t.p[1].x, 3, 5)
	case regRESM0:
		t.resetSpritePosition(&t.m[0].x, 2, 4)
	case regRESM1:
		t.resetSpritePosition(&t.m[1].x, 2, 4)
	case regRESBL:
		t.resetSpritePosition(&t.bl.x, 2, 4)
	case regAUDC0:
		t.audio[0].Waveform = val & 0x0F
	case regAUDC1:
		t.audio[1].Waveform = val & 0x0F
	case regAUDF0:
		t.audio[0].Freq = val & 0x1F
	case regAUDF1:
		t.audio[1].Freq = val & 0x1F
	case regAUDV0:
		t.audio[0].Volume = val & 0x0F
	case regAUDV1:
		t.audio[1].Volume = val & 0x0F
	case regGRP0:
		t.writeGRP(0, val)
	case regGRP1:
		t.writeGRP(1, val)
	case regENAM0:
		t.m[0].enable = val&0x02 != 0
	case regENAM1:
		t.m[1].enable = val&0x02 != 0
	case regENABL:
		t.writeENABL(val)
	case regHMP0:
		t.p[0].motion = decodeMotion(val)
	case regHMP1:
		t.p[1].motion = decodeMotion(val)
	case regHMM0:
		t.m[0].motion = decodeMotion(val)
	case regHMM1:
		t.m[1].motion = decodeMotion(val)
	case regHMBL:
		t.bl.motion = decodeMotion(val)
	case regVDELP0:
		t.p[0].vdel = val&0x01 != 0
	case regVDELP1:
		t.p[1].vdel = val&0x01 != 0
	case regVDELBL:
		t.bl.vdel = val&0x01 != 0
	case regRESMP0:
		t.writeRESMP(0, val)
	case regRESMP1:
		t.writeRESMP(1, val)
	case regHMOVE:
		t.applyHMOVE()
	case regHMCLR:
		t.p[0].motion, t.p[1].motion = 0, 0
		t.m[0].motion, t.m[1].motion = 0, 0
		t.bl.motion = 0
	case regCXCLR:
		for i := range t.collision {
			t.collision[i] = 0
		}
	}
}

// writeVSYNC implements the VSYNC register: entering vsync just sets
// the flag, but the falling edge (going from set to clear) presents
// the completed frame and restarts the scanline counter.
func (t *TIA) writeVSYNC(val uint8) {
	newVal := val&0x02 != 0
	if t.vsync && !newVal {
		if t.frameDone != nil {
			t.frameDone(&t.frame)
		}
		t.y = 0
	}
	t.vsync = newVal
}

// resetSpritePosition implements the RESxx rule: the sprite snaps to
// the beam's current column (clamped to a small hblank fudge when the
// reset lands inside hblank), plus a fixed post-hblank offset that is
// added on every reset.
func (t *TIA) resetSpritePosition(x *int, hblankFudge, offset int) {
	col := int(t.cycle%lineClocks) - hblankClocks
	if col < 0 {
		col = hblankFudge
	}
	*x = col + offset
}

// decodeMotion extracts the signed 4-bit motion value from an
// HMxx-style register (bits 7:4), sign-extends it, and negates it:
// a positive nibble moves the object left, matching how HMOVE adds
// this value to the object's position each line.
func decodeMotion(val uint8) int8 {
	raw := int8(val) >> 4
	return -raw
}

// applyHMOVE adds every sprite's stored motion to its x position,
// wrapping into [0,160).
func (t *TIA) applyHMOVE() {
	wrap := func(x int, m int8) int {
		x = (x + int(m)) % 160
		if x < 0 {
			x += 160
		}
		return x
	}
	t.p[0].x = wrap(t.p[0].x, t.p[0].motion)
	t.p[1].x = wrap(t.p[1].x, t.p[1].motion)
	t.m[0].x = wrap(t.m[0].x, t.m[0].motion)
	t.m[1].x = wrap(t.m[1].x, t.m[1].motion)
	t.bl.x = wrap(t.bl.x, t.bl.motion)
}

// nusizTable decodes the low three bits of a NUSIZn register into the
// duplicate-copy bitmask and the player scale the hardware's fixed
// lookup table produces.
func nusizTable(low3 uint8) (dup, scale int) {
	switch low3 {
	case 0:
		return 0, 1
	case 1:
		return 0b101, 1
	case 2:
		return 0b10001, 1
	case 3:
		return 0b10101, 1
	case 4:
		return 0b100000001, 1
	case 5:
		return 0, 2
	case 6:
		return 0b100010001, 1
	case 7:
		return 0, 4
	}
	return 0, 1
}

func (t *TIA) writeNUSIZ(idx int, val uint8) {
	dup, scale := nusizTable(val & 0x07)
	t.p[idx].dup = dup
	t.p[idx].scale = scale
	t.m[idx].dup = dup
	t.m[idx].size = 1 << ((val >> 4) & 0x03)
}

// writeREFP implements sprite reflection: the stored mask (and its
// VDEL shadow) is bit-reversed only on a change of the reflect flag.
func (t *TIA) writeREFP(idx int, val uint8) {
	newReflect := val&0x08 != 0
	if newReflect != t.p[idx].reflect {
		t.p[idx].mask = reverseByte(t.p[idx].mask)
		t.p[idx].maskBuf = reverseByte(t.p[idx].maskBuf)
	}
	t.p[idx].reflect = newReflect
}

// writeGRP implements GRPn including the VDEL cross-latch: a write to
// GRPn always lands in that player's shadow buffer, and flushes the
// *other* player's buffer into its live mask if that player has VDEL
// set. Writing GRP1 additionally flushes the ball's ENABL shadow.
func (t *TIA) writeGRP(idx int, val uint8) {
	m := reverseByte(val)
	t.p[idx].maskBuf = m
	if !t.p[idx].vdel {
		t.p[idx].mask = m
	}
	other := 1 - idx
	if t.p[other].vdel {
		t.p[other].mask = t.p[other].maskBuf
	}
	if idx == 1 && t.bl.vdel {
		t.bl.enable = t.bl.enableBuf
	}
}

func (t *TIA) writeENABL(val uint8) {
	t.bl.enableBuf = val&0x02 != 0
	if !t.bl.vdel {
		t.bl.enable = t.bl.enableBuf
	}
}

// writeRESMP locks a missile to the center of its paired player with a
// one-shot snap on the write that sets the lock, rather than a
// continuous per-tick follow.
func (t *TIA) writeRESMP(idx int, val uint8) {
	locked := val&0x02 != 0
	t.m[idx].resmp = locked
	if locked {
		t.m[idx].x = t.p[idx].x + 4
	}
}

// reverseByte bit-reverses a byte (MSB<->LSB and so on), used both
// for playfield mirroring and sprite mask storage.
func reverseByte(b uint8) uint8 {
	b = (b&0xF0)>>4 | (b&0x0F)<<4
	b = (b&0xCC)>>2 | (b&0x33)<<2
	b = (b&0xAA)>>1 | (b&0x55)<<1
	return b
}

// rebuildPlayfield recomputes the 40-bit playfield mask from pf0/pf1/
// pf2 and the mirror flag: the 20-bit pattern written by the
// programmer is the left half; the right half either repeats it
// (unmirrored) or is its bit-reverse (mirrored).
func (t *TIA) rebuildPlayfield() {
	// PF0's high nibble lands in columns 0-3, PF1 in 4-11, PF2 in
	// 12-19, each in register bit order (bit 0 of the field is the
	// leftmost column it covers).
	left := uint64(t.pf.pf0>>4) | uint64(t.pf.pf1)<<4 | uint64(t.pf.pf2)<<12

	var right uint64
	if t.pf.mirrored {
		for i := 0; i < 20; i++ {
			if left&(1<<uint(i)) != 0 {
				right |= 1 << uint(39-i)
			}
		}
	} else {
		right = left << 20
	}
	t.pf.mask = left | right
}
