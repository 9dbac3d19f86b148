package level

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// stateDigest hashes everything that affects future ticks. Two runs fed the
// same commands and dt sequence produce the same digest at every tick.
func (l *Level) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteI64(h, &tmp, int64(l.elapsed))
	digestWriteI64(h, &tmp, int64(l.spawnAcc))
	digestWriteI64(h, &tmp, int64(l.spawned))
	digestWriteI64(h, &tmp, int64(l.exitCount))
	digestWriteI64(h, &tmp, int64(l.lostCount))
	digestWriteU64(h, &tmp, l.nextLemNum)
	h.Write([]byte{boolByte(l.completed), boolByte(l.failed)})
	digestWriteString(h, &tmp, string(l.selected))

	gd := l.grid.Digest()
	h.Write(gd[:])

	digestWriteU64(h, &tmp, uint64(len(l.lemmings)))
	for _, lm := range l.lemmings {
		digestWriteString(h, &tmp, lm.ID)
		digestWriteF64(h, &tmp, lm.X)
		digestWriteF64(h, &tmp, lm.Y)
		digestWriteF64(h, &tmp, lm.VX)
		digestWriteF64(h, &tmp, lm.VY)
		digestWriteI64(h, &tmp, int64(lm.Facing))
		h.Write([]byte{byte(lm.State)})
		digestWriteString(h, &tmp, string(lm.PendingSkill()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteString(h hashWriter, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
