package canmodule

import (
	"math"

	"github.com/pkg/errors"
)

const bitsPerByte = 8

// Signal describes one scaled field of a CAN payload. Start is the least significant
// bit of the field counted from bit 0 of byte 0.
type Signal struct {
	Scalar       float64
	Offset       float64
	Start        uint8
	Length       uint8
	LittleEndian bool
	Signed       bool
}

// byteMask returns the bits of payload byte i covered by a signal spanning bits lsb
// through msb.
func byteMask(i, lsb, msb int) uint8 {
	lo, hi := 0, bitsPerByte-1
	if lsb > i*bitsPerByte {
		lo = lsb - i*bitsPerByte
	}
	if msb < (i+1)*bitsPerByte-1 {
		hi = msb - i*bitsPerByte
	}
	return uint8((math.MaxUint8 << (hi + 1)) ^ (math.MaxUint8 << lo))
}

func (s Signal) span(data []byte) (lsb, msb, first, last int, err error) {
	if s.Length == 0 || s.Length > 64 {
		return 0, 0, 0, 0, errors.Errorf("signal length %d out of range", s.Length)
	}
	lsb = int(s.Start)
	msb = lsb + int(s.Length) - 1
	first, last = lsb/bitsPerByte, msb/bitsPerByte
	if last-first >= 8 {
		return 0, 0, 0, 0, errors.Errorf("signal at bit %d spans more than 8 bytes", s.Start)
	}
	if last >= len(data) {
		return 0, 0, 0, 0, errors.Errorf("signal needs %d bytes, payload has %d", last+1, len(data))
	}
	return lsb, msb, first, last, nil
}

// Extract decodes the signal from a payload.
func (s Signal) Extract(data []byte) (float64, error) {
	lsb, msb, first, last, err := s.span(data)
	if err != nil {
		return 0, err
	}
	var raw uint64
	for i := first; i <= last; i++ {
		shift := i - first
		if !s.LittleEndian {
			shift = last - i
		}
		raw |= uint64(data[i]&byteMask(i, lsb, msb)) << (shift * bitsPerByte)
	}
	raw >>= uint(lsb - first*bitsPerByte)

	if s.Signed && raw&(1<<(s.Length-1)) != 0 {
		if s.Length < 64 {
			raw |= math.MaxUint64 << s.Length
		}
		return float64(int64(raw))*s.Scalar + s.Offset, nil
	}
	return float64(raw)*s.Scalar + s.Offset, nil
}

// Insert encodes value into a payload, saturating at the field's range. Only little
// endian signals can be written.
func (s Signal) Insert(data []byte, value float64) error {
	if !s.LittleEndian {
		return errors.New("only little endian signals can be encoded")
	}
	lsb, _, _, _, err := s.span(data)
	if err != nil {
		return err
	}
	scaled := math.Round((value - s.Offset) / s.Scalar)
	lo, hi := 0.0, math.Exp2(float64(s.Length))-1
	if s.Signed {
		lo, hi = -math.Exp2(float64(s.Length-1)), math.Exp2(float64(s.Length-1))-1
	}
	scaled = math.Max(lo, math.Min(hi, scaled))

	var raw uint64
	if s.Signed {
		raw = uint64(int64(scaled))
	} else {
		raw = uint64(scaled)
	}
	for b := 0; b < int(s.Length); b++ {
		pos := lsb + b
		bit := uint8(1) << (pos % bitsPerByte)
		if raw&(1<<b) != 0 {
			data[pos/bitsPerByte] |= bit
		} else {
			data[pos/bitsPerByte] &^= bit
		}
	}
	return nil
}
