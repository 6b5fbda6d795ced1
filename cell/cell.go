package cell

import (
	"strconv"
	"strings"
)

const (
	// MaxResolution is the finest resolution a cell address can carry.
	MaxResolution = 15
	// NumBaseCells is the number of base cells at resolution 0.
	NumBaseCells = 122
	// UnusedDigit marks a digit below the cell's resolution.
	UnusedDigit = 7

	reservedOffset = 63
	modeOffset     = 59
	resOffset      = 52
	baseCellOffset = 45

	modeMask     = 0xF
	resMask      = 0xF
	baseCellMask = 0x7F
	digitBits    = 3
	digitMask    = 0x7

	cellMode = 1
)

// Cell is a validated hierarchical cell address.
//
// Bits are read from the most significant end: one reserved bit, four mode
// bits, three mode-dependent bits, four resolution bits, seven base-cell
// bits and fifteen three-bit digits.
type Cell uint64

// NewCell validates addr and returns it as a Cell.
func NewCell(addr uint64) (Cell, error) {
	c := Cell(addr)
	if err := c.validate(); err != nil {
		return 0, err
	}

	return c, nil
}

// MustCell is like NewCell but panics on a malformed address.
func MustCell(addr uint64) Cell {
	c, err := NewCell(addr)
	if err != nil {
		panic(err)
	}

	return c
}

// ParseCell parses the hexadecimal form of a cell address, with or without
// a 0x prefix.
func ParseCell(s string) (Cell, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	addr, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, &MalformedKeyError{Reason: "not a hexadecimal address", cause: err}
	}

	return NewCell(addr)
}

// Compose builds the cell with the given base cell and digits. The number of
// digits is the resolution of the result.
func Compose(baseCell int, digits ...int) (Cell, error) {
	if len(digits) > MaxResolution {
		return 0, &MalformedKeyError{Reason: "too many digits"}
	}

	if baseCell < 0 || baseCell >= NumBaseCells {
		return 0, &MalformedKeyError{Reason: "base cell out of range"}
	}

	addr := uint64(cellMode)<<modeOffset |
		uint64(len(digits))<<resOffset |
		uint64(baseCell)<<baseCellOffset

	for r := 1; r <= MaxResolution; r++ {
		d := UnusedDigit
		if r <= len(digits) {
			d = digits[r-1]
			if d < 0 || d >= UnusedDigit {
				return 0, &MalformedKeyError{Address: addr, Reason: "digit out of range"}
			}
		}

		addr |= uint64(d) << digitShift(r)
	}

	return Cell(addr), nil
}

// Resolution returns the resolution of c (0-15).
func (c Cell) Resolution() int {
	return int(uint64(c)>>resOffset) & resMask
}

// BaseCell returns the base cell of c (0-121).
func (c Cell) BaseCell() int {
	return int(uint64(c)>>baseCellOffset) & baseCellMask
}

// Digit returns the digit of c at resolution r (1-15). Digits below the
// resolution of c are UnusedDigit.
func (c Cell) Digit(r int) int {
	return int(uint64(c)>>digitShift(r)) & digitMask
}

// Index returns the branch index of c at the given trie level: the base
// cell at level 0 and the digit at deeper levels.
func (c Cell) Index(level int) int {
	if level == 0 {
		return c.BaseCell()
	}

	return c.Digit(level)
}

// Parent trims c to resolution res. Every digit after res is replaced by
// UnusedDigit.
func (c Cell) Parent(res int) (Cell, error) {
	if res < 0 || res > c.Resolution() {
		return 0, &MalformedKeyError{Address: uint64(c), Reason: "resolution " + strconv.Itoa(res) + " out of range"}
	}

	addr := uint64(c) &^ (resMask << resOffset)
	addr |= uint64(res) << resOffset

	for r := res + 1; r <= MaxResolution; r++ {
		addr |= digitMask << digitShift(r)
	}

	return Cell(addr), nil
}

// HasPrefix reports whether c is p or lies inside p: c is at least as fine
// as p and agrees with it on the base cell and every digit up to p's
// resolution.
func (c Cell) HasPrefix(p Cell) bool {
	res := p.Resolution()
	if c.Resolution() < res {
		return false
	}

	return (uint64(c)^uint64(p))&prefixMask(res) == 0
}

// String returns the lower-case hexadecimal form of c.
func (c Cell) String() string {
	return strconv.FormatUint(uint64(c), 16)
}

func (c Cell) validate() error {
	addr := uint64(c)

	if addr>>reservedOffset != 0 {
		return &MalformedKeyError{Address: addr, Reason: "reserved bit set"}
	}

	if (addr>>modeOffset)&modeMask != cellMode {
		return &MalformedKeyError{Address: addr, Reason: "unsupported mode"}
	}

	if c.BaseCell() >= NumBaseCells {
		return &MalformedKeyError{Address: addr, Reason: "base cell out of range"}
	}

	res := c.Resolution()
	for r := 1; r <= MaxResolution; r++ {
		d := c.Digit(r)
		if r <= res && d == UnusedDigit {
			return &MalformedKeyError{Address: addr, Reason: "missing digit at resolution " + strconv.Itoa(r)}
		}

		if r > res && d != UnusedDigit {
			return &MalformedKeyError{Address: addr, Reason: "digit set below resolution " + strconv.Itoa(r)}
		}
	}

	return nil
}

func digitShift(r int) uint {
	return uint((MaxResolution - r) * digitBits)
}

// prefixMask covers the base cell and digits 1..res.
func prefixMask(res int) uint64 {
	width := uint(7 + res*digitBits)
	return (uint64(1)<<width - 1) << digitShift(res)
}
