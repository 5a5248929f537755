package domain

import (
	"fmt"
	"strings"
)

// Size is the closed set of garment sizes stock is tracked by.
type Size uint8

const (
	SizeXS Size = iota
	SizeS
	SizeM
	SizeL
	SizeXL
	SizeXXL
	SizeXXXL

	sizeCount
)

// NumSizes is the number of tracked sizes.
const NumSizes = int(sizeCount)

var sizeNames = [sizeCount]string{"XS", "S", "M", "L", "XL", "XXL", "XXXL"}

// Sizes lists every size in display order.
func Sizes() []Size {
	sizes := make([]Size, 0, sizeCount)
	for s := SizeXS; s < sizeCount; s++ {
		sizes = append(sizes, s)
	}
	return sizes
}

// ParseSize resolves a size label case-insensitively.
func ParseSize(value string) (Size, error) {
	label := strings.ToUpper(strings.TrimSpace(value))
	for i, name := range sizeNames {
		if name == label {
			return Size(i), nil
		}
	}
	return 0, fmt.Errorf("unknown size %q", value)
}

func (s Size) Valid() bool {
	return s < sizeCount
}

func (s Size) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Size(%d)", uint8(s))
	}
	return sizeNames[s]
}

func (s Size) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid size %d", uint8(s))
	}
	return []byte(sizeNames[s]), nil
}

func (s *Size) UnmarshalText(text []byte) error {
	parsed, err := ParseSize(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Stock holds on-hand quantity per size. Entries are never negative.
type Stock [sizeCount]int

// Of returns the quantity held for size.
func (st Stock) Of(size Size) int {
	if !size.Valid() {
		return 0
	}
	return st[size]
}

// Validate rejects negative quantities.
func (st Stock) Validate() error {
	for i, qty := range st {
		if qty < 0 {
			return fmt.Errorf("stock for size %s must not be negative", Size(i))
		}
	}
	return nil
}
