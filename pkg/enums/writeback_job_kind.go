package enums

import "fmt"

// WriteBackJobKind enumerates the spreadsheet mutations the write-back queue applies.
type WriteBackJobKind string

const (
	WriteBackJobUpdateQuantity WriteBackJobKind = "update_quantity"
	WriteBackJobAppendRow      WriteBackJobKind = "append_row"
)

var validWriteBackJobKinds = []WriteBackJobKind{
	WriteBackJobUpdateQuantity,
	WriteBackJobAppendRow,
}

// String implements fmt.Stringer.
func (k WriteBackJobKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known WriteBackJobKind.
func (k WriteBackJobKind) IsValid() bool {
	for _, candidate := range validWriteBackJobKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseWriteBackJobKind converts raw input into a WriteBackJobKind.
func ParseWriteBackJobKind(value string) (WriteBackJobKind, error) {
	for _, candidate := range validWriteBackJobKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid write-back job kind %q", value)
}
