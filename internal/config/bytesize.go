package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes that unmarshals from strings like "1Mi", "512KB" or "1024".
type ByteSize uint64

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid bytesize node kind: %v", value.Kind)
	}
	n, err := ParseByteSize(value.Value)
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

var sizeUnits = []struct {
	suffix string
	mult   uint64
}{
	{"KIB", 1 << 10}, {"MIB", 1 << 20}, {"GIB", 1 << 30},
	{"KI", 1 << 10}, {"MI", 1 << 20}, {"GI", 1 << 30},
	{"KB", 1000}, {"MB", 1000 * 1000}, {"GB", 1000 * 1000 * 1000},
	{"B", 1},
}

// ParseByteSize accepts bare bytes, binary Ki/Mi/Gi (with or without B) and
// decimal KB/MB/GB, case-insensitively.
func ParseByteSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size")
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	up := strings.ToUpper(s)
	for _, u := range sizeUnits {
		if !strings.HasSuffix(up, u.suffix) {
			continue
		}
		num := strings.TrimSpace(s[:len(s)-len(u.suffix)])
		v, err := strconv.ParseFloat(num, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid size number in %q", s)
		}
		return uint64(v * float64(u.mult)), nil
	}
	return 0, fmt.Errorf("unknown size suffix in %q", s)
}
