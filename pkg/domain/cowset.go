package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// HerdSentinel is the serialized marker for a whole-herd record.
const HerdSentinel = "all"

// CowSet is the ordered list of animals an event or milk record applies to.
// When All is set the record covers the whole herd and IDs is empty.
type CowSet struct {
	All bool
	IDs []int64
}

// Herd returns a set covering every animal.
func Herd() CowSet { return CowSet{All: true} }

// Cows returns a set of the given animals in order.
func Cows(ids ...int64) CowSet { return CowSet{IDs: append([]int64(nil), ids...)} }

// Empty reports whether the set names no animal and is not herd wide.
func (c CowSet) Empty() bool { return !c.All && len(c.IDs) == 0 }

// Includes reports whether id is listed individually. Herd-wide sets list nobody.
func (c CowSet) Includes(id int64) bool {
	for _, v := range c.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (c CowSet) Clone() CowSet {
	if c.All {
		return Herd()
	}
	return Cows(c.IDs...)
}

// Dedup drops repeated ids keeping the first occurrence.
func (c CowSet) Dedup() CowSet {
	if c.All {
		return Herd()
	}
	seen := make(map[int64]struct{}, len(c.IDs))
	out := make([]int64, 0, len(c.IDs))
	for _, id := range c.IDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return CowSet{IDs: out}
}

func (c CowSet) String() string {
	raw, _ := c.MarshalJSON()
	return string(raw)
}

// MarshalJSON encodes ["all"] for herd-wide sets and a number array otherwise.
func (c CowSet) MarshalJSON() ([]byte, error) {
	if c.All {
		return []byte(`["all"]`), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, id := range c.IDs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.FormatInt(id, 10))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts numbers, numeric strings and the "all" sentinel.
func (c *CowSet) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("cow ids: %w", err)
	}
	out := CowSet{}
	for _, item := range items {
		var num json.Number
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("cow ids: %w", err)
		}
		switch typed := v.(type) {
		case json.Number:
			num = typed
		case string:
			if strings.EqualFold(strings.TrimSpace(typed), HerdSentinel) {
				out.All = true
				continue
			}
			num = json.Number(strings.TrimSpace(typed))
		default:
			return fmt.Errorf("cow ids: unsupported element %s", string(item))
		}
		id, err := num.Int64()
		if err != nil {
			return fmt.Errorf("cow ids: invalid id %q", num.String())
		}
		out.IDs = append(out.IDs, id)
	}
	if out.All {
		out.IDs = nil
	}
	*c = out
	return nil
}

// ParseCowSet decodes a serialized cow id list.
func ParseCowSet(raw string) (CowSet, error) {
	var c CowSet
	if err := c.UnmarshalJSON([]byte(raw)); err != nil {
		return CowSet{}, err
	}
	return c, nil
}

// ParseCowSetLenient decodes raw the way older rows were written: blank and
// null values are empty sets and a bare scalar is a one element list. Any other
// malformed input degrades to an empty set; the decode error is still
// returned so the caller can log it.
func ParseCowSetLenient(raw string) (CowSet, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return CowSet{}, nil
	}
	c, err := ParseCowSet(trimmed)
	if err == nil {
		return c, nil
	}
	if !strings.HasPrefix(trimmed, "[") {
		if scalar, scalarErr := ParseCowSet("[" + trimmed + "]"); scalarErr == nil {
			return scalar, nil
		}
	}
	return CowSet{}, err
}
