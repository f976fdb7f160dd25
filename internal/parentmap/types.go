package parentmap

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ObjectID identifies one object inside a pool or dataset.
type ObjectID uint64

func (id ObjectID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParentID is an object's parent id, or None when no parent could be determined.
type ParentID struct {
	value int64
	valid bool
}

// None is the ParentID stored for objects without a usable parent.
var None = ParentID{}

// Parent returns a ParentID holding v.
func Parent(v int64) ParentID {
	return ParentID{value: v, valid: true}
}

func (p ParentID) Value() (int64, bool) {
	return p.value, p.valid
}

func (p ParentID) IsNone() bool {
	return !p.valid
}

func (p ParentID) String() string {
	if !p.valid {
		return "none"
	}
	return strconv.FormatInt(p.value, 10)
}

func (p ParentID) MarshalJSON() ([]byte, error) {
	if !p.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(p.value, 10)), nil
}

func (p *ParentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = None
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Parent(v)
	return nil
}
