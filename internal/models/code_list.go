package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// CodeList is an ordered list of backup-code digests stored as a JSON array.
type CodeList []string

func (l CodeList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *CodeList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported CodeList source %T", src)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return err
	}
	*l = codes
	return nil
}
