package enum

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// PeriodStatus represents the status of a work period
type PeriodStatus int

const (
	PeriodStatusOpen   PeriodStatus = 0
	PeriodStatusClosed PeriodStatus = 1
)

func (s PeriodStatus) String() string {
	names := [...]string{"Open", "Closed"}
	if s < 0 || int(s) >= len(names) {
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
	return names[s]
}

func (s PeriodStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *PeriodStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = PeriodStatus(i)
		return nil
	}
	switch str {
	case "Open":
		*s = PeriodStatusOpen
	case "Closed":
		*s = PeriodStatusClosed
	}
	return nil
}

func (s PeriodStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *PeriodStatus) Scan(value interface{}) error {
	if value == nil {
		*s = PeriodStatusOpen
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = PeriodStatus(v)
	case int:
		*s = PeriodStatus(v)
	}
	return nil
}
