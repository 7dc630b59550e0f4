package enum

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ReceiptState represents the lifecycle state of a receipt
type ReceiptState int

const (
	ReceiptStateCreated  ReceiptState = 0
	ReceiptStatePending  ReceiptState = 1
	ReceiptStateSettled  ReceiptState = 2
	ReceiptStateVoided   ReceiptState = 3
	ReceiptStateArchived ReceiptState = 4
)

func (s ReceiptState) String() string {
	names := [...]string{"Created", "Pending", "Settled", "Voided", "Archived"}
	if s < 0 || int(s) >= len(names) {
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
	return names[s]
}

// IsTerminal reports whether no forward transition except Void is possible.
// Archived receipts accept no further mutation at all.
func (s ReceiptState) IsTerminal() bool {
	return s == ReceiptStateVoided || s == ReceiptStateArchived
}

// IsMutable reports whether items may still be added.
func (s ReceiptState) IsMutable() bool {
	return s == ReceiptStateCreated || s == ReceiptStatePending
}

func (s ReceiptState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ReceiptState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		// Try unmarshaling as int
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = ReceiptState(i)
		return nil
	}
	switch str {
	case "Created":
		*s = ReceiptStateCreated
	case "Pending":
		*s = ReceiptStatePending
	case "Settled":
		*s = ReceiptStateSettled
	case "Voided":
		*s = ReceiptStateVoided
	case "Archived":
		*s = ReceiptStateArchived
	}
	return nil
}

func (s ReceiptState) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *ReceiptState) Scan(value interface{}) error {
	if value == nil {
		*s = ReceiptStateCreated
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = ReceiptState(v)
	case int:
		*s = ReceiptState(v)
	}
	return nil
}
