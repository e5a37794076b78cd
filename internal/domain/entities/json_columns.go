package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a free-form metadata map stored as a JSONB column
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// OperationSteps is the ordered step list stored as a JSONB column
type OperationSteps []*OperationStep

// Value implements driver.Valuer
func (s OperationSteps) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *OperationSteps) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Value implements driver.Valuer
func (r Route) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner
func (r *Route) Scan(src interface{}) error {
	return scanJSON(src, r)
}

// AlternativeRoutes is the alternative route list stored as a JSONB column
type AlternativeRoutes []AlternativeRoute

// Value implements driver.Valuer
func (a AlternativeRoutes) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *AlternativeRoutes) Scan(src interface{}) error {
	return scanJSON(src, a)
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
