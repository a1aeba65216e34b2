package entity

import (
	"errors"

	"github.com/disgoorg/snowflake/v2"
)

var errZeroSnowflake = errors.New("zero snowflake")

// parseSnowflake parses a required ID field of a remote record.
func parseSnowflake(kind, id, field, value string) (Snowflake, error) {
	if value == "" {
		return 0, &MappingError{Kind: kind, ID: id, Field: field}
	}
	s, err := snowflake.Parse(value)
	if err != nil {
		return 0, &MappingError{Kind: kind, ID: id, Field: field, Err: err}
	}
	if s == 0 {
		return 0, &MappingError{Kind: kind, ID: id, Field: field, Err: errZeroSnowflake}
	}
	return s, nil
}

// parseOptionalSnowflake is parseSnowflake for fields that may be absent.
func parseOptionalSnowflake(kind, id, field, value string) (*Snowflake, error) {
	if value == "" {
		return nil, nil
	}
	s, err := parseSnowflake(kind, id, field, value)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
