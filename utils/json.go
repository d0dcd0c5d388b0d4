package utils

import (
	"encoding/json"
)

// Marshal generic struct to JSON
func MarshalToJSON[T any](input T) (string, error) {
	jsonData, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

// Unmarshal JSON to generic struct
func UnmarshalFromJSON[T any](data []byte, output *T) error {
	return json.Unmarshal(data, output)
}

// SnapshotJSON is MarshalToJSON for audit columns: nil input and marshal
// failures both yield an empty snapshot instead of an error.
func SnapshotJSON(input any) string {
	if input == nil {
		return ""
	}
	jsonData, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	return string(jsonData)
}
