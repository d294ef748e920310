package scenario

import (
	"encoding/json"

	"gorisk/domain/core"
)

// Canonical returns the canonical JSON serialization of the scenario.
// Struct fields serialize in declaration order and parameter maps serialize
// with sorted keys, so equal configurations always produce equal bytes.
// Compiled expression nodes are not part of the serialization.
func (s *Scenario) Canonical() ([]byte, error) {
	return json.Marshal(s)
}

// Fingerprint hashes the canonical serialization. The fingerprint covers
// everything that determines a run's output, including iterations and seed,
// so it is a safe cache key for finished results.
func (s *Scenario) Fingerprint() (core.Fingerprint, error) {
	data, err := s.Canonical()
	if err != nil {
		return "", err
	}
	return core.NewFingerprint(data), nil
}

// FromJSON decodes a scenario from its JSON form. The result is not yet
// validated or compiled; callers must run Validate before executing it.
func FromJSON(data []byte) (*Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
