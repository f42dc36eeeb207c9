// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a deterministic content hash of the manifest, used to
// detect duplicate submissions. The JSON is decoded and re-encoded before
// hashing so formatting and key order do not affect the result.
func (m *Manifest) Fingerprint() (string, error) {
	var value any
	if err := json.Unmarshal(m.raw, &value); err != nil {
		return "", fmt.Errorf("fingerprint manifest: %w", err)
	}

	canonical, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("fingerprint manifest: %w", err)
	}

	return fmt.Sprintf("%016x", xxhash.Sum64(canonical)), nil
}
