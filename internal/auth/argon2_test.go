// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_Format(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse battery staple", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v="), "hash should start with $argon2id$v=")
}

func TestComparePasswordAndHash(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter2hunter2", nil)
	require.NoError(t, err)

	ok, err := ComparePasswordAndHash("hunter2hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePasswordAndHash("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComparePasswordAndHash_MalformedHashes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hash string
		want error
	}{
		{name: "too few segments", hash: "$argon2id$v=19$salt$hash", want: ErrInvalidHash},
		{name: "wrong version", hash: "$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA", want: ErrIncompatibleVersion},
		{name: "bad params", hash: "$argon2id$v=19$invalid$c2FsdA$aGFzaA", want: ErrInvalidHash},
		{name: "bad salt encoding", hash: "$argon2id$v=19$m=65536,t=3,p=2$!!!bad!!$aGFzaA", want: ErrInvalidHash},
		{name: "bad key encoding", hash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$!!!bad!!", want: ErrInvalidHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ComparePasswordAndHash("password", tt.hash)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	t.Parallel()

	a, err := HashPassword("same password", nil)
	require.NoError(t, err)
	b, err := HashPassword("same password", nil)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
