// Copyright 2026 The Backoffice Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := NewPasswordHasher(1024, 1, 1, 16, 32)

	encoded, err := h.Hash("correct-horse-battery-staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := h.Verify("correct-horse-battery-staple", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("Correct-horse-battery-staple", encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := h.Hash("correct-horse-battery-staple")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, other, "salts must differ")
}

func TestPasswordHasher_VerifyUsesEncodedParameters(t *testing.T) {
	old := NewPasswordHasher(1024, 1, 1, 16, 32)
	encoded, err := old.Hash("s3cret-password")
	require.NoError(t, err)

	current := NewPasswordHasher(2048, 2, 2, 16, 32)
	ok, err := current.Verify("s3cret-password", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPasswordHasher_VerifyRejectsMalformed(t *testing.T) {
	h := NewPasswordHasher(1024, 1, 1, 16, 32)
	for _, bad := range []string{"", "plaintext", "$bcrypt$v=19$m=1,t=1,p=1$aa$bb", "$argon2id$v=19$m=x$aa$bb"} {
		_, err := h.Verify("pw", bad)
		assert.ErrorIs(t, err, ErrMalformedHash, bad)
	}
}

func TestPasswordHasher_NeedsRehash(t *testing.T) {
	old := NewPasswordHasher(1024, 1, 1, 16, 32)
	encoded, err := old.Hash("s3cret-password")
	require.NoError(t, err)

	assert.False(t, old.NeedsRehash(encoded))
	assert.True(t, NewPasswordHasher(2048, 1, 1, 16, 32).NeedsRehash(encoded))
	assert.True(t, NewPasswordHasher(1024, 1, 1, 16, 64).NeedsRehash(encoded))
	assert.True(t, old.NeedsRehash("plaintext"))
}

func BenchmarkPasswordHasher_Hash(b *testing.B) {
	// RFC 9106 recommended parameters
	hasher := NewPasswordHasher(64*1024, 1, 4, 16, 32)
	for i := 0; i < b.N; i++ {
		if _, err := hasher.Hash("correct-horse-battery-staple"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPasswordHasher_Verify(b *testing.B) {
	hasher := NewPasswordHasher(64*1024, 1, 4, 16, 32)
	hash, _ := hasher.Hash("correct-horse-battery-staple")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		valid, err := hasher.Verify("correct-horse-battery-staple", hash)
		if err != nil || !valid {
			b.Fatalf("verify failed: %v", err)
		}
	}
}
