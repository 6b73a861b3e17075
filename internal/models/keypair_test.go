package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeypair_GrantsAccessTo(t *testing.T) {
	t.Run("corporation bits", func(t *testing.T) {
		kp := &Keypair{Type: KeyTypeCorporation, AccessMask: 1048576 | 2097152}
		assert.True(t, kp.GrantsAccessTo(CapWalletJournal))
		assert.True(t, kp.GrantsAccessTo(CapWalletTransactions))

		kp.AccessMask = 1048576
		assert.True(t, kp.GrantsAccessTo(CapWalletJournal))
		assert.False(t, kp.GrantsAccessTo(CapWalletTransactions))
	})

	t.Run("character bits differ from corporation bits", func(t *testing.T) {
		// 1048576 is the corporation journal bit; for character keys it
		// means nothing wallet-related.
		kp := &Keypair{Type: KeyTypeCharacter, AccessMask: 1048576}
		assert.False(t, kp.GrantsAccessTo(CapWalletJournal))
		assert.False(t, kp.GrantsAccessTo(CapWalletTransactions))

		kp.AccessMask = 2097152 | 4194304
		assert.True(t, kp.GrantsAccessTo(CapWalletJournal))
		assert.True(t, kp.GrantsAccessTo(CapWalletTransactions))
	})

	t.Run("account keys alias character bits", func(t *testing.T) {
		character := &Keypair{Type: KeyTypeCharacter, AccessMask: 2097152 | 4194304}
		account := &Keypair{Type: KeyTypeAccount, AccessMask: 2097152 | 4194304}
		assert.Equal(t, character.GrantsWalletAccess(), account.GrantsWalletAccess())
		assert.True(t, account.GrantsWalletAccess())
	})

	t.Run("unknown key type grants nothing", func(t *testing.T) {
		kp := &Keypair{Type: KeyType("Alliance"), AccessMask: ^int64(0)}
		assert.False(t, kp.GrantsAccessTo(CapWalletJournal))
	})
}

func TestKeypair_GrantsWalletAccess(t *testing.T) {
	cases := []struct {
		name string
		mask int64
		want bool
	}{
		{"both bits", 2097152 | 4194304, true},
		{"journal only", 2097152, false},
		{"transactions only", 4194304, false},
		{"no bits", 0, false},
		{"full mask", 268435455, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kp := &Keypair{Type: KeyTypeAccount, AccessMask: tc.mask}
			assert.Equal(t, tc.want, kp.GrantsWalletAccess())
			assert.Equal(t,
				kp.GrantsAccessTo(CapWalletJournal) && kp.GrantsAccessTo(CapWalletTransactions),
				kp.GrantsWalletAccess())
		})
	}
}

func TestKeypair_EligibleForSync(t *testing.T) {
	now := time.Date(2015, 3, 14, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	base := Keypair{Type: KeyTypeAccount, AccessMask: 2097152 | 4194304, Valid: true}

	t.Run("valid without expiry", func(t *testing.T) {
		kp := base
		assert.True(t, kp.EligibleForSync(now))
	})

	t.Run("valid with future expiry", func(t *testing.T) {
		kp := base
		kp.Expires = &future
		assert.True(t, kp.EligibleForSync(now))
	})

	t.Run("expired", func(t *testing.T) {
		kp := base
		kp.Expires = &past
		assert.False(t, kp.EligibleForSync(now))
	})

	t.Run("expiry exactly now is not in the future", func(t *testing.T) {
		kp := base
		at := now
		kp.Expires = &at
		assert.False(t, kp.EligibleForSync(now))
	})

	t.Run("invalidated", func(t *testing.T) {
		kp := base
		kp.Valid = false
		assert.False(t, kp.EligibleForSync(now))
	})

	t.Run("missing capability", func(t *testing.T) {
		kp := base
		kp.AccessMask = 2097152
		assert.False(t, kp.EligibleForSync(now))
	})
}
