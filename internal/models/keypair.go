package models

import (
	"time"
)

// KeyType is the scope of an EVE API keypair as reported by the key
// management site.
type KeyType string

const (
	KeyTypeAccount     KeyType = "Account"
	KeyTypeCharacter   KeyType = "Character"
	KeyTypeCorporation KeyType = "Corporation"
)

// Capability names one category of data a keypair may be allowed to read.
type Capability string

const (
	CapWalletJournal      Capability = "WalletJournal"
	CapWalletTransactions Capability = "WalletTransactions"
)

// The EVE API encodes permissions as a bitmask whose bit values differ
// between corporation and character keys. Account keys share the character
// bit values.
var characterAccessBits = map[Capability]int64{
	CapWalletJournal:      2097152,
	CapWalletTransactions: 4194304,
}

var accessBits = map[KeyType]map[Capability]int64{
	KeyTypeCorporation: {
		CapWalletJournal:      1048576,
		CapWalletTransactions: 2097152,
	},
	KeyTypeCharacter: characterAccessBits,
	KeyTypeAccount:   characterAccessBits,
}

// Keypair is one registered EVE API credential (keyID + verification code).
type Keypair struct {
	KeyID         int64      `json:"keyID" db:"keyid"`
	VCode         string     `json:"-" db:"vcode"`
	AccessMask    int64      `json:"accessMask" db:"access_mask"`
	Type          KeyType    `json:"type" db:"key_type"`
	CorporationID *int64     `json:"corporationID,omitempty" db:"key_corporation"` // corporation keys only
	CharacterID   *int64     `json:"characterID,omitempty" db:"key_character"`     // corporation keys only
	Announced     time.Time  `json:"announced" db:"announced"`
	Expires       *time.Time `json:"expires,omitempty" db:"expires"`
	Valid         bool       `json:"valid" db:"valid"`
	UserID        int        `json:"userID" db:"user"`
}

// GrantsAccessTo reports whether the keypair's access mask carries the bit
// required to read the given data category for its key type.
func (k *Keypair) GrantsAccessTo(c Capability) bool {
	bits, ok := accessBits[k.Type]
	if !ok {
		return false
	}
	bit, ok := bits[c]
	if !ok {
		return false
	}
	return k.AccessMask&bit != 0
}

// GrantsWalletAccess reports whether both the journal and the transaction
// log can be read with this keypair.
func (k *Keypair) GrantsWalletAccess() bool {
	return k.GrantsAccessTo(CapWalletJournal) && k.GrantsAccessTo(CapWalletTransactions)
}

// EligibleForSync reports whether the keypair should be picked up by the
// wallet synchronization run: it must grant wallet access, still be marked
// valid and not be expired at the given instant.
func (k *Keypair) EligibleForSync(now time.Time) bool {
	if !k.Valid {
		return false
	}
	if k.Expires != nil && !k.Expires.After(now) {
		return false
	}
	return k.GrantsWalletAccess()
}

// IsCorporation reports whether the keypair is scoped to a corporation
// wallet rather than to the characters of an account.
func (k *Keypair) IsCorporation() bool {
	return k.Type == KeyTypeCorporation
}
