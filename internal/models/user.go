package models

import (
	"time"
)

// User is a registered person. Keypairs, characters and tags hang off a
// user account.
type User struct {
	ID           int       `json:"id" db:"user"`
	Name         string    `json:"name" db:"name"`
	EmailAddress string    `json:"email" db:"email"`
	Timezone     string    `json:"timezone" db:"timezone"`
	PasswordHash string    `json:"-" db:"password"`
	Created      time.Time `json:"created" db:"created"`
	Enabled      bool      `json:"enabled" db:"enabled"`
}

// Character is one EVE character ("toon"). An account can have up to three.
type Character struct {
	CharacterID   int64  `json:"characterID" db:"character"`
	Name          string `json:"name" db:"toon_name"`
	CorporationID int64  `json:"corporationID" db:"corporationID"`
	UserID        int    `json:"userID" db:"user"`
}

// Corporation is an EVE corporation, player-run or NPC.
type Corporation struct {
	CorporationID int64  `json:"corporationID" db:"corporationID"`
	Name          string `json:"name" db:"corp_name"`
}
