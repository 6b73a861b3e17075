package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKeys is the fixed set of corporation wallet divisions. Personal
// wallets only ever use the first one.
var AccountKeys = []string{"1000", "1001", "1002", "1003", "1004", "1005", "1006"}

// DefaultAccountKey is the wallet division of personal (non-corporation)
// accounts.
const DefaultAccountKey = "1000"

// WalletJournalEntry is one immutable journal event: bounties, taxes, fees,
// mission rewards, player-to-player payments and the like.
type WalletJournalEntry struct {
	RefID         int64           `json:"refID" db:"refID"`
	AccountKey    string          `json:"accountKey" db:"accountKey"`
	CorporationID *int64          `json:"corporationID,omitempty" db:"corporationID"`
	CharacterID   *int64          `json:"characterID,omitempty" db:"character"`
	Datetime      time.Time       `json:"datetime" db:"datetime"`
	RefTypeID     int             `json:"refTypeID" db:"refTypeID"` // e.g. 85=bounty tax, 33=mission reward tax
	OwnerName1    string          `json:"ownerName1" db:"ownerName1"`
	OwnerID1      int64           `json:"ownerID1" db:"ownerID1"`
	OwnerName2    string          `json:"ownerName2" db:"ownerName2"`
	OwnerID2      int64           `json:"ownerID2" db:"ownerID2"`
	ArgName1      *string         `json:"argName1,omitempty" db:"argName1"`
	ArgID1        int64           `json:"argID1" db:"argID1"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Balance       *decimal.Decimal `json:"balance,omitempty" db:"balance"`
	Reason        *string         `json:"reason,omitempty" db:"reason"`
	TaxReceiverID *int64          `json:"taxReceiverID,omitempty" db:"taxReceiverID"`
	TaxAmount     *decimal.Decimal `json:"taxAmount,omitempty" db:"taxAmount"`
	TagID         *int            `json:"tag,omitempty" db:"tag"`
}

// WalletTransaction is one immutable market trade: who bought or sold how
// many of what, where, and for which price.
type WalletTransaction struct {
	TransactionID        int64           `json:"transactionID" db:"transaction"`
	AccountKey           string          `json:"accountKey" db:"accountKey"`
	CorporationID        *int64          `json:"corporationID,omitempty" db:"corporationID"`
	CharacterID          *int64          `json:"characterID,omitempty" db:"character"`
	Datetime             time.Time       `json:"datetime" db:"datetime"`
	Quantity             int64           `json:"quantity" db:"quantity"`
	TypeName             *string         `json:"typeName,omitempty" db:"typeName"`
	TypeID               int64           `json:"typeID" db:"typeID"`
	Price                decimal.Decimal `json:"price" db:"price"`
	ClientID             int64           `json:"clientID" db:"clientID"`
	ClientName           string          `json:"clientName" db:"clientName"`
	StationID            int64           `json:"stationID" db:"stationID"`
	StationName          string          `json:"stationName" db:"stationName"`
	TransactionType      string          `json:"transactionType" db:"transactionType"` // buy or sell
	TransactionFor       string          `json:"transactionFor" db:"transactionFor"`   // personal or corporation
	ExecutorID           int64           `json:"executorID" db:"executorID"`
	ExecutorName         string          `json:"executorName" db:"executorName"`
	JournalTransactionID *int64          `json:"journalTransactionID,omitempty" db:"journalTransactionID"`
	TagID                *int            `json:"tag,omitempty" db:"tag"`
}

// WalletTag labels synced wallet rows for reporting. A tag belongs either
// to a user or to a corporation, never both.
type WalletTag struct {
	ID            int    `json:"tag" db:"tag"`
	UserID        *int   `json:"userID,omitempty" db:"user"`
	CorporationID *int64 `json:"corporationID,omitempty" db:"corporationID"`
	Name          string `json:"tagname" db:"tagname"`
}

// DefaultItemTag pre-assigns a tag to every trade of one item type within
// a scope, so recurring trade lines are labelled without manual work.
type DefaultItemTag struct {
	ID            int    `json:"id" db:"id"`
	UserID        *int   `json:"userID,omitempty" db:"user"`
	CorporationID *int64 `json:"corporationID,omitempty" db:"corporationID"`
	AccountKey    string `json:"accountKey" db:"accountKey"`
	TypeID        int64  `json:"typeID" db:"typeID"`
	Name          string `json:"tagname" db:"tagname"`
}
