package wallet

import (
	"context"
	"fmt"

	"github.com/eve-tsu/eve-kasse/internal/models"
)

// WorkUnit is one (character, wallet division) combination that a sync
// cycle has to fetch.
type WorkUnit struct {
	CharacterID int64
	AccountKey  string
	RowCount    int
}

// ExpandWorkUnits enumerates the fetches required for one eligible
// keypair. Corporation keys cover every wallet division with the key's
// linked character as API parameter; personal keys cover each associated
// character's default division. The character listing goes through the
// API, so its failure is the caller's to isolate.
func ExpandWorkUnits(ctx context.Context, kp *models.Keypair, session Session, rowCount int) ([]WorkUnit, error) {
	if kp.IsCorporation() {
		var characterID int64
		if kp.CharacterID != nil {
			characterID = *kp.CharacterID
		}
		units := make([]WorkUnit, 0, len(models.AccountKeys))
		for _, accountKey := range models.AccountKeys {
			units = append(units, WorkUnit{
				CharacterID: characterID,
				AccountKey:  accountKey,
				RowCount:    rowCount,
			})
		}
		return units, nil
	}

	info, err := session.APIKeyInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing characters of key %d: %w", kp.KeyID, err)
	}
	units := make([]WorkUnit, 0, len(info.Characters))
	for _, character := range info.Characters {
		units = append(units, WorkUnit{
			CharacterID: character.CharacterID,
			AccountKey:  models.DefaultAccountKey,
			RowCount:    rowCount,
		})
	}
	return units, nil
}
