package wallet

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/eve-tsu/eve-kasse/internal/eveapi"
)

// MapRow translates one API row into a column→value record for kind.
//
// common carries the caller-supplied scoping values (accountKey,
// corporationID, character); they are seeded first and the source row never
// collides with them. For each source field the conversion table decides:
// rename (optionally with a value transform), verbatim copy when the target
// table has a column of the same name, or drop with a debug diagnostic.
// Empty source values become NULL before any transform runs.
func MapRow(kind *RecordKind, row eveapi.Row, common map[string]any, log *logrus.Logger) (map[string]any, error) {
	vals := make(map[string]any, len(common)+len(row))
	for k, v := range common {
		vals[k] = v
	}
	for field, raw := range row {
		var value any = raw
		if raw == "" {
			value = nil
		}
		if conv, ok := kind.conversions[field]; ok {
			if conv.transform != nil && value != nil {
				converted, err := conv.transform(raw)
				if err != nil {
					return nil, fmt.Errorf("converting %s field %s: %w", kind.Name, field, err)
				}
				value = converted
			}
			vals[conv.column] = value
			continue
		}
		if _, ok := kind.columnSet[field]; ok {
			vals[field] = value
			continue
		}
		log.WithFields(logrus.Fields{
			"kind":  kind.Name,
			"field": field,
		}).Debug("source field has no target column, dropped")
	}
	return vals, nil
}

// MapRows maps a whole response batch.
func MapRows(kind *RecordKind, rows []eveapi.Row, common map[string]any, log *logrus.Logger) ([]map[string]any, error) {
	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		record, err := MapRow(kind, row, common, log)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
