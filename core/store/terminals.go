package store

import (
	"context"

	"gorm.io/gorm/clause"
)

// UpsertTerminal records which processor a terminal settles through.
func (s *Store) UpsertTerminal(ctx context.Context, terminalID, processor string) error {
	row := TerminalRow{TerminalID: terminalID, Processor: processor}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "terminal_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"processor", "updated_at"}),
		}).
		Create(&row).Error
	return persistence("upsert terminal", err)
}

// Processors maps terminal ids to processor names.
func (s *Store) Processors(ctx context.Context) (map[string]string, error) {
	var rows []TerminalRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, persistence("list terminals", err)
	}

	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.TerminalID] = r.Processor
	}
	return out, nil
}
