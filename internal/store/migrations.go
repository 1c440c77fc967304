package store

// runMigrations creates the schema. Every statement is idempotent.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Photo references in upload order; seq keeps insertion order stable
		// when timestamps collide.
		`CREATE TABLE IF NOT EXISTS photos (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Named scene presets: a group list plus the target mix to apply.
		`CREATE TABLE IF NOT EXISTS presets (
			name TEXT PRIMARY KEY,
			target_mix REAL NOT NULL DEFAULT 1 CHECK(target_mix IN (0, 1)),
			groups_json TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_presets_updated_at ON presets(updated_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}
