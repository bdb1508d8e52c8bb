package store

import "os"

// Stats holds database statistics.
type Stats struct {
	DBPath        string          `json:"db_path"`
	DBSizeBytes   int64           `json:"db_size_bytes"`
	TotalMemories int             `json:"total_memories"`
	TotalVectors  int             `json:"total_vectors"`
	TotalTokens   int             `json:"total_tokens"`
	Categories    []CategoryStats `json:"categories"`
}

// CategoryStats holds per-category counts and decay aggregates.
type CategoryStats struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	MinDecay int     `json:"min_decay"`
	AvgDecay float64 `json:"avg_decay"`
	MaxDecay int     `json:"max_decay"`
}

// Stats returns database statistics, optionally scoped to a user.
func (db *DB) Stats(userID string) (*Stats, error) {
	st := &Stats{DBPath: db.Path}

	if info, err := os.Stat(db.Path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	where := ""
	args := []any{}
	if userID != "" {
		where = " WHERE user_id = ?"
		args = append(args, userID)
	}

	db.QueryRow(`SELECT COUNT(*) FROM memories`+where, args...).Scan(&st.TotalMemories)
	db.QueryRow(`SELECT COUNT(*) FROM memory_vectors`+where, args...).Scan(&st.TotalVectors)
	db.QueryRow(`SELECT COALESCE(SUM(token_count), 0) FROM memories`+where, args...).Scan(&st.TotalTokens)

	rows, err := db.Query(`
		SELECT category, COUNT(*), MIN(decay), AVG(decay), MAX(decay)
		FROM memories`+where+`
		GROUP BY category ORDER BY COUNT(*) DESC`, args...)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var cs CategoryStats
		rows.Scan(&cs.Category, &cs.Count, &cs.MinDecay, &cs.AvgDecay, &cs.MaxDecay)
		st.Categories = append(st.Categories, cs)
	}

	return st, rows.Err()
}
