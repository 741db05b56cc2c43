package store

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DevZro/StockBot/internal/model"
	"github.com/DevZro/StockBot/internal/series"
)

// Store persists the price series and the prediction stats in one SQLite
// database so a daily cycle can commit both in a single transaction.
type Store struct {
	db       *sql.DB
	mu       sync.Mutex
	horizons []int
}

// Open opens (or creates) the SQLite database and runs migrations. The
// horizon set determines the feature columns of the series table.
func Open(dbPath string, horizons []int) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so the read-only API can serve while a cycle commits.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db, horizons: append([]int(nil), horizons...)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) featureColumns() []string {
	cols := make([]string, 0, 2*len(s.horizons))
	for _, h := range s.horizons {
		cols = append(cols, fmt.Sprintf("close_ratio_%d", h), fmt.Sprintf("trend_%d", h))
	}
	return cols
}

func (s *Store) migrate() error {
	var b strings.Builder
	b.WriteString(`CREATE TABLE IF NOT EXISTS series (
		date           TEXT PRIMARY KEY,
		open           REAL NOT NULL,
		high           REAL NOT NULL,
		low            REAL NOT NULL,
		close          REAL NOT NULL,
		tomorrow_close REAL,
		target         REAL`)
	for _, col := range s.featureColumns() {
		b.WriteString(",\n\t\t")
		b.WriteString(col)
		b.WriteString(" REAL")
	}
	b.WriteString("\n\t)")

	stmts := []string{
		b.String(),
		`CREATE TABLE IF NOT EXISTS stats (
			id                   INTEGER PRIMARY KEY CHECK (id = 1),
			total_signals_issued INTEGER NOT NULL,
			signals_correct      INTEGER NOT NULL,
			last_signal          INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %.40q: %w", stmt, err)
		}
	}
	return nil
}

// nullable maps NaN to SQL NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// floatOrNaN maps SQL NULL back to NaN.
func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func (s *Store) insertColumns() []string {
	return append([]string{"date", "open", "high", "low", "close", "tomorrow_close", "target"},
		s.featureColumns()...)
}

func (s *Store) rowArgs(r model.Row) []interface{} {
	args := []interface{}{
		r.DateKey(), r.Open, r.High, r.Low, r.Close,
		nullable(r.TomorrowClose), nullable(r.Target),
	}
	for _, h := range s.horizons {
		cr, ok := r.CloseRatio[h]
		if !ok {
			cr = math.NaN()
		}
		tr, ok := r.Trend[h]
		if !ok {
			tr = math.NaN()
		}
		args = append(args, nullable(cr), nullable(tr))
	}
	return args
}

func (s *Store) insertRow(tx *sql.Tx, r model.Row) error {
	cols := s.insertColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	query := fmt.Sprintf("INSERT INTO series (%s) VALUES (%s)",
		strings.Join(cols, ","), placeholders)
	_, err := tx.Exec(query, s.rowArgs(r)...)
	return err
}

// LoadSeries reads the full ordered series.
func (s *Store) LoadSeries() (*series.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf("SELECT %s FROM series ORDER BY date", strings.Join(s.insertColumns(), ","))
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		var dateKey string
		var open, high, low, closePx float64
		var tomorrow, target sql.NullFloat64
		features := make([]sql.NullFloat64, 2*len(s.horizons))

		dest := []interface{}{&dateKey, &open, &high, &low, &closePx, &tomorrow, &target}
		for i := range features {
			dest = append(dest, &features[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}

		date, err := time.Parse(model.DateFormat, dateKey)
		if err != nil {
			return nil, fmt.Errorf("bad stored date %q: %w", dateKey, err)
		}
		r := model.NewRow(model.Bar{Date: date, Open: open, High: high, Low: low, Close: closePx})
		r.TomorrowClose = floatOrNaN(tomorrow)
		r.Target = floatOrNaN(target)
		for i, h := range s.horizons {
			r.CloseRatio[h] = floatOrNaN(features[2*i])
			r.Trend[h] = floatOrNaN(features[2*i+1])
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	return series.New(out)
}

// LoadStats reads the stats record, returning zero counters when the store
// has never been written.
func (s *Store) LoadStats() (model.PredictionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st model.PredictionStats
	err := s.db.QueryRow(
		"SELECT total_signals_issued, signals_correct, last_signal FROM stats WHERE id = 1").
		Scan(&st.TotalSignalsIssued, &st.SignalsCorrect, &st.LastSignal)
	if err == sql.ErrNoRows {
		return model.PredictionStats{}, nil
	}
	if err != nil {
		return model.PredictionStats{}, fmt.Errorf("load stats: %w", err)
	}
	return st, nil
}

func upsertStats(tx *sql.Tx, st model.PredictionStats) error {
	_, err := tx.Exec(`INSERT INTO stats (id, total_signals_issued, signals_correct, last_signal)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_signals_issued = excluded.total_signals_issued,
			signals_correct      = excluded.signals_correct,
			last_signal          = excluded.last_signal`,
		st.TotalSignalsIssued, st.SignalsCorrect, st.LastSignal)
	return err
}

// ReplaceSeries rewrites the whole series and the stats record in one
// transaction, for the batch seed path.
func (s *Store) ReplaceSeries(sr *series.Series, st model.PredictionStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM series"); err != nil {
		return fmt.Errorf("clear series: %w", err)
	}
	for i := 0; i < sr.Len(); i++ {
		if err := s.insertRow(tx, *sr.At(i)); err != nil {
			return fmt.Errorf("insert row %s: %w", sr.At(i).DateKey(), err)
		}
	}
	if err := upsertStats(tx, st); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return tx.Commit()
}

// SaveCycle commits one incremental update atomically: the previous row's
// backfilled label, the newly appended row with its features, and the stats
// record. A partial write never becomes visible.
func (s *Store) SaveCycle(prev, appended model.Row, st model.PredictionStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin cycle: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE series SET tomorrow_close = ?, target = ? WHERE date = ?",
		nullable(prev.TomorrowClose), nullable(prev.Target), prev.DateKey())
	if err != nil {
		return fmt.Errorf("backfill row %s: %w", prev.DateKey(), err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("backfill row %s: %w", prev.DateKey(), err)
	} else if n != 1 {
		return fmt.Errorf("backfill row %s: %d rows matched", prev.DateKey(), n)
	}

	if err := s.insertRow(tx, appended); err != nil {
		return fmt.Errorf("append row %s: %w", appended.DateKey(), err)
	}
	if err := upsertStats(tx, st); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
