package archive

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/alchemgo/alchemgo/errors"
	"github.com/alchemgo/alchemgo/estimator"
	"github.com/alchemgo/alchemgo/series"
)

// Store reads and writes estimator results in an opened archive
// database. The zero Store is not usable; construct with NewStore.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewStore wraps an opened archive database. If logger is nil the
// store operates silently.
func NewStore(db *sql.DB, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, log: logger}
}

// Record is one archived estimator run.
type Record struct {
	Result    *estimator.Result
	CreatedAt time.Time
}

// Summary is the listing view of an archived run.
type Summary struct {
	RunID     uuid.UUID
	Method    string
	States    int
	Converged bool
	CreatedAt time.Time
}

// Save archives one estimator result, keyed by its run id. Saving the
// same run twice is an error; run ids are unique per invocation.
func (s *Store) Save(res *estimator.Result) error {
	if res == nil || res.DeltaF == nil || res.DDeltaF == nil {
		return errors.Wrap(errors.ErrInvalidInput, "result has no matrices to archive")
	}

	states, err := json.Marshal(res.States)
	if err != nil {
		return errors.Wrap(err, "encode states")
	}
	deltaF, err := json.Marshal(denseRows(res.DeltaF))
	if err != nil {
		return errors.Wrap(err, "encode delta_f")
	}
	dDeltaF, err := json.Marshal(symRows(res.DDeltaF))
	if err != nil {
		return errors.Wrap(err, "encode ddelta_f")
	}
	var overlap any
	if res.Overlap != nil {
		encoded, oerr := json.Marshal(denseRows(res.Overlap))
		if oerr != nil {
			return errors.Wrap(oerr, "encode overlap")
		}
		overlap = string(encoded)
	}

	d := res.Diagnostics
	_, err = s.db.Exec(`
		INSERT INTO runs (id, method, iterations, final_residual, converged, states, delta_f, ddelta_f, overlap)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RunID.String(), d.Method, d.Iterations, d.FinalResidual, d.Converged,
		string(states), string(deltaF), string(dDeltaF), overlap,
	)
	if err != nil {
		return errors.Wrapf(err, "insert run %s", d.RunID)
	}

	if s.log != nil {
		s.log.Infow("Archived estimator run",
			"run_id", d.RunID,
			"method", d.Method,
			"states", len(res.States),
		)
	}
	return nil
}

// Get loads one archived run by id. A missing id yields ErrRunNotFound.
func (s *Store) Get(runID uuid.UUID) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT method, iterations, final_residual, converged, states, delta_f, ddelta_f, overlap, created_at
		FROM runs WHERE id = ?`, runID.String())

	var (
		d         estimator.Diagnostics
		states    string
		deltaF    string
		dDeltaF   string
		overlap   sql.NullString
		createdAt time.Time
	)
	d.RunID = runID
	err := row.Scan(&d.Method, &d.Iterations, &d.FinalResidual, &d.Converged,
		&states, &deltaF, &dDeltaF, &overlap, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load run %s", runID)
	}

	res := &estimator.Result{Diagnostics: d}
	if err := json.Unmarshal([]byte(states), &res.States); err != nil {
		return nil, errors.Wrapf(err, "decode states of run %s", runID)
	}
	if res.DeltaF, err = decodeDense(deltaF); err != nil {
		return nil, errors.Wrapf(err, "decode delta_f of run %s", runID)
	}
	if res.DDeltaF, err = decodeSym(dDeltaF); err != nil {
		return nil, errors.Wrapf(err, "decode ddelta_f of run %s", runID)
	}
	if overlap.Valid {
		if res.Overlap, err = decodeDense(overlap.String); err != nil {
			return nil, errors.Wrapf(err, "decode overlap of run %s", runID)
		}
	}
	return &Record{Result: res, CreatedAt: createdAt}, nil
}

// List returns summaries of every archived run, newest first.
func (s *Store) List() ([]Summary, error) {
	rows, err := s.db.Query(`
		SELECT id, method, states, converged, created_at
		FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			id     string
			sum    Summary
			states string
		)
		if err := rows.Scan(&id, &sum.Method, &states, &sum.Converged, &sum.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan run row")
		}
		if sum.RunID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "run id %q", id)
		}
		var st []series.LambdaState
		if err := json.Unmarshal([]byte(states), &st); err != nil {
			return nil, errors.Wrapf(err, "decode states of run %s", id)
		}
		sum.States = len(st)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate runs")
	}
	return out, nil
}

func denseRows(m *mat.Dense) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = m.At(i, j)
		}
		out[i] = row
	}
	return out
}

func symRows(m *mat.SymDense) [][]float64 {
	n := m.SymmetricDim()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, n)
		for j := 0; j < n; j++ {
			row[j] = m.At(i, j)
		}
		out[i] = row
	}
	return out
}

func decodeDense(encoded string) (*mat.Dense, error) {
	rows, err := decodeRows(encoded)
	if err != nil {
		return nil, err
	}
	r := len(rows)
	c := len(rows[0])
	m := mat.NewDense(r, c, nil)
	for i, row := range rows {
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m, nil
}

func decodeSym(encoded string) (*mat.SymDense, error) {
	rows, err := decodeRows(encoded)
	if err != nil {
		return nil, err
	}
	n := len(rows)
	if len(rows[0]) != n {
		return nil, errors.Newf("symmetric matrix is %dx%d", n, len(rows[0]))
	}
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			m.SetSym(i, j, rows[i][j])
		}
	}
	return m, nil
}

func decodeRows(encoded string) ([][]float64, error) {
	var rows [][]float64
	if err := json.Unmarshal([]byte(encoded), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("empty matrix")
	}
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, errors.Newf("ragged matrix row %d", i)
		}
	}
	return rows, nil
}
