package parsing

import (
	"bufio"
	"io"
	"strings"

	"github.com/alchemgo/alchemgo/errors"
	"github.com/alchemgo/alchemgo/logger"
	"github.com/alchemgo/alchemgo/series"
)

// GROMACS dhdl.xvg conventions. Legends carry xmgrace escape codes
// verbatim: the dH/dlambda columns are labelled
// "dH/d\xl\f{} <name>-lambda = <value>" and the Hamiltonian difference
// columns "\xD\f{}H \xl\f{} to <value>". Data column 0 is time in ps,
// column 1 the potential energy and the last column pV.
const (
	xvgGradientLegend  = `dH/d`
	xvgDeltaHLegend    = `\xD\f{}H \xl\f{}`
	xvgLegendSeparator = " to "
)

type xvgFile struct {
	legends []string    // legend of data column i+1
	data    [][]float64 // rows, column 0 is time
}

// readXVG splits an XVG stream into legends and the numeric table.
// '#' lines are comments; '@' lines are grace directives, of which
// only "s<N> legend" is meaningful here.
func readXVG(r io.Reader) (*xvgFile, error) {
	out := &xvgFile{}
	cols := 0
	lineno := 0
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "@") {
			if idx, legend, ok := parseLegendDirective(line); ok {
				for len(out.legends) <= idx {
					out.legends = append(out.legends, "")
				}
				out.legends[idx] = legend
			}
			continue
		}

		vals, err := parseFields(strings.Fields(line), cols, lineno)
		if err != nil {
			return nil, err
		}
		if cols == 0 {
			cols = len(vals)
			if cols < 2 {
				return nil, errors.Wrapf(errors.ErrInvalidInput,
					"line %d: data needs a time column and at least one value column", lineno)
			}
		}
		if len(out.data) > 0 && vals[0] <= out.data[len(out.data)-1][0] {
			return nil, errors.Wrapf(errors.ErrInvalidInput,
				"line %d: time not strictly increasing", lineno)
		}
		out.data = append(out.data, vals)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading xvg stream")
	}
	if len(out.data) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "xvg stream holds no data rows")
	}
	return out, nil
}

// parseLegendDirective extracts (column index, text) from a
// `@ s<N> legend "<text>"` directive.
func parseLegendDirective(line string) (int, string, bool) {
	fields := strings.Fields(strings.TrimPrefix(line, "@"))
	if len(fields) < 3 || fields[1] != "legend" || !strings.HasPrefix(fields[0], "s") {
		return 0, "", false
	}
	idx := 0
	for _, c := range fields[0][1:] {
		if c < '0' || c > '9' {
			return 0, "", false
		}
		idx = idx*10 + int(c-'0')
	}
	first := strings.Index(line, `"`)
	last := strings.LastIndex(line, `"`)
	if first < 0 || last <= first {
		return 0, "", false
	}
	return idx, line[first+1 : last], true
}

// ExtractXVGGradients reads the dH/dlambda columns of a GROMACS dhdl
// XVG file into a gradient series in reduced units. The lambda vector
// of the sampled state is recovered from the "= <value>" suffix of
// each gradient legend; the state index is the caller's to assign.
func ExtractXVGGradients(r io.Reader, temperature float64) (*series.Gradients, error) {
	beta, err := Beta(temperature)
	if err != nil {
		return nil, err
	}
	xvg, err := readXVG(r)
	if err != nil {
		return nil, err
	}

	var dataCols []int
	var components []float64
	for i, legend := range xvg.legends {
		if !strings.Contains(legend, xvgGradientLegend) {
			continue
		}
		lambda, err := legendLambda(legend)
		if err != nil {
			return nil, err
		}
		dataCols = append(dataCols, i+1)
		components = append(components, lambda)
	}
	if len(dataCols) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "xvg stream has no dH/dl legends")
	}

	g := &series.Gradients{
		State:   series.LambdaState{Components: components},
		Time:    make([]float64, len(xvg.data)),
		Samples: make([][]float64, len(xvg.data)),
	}
	for n, row := range xvg.data {
		if err := checkColumns(row, dataCols, n); err != nil {
			return nil, err
		}
		g.Time[n] = row[0]
		sample := make([]float64, len(dataCols))
		for c, col := range dataCols {
			sample[c] = beta * row[col]
		}
		g.Samples[n] = sample
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	logger.Logger.Debugw("extracted xvg gradients",
		"frames", g.Len(), "components", g.Components(), "lambda", components)
	return g, nil
}

// ExtractXVGPotentials reads the Hamiltonian difference columns of a
// GROMACS dhdl XVG file into a reduced potential table:
// u_l = beta*(dH_{l} + U + pV) per frame, one target per dH legend
// with the target lambda taken from the legend's " to <value>" suffix.
func ExtractXVGPotentials(r io.Reader, temperature float64) (*PotentialTable, error) {
	beta, err := Beta(temperature)
	if err != nil {
		return nil, err
	}
	xvg, err := readXVG(r)
	if err != nil {
		return nil, err
	}

	var dhCols []int
	var targets [][]float64
	var sampled []float64
	for i, legend := range xvg.legends {
		switch {
		case strings.Contains(legend, xvgDeltaHLegend):
			parts := strings.SplitN(legend, xvgLegendSeparator, 2)
			if len(parts) != 2 {
				return nil, errors.Wrapf(errors.ErrInvalidInput,
					"delta-H legend %q has no target lambda", legend)
			}
			lambda, perr := parseFloat(strings.TrimSpace(parts[1]))
			if perr != nil {
				return nil, errors.Wrapf(errors.ErrInvalidInput,
					"delta-H legend %q: target lambda is not numeric", legend)
			}
			dhCols = append(dhCols, i+1)
			targets = append(targets, []float64{lambda})
		case strings.Contains(legend, xvgGradientLegend):
			lambda, lerr := legendLambda(legend)
			if lerr != nil {
				return nil, lerr
			}
			sampled = append(sampled, lambda)
		}
	}
	if len(dhCols) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "xvg stream has no delta-H legends")
	}

	// U is the first data column after time, pV the last.
	uCol := 1
	pvCol := len(xvg.data[0]) - 1

	table := &PotentialTable{
		State:   series.LambdaState{Components: sampled},
		Time:    make([]float64, len(xvg.data)),
		Targets: targets,
		Rows:    make([][]float64, len(xvg.data)),
	}
	for n, row := range xvg.data {
		if err := checkColumns(row, dhCols, n); err != nil {
			return nil, err
		}
		table.Time[n] = row[0]
		out := make([]float64, len(dhCols))
		for j, col := range dhCols {
			out[j] = beta * (row[col] + row[uCol] + row[pvCol])
		}
		table.Rows[n] = out
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	logger.Logger.Debugw("extracted xvg potentials",
		"frames", len(table.Rows), "targets", len(targets))
	return table, nil
}

// legendLambda parses the "= <value>" suffix of a gradient legend.
func legendLambda(legend string) (float64, error) {
	_, after, found := strings.Cut(legend, "=")
	if !found {
		return 0, errors.Wrapf(errors.ErrInvalidInput,
			"gradient legend %q carries no lambda value", legend)
	}
	v, err := parseFloat(strings.TrimSpace(after))
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidInput,
			"gradient legend %q: lambda value is not numeric", legend)
	}
	return v, nil
}

func checkColumns(row []float64, cols []int, frame int) error {
	for _, col := range cols {
		if col >= len(row) {
			return errors.Wrapf(errors.ErrInvalidInput,
				"frame %d is missing data column %d", frame, col)
		}
	}
	return nil
}
