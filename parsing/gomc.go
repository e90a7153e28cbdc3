package parsing

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/alchemgo/alchemgo/errors"
	"github.com/alchemgo/alchemgo/logger"
	"github.com/alchemgo/alchemgo/series"
)

// GOMC free-energy table conventions. The preamble carries a line like
//
//	#T = 300 K, Lambda State 4: (Coulomb, VDW) = (0.5, 0.75)
//
// naming the sampled state index and its lambda vector, and a header
// line starting with "#Steps" whose retained columns are the total
// energy, the dU/dL gradients, the DelE Hamiltonian differences with
// "->(<coulomb>,<vdw>)" target suffixes, and pV.
const (
	gomcHeaderPrefix = "#Steps"
	gomcEnergyCol    = "Total_En"
	gomcGradientCol  = "dU/dL"
	gomcDeltaECol    = "DelE"
	gomcPressureCol  = "PV"
)

type gomcFile struct {
	state   int
	lambdas []float64   // sampled (Coulomb, VDW) vector
	names   []string    // retained column names, in table order
	data    [][]float64 // rows, column 0 is the step
}

func readGOMC(r io.Reader) (*gomcFile, error) {
	out := &gomcFile{state: -1}
	lineno := 0
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, gomcHeaderPrefix) {
			for _, field := range strings.Fields(line)[1:] {
				switch {
				case strings.HasPrefix(field, gomcEnergyCol),
					strings.HasPrefix(field, gomcGradientCol),
					strings.HasPrefix(field, gomcDeltaECol),
					strings.HasPrefix(field, gomcPressureCol):
					out.names = append(out.names, field)
				}
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			if strings.Contains(line, "State") && out.state < 0 {
				if err := out.parseStateLine(line, lineno); err != nil {
					return nil, err
				}
			}
			continue
		}

		if len(out.names) == 0 {
			return nil, errors.Wrapf(errors.ErrInvalidInput,
				"line %d: data before the %s header", lineno, gomcHeaderPrefix)
		}
		vals, err := parseFields(strings.Fields(line), len(out.names)+1, lineno)
		if err != nil {
			return nil, err
		}
		if len(out.data) > 0 && vals[0] <= out.data[len(out.data)-1][0] {
			return nil, errors.Wrapf(errors.ErrInvalidInput,
				"line %d: step not strictly increasing", lineno)
		}
		out.data = append(out.data, vals)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading gomc stream")
	}
	if len(out.data) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gomc stream holds no data rows")
	}
	if out.state < 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gomc stream names no sampled state")
	}
	return out, nil
}

// parseStateLine extracts the sampled state index and lambda vector
// from the "Lambda State <n>: ... = (<coulomb>, <vdw>)" preamble line.
func (g *gomcFile) parseStateLine(line string, lineno int) error {
	_, after, found := strings.Cut(line, "State")
	if !found {
		return errors.Wrapf(errors.ErrInvalidInput, "line %d: malformed state line", lineno)
	}
	idxText, _, found := strings.Cut(after, ":")
	if !found {
		return errors.Wrapf(errors.ErrInvalidInput, "line %d: malformed state line", lineno)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(idxText))
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidInput,
			"line %d: state index %q is not an integer", lineno, strings.TrimSpace(idxText))
	}

	eq := strings.LastIndex(line, "=")
	if eq < 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "line %d: state line has no lambda vector", lineno)
	}
	lambdas, err := parseLambdaTuple(line[eq+1:])
	if err != nil {
		return errors.Wrapf(err, "line %d", lineno)
	}
	g.state = idx
	g.lambdas = lambdas
	return nil
}

// parseLambdaTuple parses "(0.5, 0.75)" or a bare scalar into a
// lambda vector.
func parseLambdaTuple(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := parseFloat(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput,
				"lambda component %q is not numeric", strings.TrimSpace(p))
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty lambda vector")
	}
	return out, nil
}

// ExtractGOMCGradients reads the dU/dL columns of a GOMC free-energy
// table into a gradient series in reduced units, one component per
// coupling parameter.
func ExtractGOMCGradients(r io.Reader, temperature float64) (*series.Gradients, error) {
	beta, err := Beta(temperature)
	if err != nil {
		return nil, err
	}
	file, err := readGOMC(r)
	if err != nil {
		return nil, err
	}

	var dataCols []int
	for i, name := range file.names {
		if strings.HasPrefix(name, gomcGradientCol) {
			dataCols = append(dataCols, i+1)
		}
	}
	if len(dataCols) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gomc stream has no dU/dL columns")
	}
	if len(dataCols) != len(file.lambdas) {
		return nil, errors.Wrapf(errors.ErrInvalidInput,
			"%d dU/dL columns but %d lambda components", len(dataCols), len(file.lambdas))
	}

	g := &series.Gradients{
		State:   series.LambdaState{Index: file.state, Components: file.lambdas},
		Time:    make([]float64, len(file.data)),
		Samples: make([][]float64, len(file.data)),
	}
	for n, row := range file.data {
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
	logger.Logger.Debugw("extracted gomc gradients",
		"state", file.state, "frames", g.Len(), "components", g.Components())
	return g, nil
}

// ExtractGOMCPotentials reads the DelE columns of a GOMC free-energy
// table into a reduced potential table: u_l = beta*(DelE_l + U + pV)
// per frame, with each target lambda vector taken from the column's
// "->(...)" suffix. The U and pV terms are omitted when the table
// lacks those columns, matching the files GOMC emits without them.
func ExtractGOMCPotentials(r io.Reader, temperature float64) (*PotentialTable, error) {
	beta, err := Beta(temperature)
	if err != nil {
		return nil, err
	}
	file, err := readGOMC(r)
	if err != nil {
		return nil, err
	}

	uCol, pvCol := -1, -1
	var deCols []int
	var targets [][]float64
	for i, name := range file.names {
		switch {
		case strings.HasPrefix(name, gomcEnergyCol):
			uCol = i + 1
		case strings.HasPrefix(name, gomcPressureCol):
			pvCol = i + 1
		case strings.HasPrefix(name, gomcDeltaECol):
			_, suffix, found := strings.Cut(name, "->")
			if !found {
				return nil, errors.Wrapf(errors.ErrInvalidInput,
					"DelE column %q has no target lambda suffix", name)
			}
			lambdas, terr := parseLambdaTuple(strings.TrimSuffix(suffix, ")"))
			if terr != nil {
				return nil, errors.Wrapf(terr, "DelE column %q", name)
			}
			deCols = append(deCols, i+1)
			targets = append(targets, lambdas)
		}
	}
	if len(deCols) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gomc stream has no DelE columns")
	}

	table := &PotentialTable{
		State:   series.LambdaState{Index: file.state, Components: file.lambdas},
		Time:    make([]float64, len(file.data)),
		Targets: targets,
		Rows:    make([][]float64, len(file.data)),
	}
	for n, row := range file.data {
		table.Time[n] = row[0]
		base := 0.0
		if uCol >= 0 {
			base += row[uCol]
		}
		if pvCol >= 0 {
			base += row[pvCol]
		}
		out := make([]float64, len(deCols))
		for j, col := range deCols {
			out[j] = beta * (row[col] + base)
		}
		table.Rows[n] = out
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	logger.Logger.Debugw("extracted gomc potentials",
		"state", file.state, "frames", len(table.Rows), "targets", len(targets))
	return table, nil
}
