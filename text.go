package etopo

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// textSeparator ends the header of a text grid.
const textSeparator = "##################################"

var textHeaderComments = []string{
	"# N_lats",
	"# N_lons",
	"# dlat",
	"# dlon",
}

// A TextPoint is a single data line of a text grid.
type TextPoint struct {
	Lat   float64
	Lon   float64
	Value float64
}

// A TextGrid is the content of a text grid file.
type TextGrid struct {
	Rows   int
	Cols   int
	DLat   float64
	DLon   float64
	Points []TextPoint
}

// WriteText writes grid to w as text. The header gives the number of rows
// and columns and the latitude and longitude spacing. Data lines are
// tab-separated latitude, longitude, and value, with rows from last to first
// and columns from first to last.
func WriteText(w io.Writer, grid *OutputGrid) error {
	bw := bufio.NewWriter(w)
	rows, cols := grid.Dims()
	for _, comment := range textHeaderComments {
		fmt.Fprintln(bw, comment)
	}
	fmt.Fprintf(bw, "%d %d %s %s\n", rows, cols, formatFloat(axisSpacing(grid.Lats)), formatFloat(axisSpacing(grid.Lons)))
	fmt.Fprintln(bw, textSeparator)
	for i := rows - 1; i >= 0; i-- {
		for j := range cols {
			bw.WriteString(formatFloat(grid.Lat(i, j)))
			bw.WriteByte('\t')
			bw.WriteString(formatFloat(grid.Lon(i, j)))
			bw.WriteByte('\t')
			bw.WriteString(formatFloat(grid.Value(i, j)))
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}

// WriteTextFile writes grid to filename as text. Any existing file is
// replaced. No file is left behind on failure.
func WriteTextFile(filename string, grid *OutputGrid) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return newError("write", KindOutputWrite, filename, err)
	}
	defer func() {
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = newError("write", KindOutputWrite, filename, closeErr)
		}
		if err != nil {
			_ = os.Remove(filename)
		}
	}()
	if err := WriteText(file, grid); err != nil {
		return newError("write", KindOutputWrite, filename, err)
	}
	return nil
}

// ReadText reads a text grid written by WriteText. Points are returned in
// file order.
func ReadText(r io.Reader) (*TextGrid, error) {
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	nextLine := func() (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		lineNumber++
		return scanner.Text(), nil
	}

	for _, comment := range textHeaderComments {
		switch line, err := nextLine(); {
		case err != nil:
			return nil, err
		case line != comment:
			return nil, fmt.Errorf("line %d: expected %q, got %q", lineNumber, comment, line)
		}
	}

	line, err := nextLine()
	if err != nil {
		return nil, err
	}
	var tg TextGrid
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return nil, fmt.Errorf("line %d: expected 4 fields, got %d", lineNumber, len(fields))
	}
	if tg.Rows, err = strconv.Atoi(fields[0]); err != nil {
		return nil, fmt.Errorf("line %d: %w", lineNumber, err)
	}
	if tg.Cols, err = strconv.Atoi(fields[1]); err != nil {
		return nil, fmt.Errorf("line %d: %w", lineNumber, err)
	}
	if tg.DLat, err = parseFloat(fields[2]); err != nil {
		return nil, fmt.Errorf("line %d: %w", lineNumber, err)
	}
	if tg.DLon, err = parseFloat(fields[3]); err != nil {
		return nil, fmt.Errorf("line %d: %w", lineNumber, err)
	}

	switch line, err := nextLine(); {
	case err != nil:
		return nil, err
	case line != textSeparator:
		return nil, fmt.Errorf("line %d: expected separator, got %q", lineNumber, line)
	}

	tg.Points = make([]TextPoint, 0, tg.Rows*tg.Cols)
	for {
		line, err := nextLine()
		if errors.Is(err, io.ErrUnexpectedEOF) {
			break
		} else if err != nil {
			return nil, err
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 tab-separated fields, got %d", lineNumber, len(fields))
		}
		var point TextPoint
		for i, dst := range []*float64{&point.Lat, &point.Lon, &point.Value} {
			if *dst, err = parseFloat(fields[i]); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNumber, err)
			}
		}
		tg.Points = append(tg.Points, point)
	}

	if len(tg.Points) != tg.Rows*tg.Cols {
		return nil, fmt.Errorf("got %d points, header declares %dx%d", len(tg.Points), tg.Rows, tg.Cols)
	}
	return &tg, nil
}

// axisSpacing returns the absolute difference between the two smallest
// distinct values of axis, or zero if there are fewer than two.
func axisSpacing(axis []float64) float64 {
	unique := uniqueSorted(axis)
	if len(unique) < 2 {
		return 0
	}
	return math.Abs(unique[1] - unique[0])
}

// formatFloat formats v as the shortest decimal that parses back to v,
// always with a fractional part or an exponent, and with nan and inf spelled
// in lower case.
// widenFloat32 returns the float64 with the shortest decimal representation
// of v, so that a stored 0.1 prints as 0.1 rather than 0.10000000149011612.
func widenFloat32(v float32) float64 {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return float64(v)
	}
	w, err := strconv.ParseFloat(strconv.FormatFloat(float64(v), 'g', -1, 32), 64)
	if err != nil {
		return float64(v)
	}
	return w
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'e', -1, 64)
	exponent, _ := strconv.Atoi(s[strings.IndexByte(s, 'e')+1:])
	if v != 0 && (exponent < -4 || exponent >= 16) {
		return s
	}
	s = strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// parseFloat parses a value written by formatFloat.
func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
