package convert

import (
	"fmt"
	"os"

	"github.com/fhs/go-netcdf/netcdf"
)

// GridData is a gridded dataset materialized in memory: one coordinate array
// per dimension and one flattened value array per variable, with the
// variable's shape recorded in dimension order.
type GridData struct {
	Coords map[string][]float64
	Values map[string][]float64
	Shapes map[string][]int
}

// Grid materializes a NetCDF payload, as returned by a griddap download,
// into a GridData holding the named dimensions and variables. The NetCDF C
// library only reads files, so the payload is spooled to a temporary file
// first.
func Grid(payload []byte, dims, variables []string) (*GridData, error) {
	tmp, err := os.CreateTemp("", "erddap-*.nc")
	if err != nil {
		return nil, fmt.Errorf("spool netcdf payload: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("spool netcdf payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("spool netcdf payload: %w", err)
	}

	nc, err := netcdf.OpenFile(tmp.Name(), netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open netcdf payload: %w", err)
	}
	defer func() { _ = nc.Close() }()

	grid := &GridData{
		Coords: make(map[string][]float64, len(dims)),
		Values: make(map[string][]float64, len(variables)),
		Shapes: make(map[string][]int, len(variables)),
	}
	for _, dim := range dims {
		v, err := nc.Var(dim)
		if err != nil {
			return nil, fmt.Errorf("coordinate variable %q: %w", dim, err)
		}
		coords, _, err := readVar(v)
		if err != nil {
			return nil, fmt.Errorf("coordinate variable %q: %w", dim, err)
		}
		grid.Coords[dim] = coords
	}
	for _, variable := range variables {
		v, err := nc.Var(variable)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", variable, err)
		}
		values, shape, err := readVar(v)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", variable, err)
		}
		grid.Values[variable] = values
		grid.Shapes[variable] = shape
	}
	return grid, nil
}

// readVar reads a variable of any rank as a flattened float64 slice plus its
// shape.
func readVar(v netcdf.Var) ([]float64, []int, error) {
	varDims, err := v.Dims()
	if err != nil {
		return nil, nil, fmt.Errorf("get dimensions: %w", err)
	}
	shape := make([]int, len(varDims))
	total := 1
	for i, d := range varDims {
		length, err := d.Len()
		if err != nil {
			return nil, nil, fmt.Errorf("get dimension length: %w", err)
		}
		shape[i] = int(length)
		total *= int(length)
	}

	t, err := v.Type()
	if err != nil {
		return nil, nil, fmt.Errorf("get type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, total)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, nil, err
		}
		return data, shape, nil
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, shape, nil
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, shape, nil
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, shape, nil
	default:
		return nil, nil, fmt.Errorf("unsupported variable type: %v", t)
	}
}
