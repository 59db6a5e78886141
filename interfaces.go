package erddap

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"go.ngs.io/erddap/convert"
)

// ToTable downloads the current data request as CSVP and materializes it as
// an Arrow record batch. The caller owns the returned record and must
// Release it.
func (c *Client) ToTable(ctx context.Context) (arrow.Record, error) {
	payload, err := c.Fetch(ctx, "csvp", false)
	if err != nil {
		return nil, err
	}
	return convert.Table(payload)
}

// ToGrid downloads the current griddap request as NetCDF and materializes it
// as an in-memory grid. The client must be configured for griddap and,
// normally, initialized via GriddapInitialize so the dimension names are
// known.
func (c *Client) ToGrid(ctx context.Context) (*convert.GridData, error) {
	if c.Protocol != "griddap" {
		return nil, fmt.Errorf("%w: ToGrid is only valid for the griddap protocol, got %q", ErrInvalidArgument, c.Protocol)
	}
	payload, err := c.Fetch(ctx, "nc", false)
	if err != nil {
		return nil, err
	}
	return convert.Grid(payload, c.DimNames, c.Variables)
}
