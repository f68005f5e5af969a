package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/mbd888/ewarisk/internal/contract"
)

// Header returns the CSV header for c: employee_id, the contract fields in
// order, then the label column.
func Header(c *contract.Contract) []string {
	header := make([]string, 0, len(c.Fields)+2)
	header = append(header, "employee_id")
	header = append(header, c.Names()...)
	return append(header, c.Label)
}

// WriteCSV writes rows as a training table. Null features are empty cells.
// Every row must conform to c.
func WriteCSV(w io.Writer, c *contract.Contract, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(c)); err != nil {
		return err
	}

	record := make([]string, len(c.Fields)+2)
	for _, row := range rows {
		if err := c.Verify(row.Features.Version(), row.Features.Names()); err != nil {
			return fmt.Errorf("row %s: %w", row.EmployeeID, err)
		}
		record[0] = row.EmployeeID
		for i, v := range row.Features.Values() {
			record[i+1] = v.String()
		}
		record[len(record)-1] = strconv.Itoa(row.Label)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
