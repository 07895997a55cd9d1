package admin

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
)

var Columns = []string{
	"ID", "Name", "Email", "Phone", "Address", "Registration Type",
	"Spaces", "Amount", "Payment Status", "Items", "Registration Date",
}

const dateLayout = "1/2/2006"

// WriteCSV writes rows in the fixed export column order. Fields with commas, quotes or
// newlines are quoted. Embedded quotes are doubled (RFC 4180) on purpose rather than
// left bare, so every export parses back to the stored values.
func WriteCSV(w io.Writer, rows []domain.Registration) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, r := range rows {
		record := []string{
			r.ID.String(),
			r.FullName,
			r.Email,
			r.Phone,
			r.Address,
			string(r.Tier),
			strconv.Itoa(r.Spaces),
			strconv.Itoa(r.Amount),
			string(r.PaymentStatus),
			r.ItemsDescription,
			r.CreatedAt.Format(dateLayout),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "write csv row %s", r.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func ExportFilename(now time.Time) string {
	return "yard-sale-vendors-" + now.Format("2006-01-02") + ".csv"
}
