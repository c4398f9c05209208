package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

// ReadFXRates lee un CSV date,rate (moneda local por USD). La cabecera es
// opcional; líneas vacías y comentarios (#) se ignoran. Fechas en YYYY-MM-DD.
func ReadFXRates(r io.Reader) ([]domain.FXRate, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var rates []domain.FXRate
	for first := true; ; first = false {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("export.ReadFXRates: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < 2 {
			return nil, fmt.Errorf("export.ReadFXRates: line %d: want date,rate, got %d fields", line, len(rec))
		}

		date := strings.TrimSpace(rec[0])
		if first && strings.EqualFold(date, "date") {
			continue
		}

		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("export.ReadFXRates: line %d: date: %w", line, err)
		}
		rate, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(rec[1]), "_", ""))
		if err != nil {
			return nil, fmt.Errorf("export.ReadFXRates: line %d: rate: %w", line, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("export.ReadFXRates: line %d: rate must be positive, got %s", line, rate)
		}

		rates = append(rates, domain.FXRate{Date: d, Rate: rate.InexactFloat64()})
	}
	return rates, nil
}
