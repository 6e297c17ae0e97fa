// pkg/staging/reader.go
package staging

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/fiscaldata/taxpayer-ingress/pkg/model"
)

// Source extracts carry these header names. The reader keys fields by
// header, case-insensitively, so column order in the file does not matter.
const (
	colBusinessID   = "ddp_numruc"
	colActivityCode = "ddp_ciiu"
	colCompanyType  = "ddp_tpoemp"
	colSizeCode     = "ddp_tamano"
	colLocationCode = "ddp_ubigeo"
	colTaxStatus    = "ddp_estado"
	colDomicileFlag = "ddp_flag22"
	colSex          = "dds_sexo"
	colAge          = "dds_edad"
	colDebt         = "deuda"
	colCondition    = "condicion"
)

var requiredColumns = []string{
	colBusinessID, colActivityCode, colCompanyType, colSizeCode,
	colLocationCode, colTaxStatus, colDomicileFlag, colSex,
	colAge, colDebt, colCondition,
}

// maxLoggedRowErrors caps per-row parse logging. The full drop count is
// still reported in the load result.
const maxLoggedRowErrors = 5

// Reader streams staging records out of a delimited source extract. The
// extract is latin-1 encoded with a header row. Rows whose business id, age,
// debt or condition code cannot be coerced are dropped and counted, never
// surfaced as errors; only a broken stream ends the read early.
type Reader struct {
	csv     *csv.Reader
	cols    map[string]int
	width   int
	line    int
	dropped int64
	logged  int
	logger  *zap.Logger
}

// NewReader wraps r, decoding it from latin-1, and validates the header row.
// A header missing any required column is an error.
func NewReader(r io.Reader, delimiter rune, logger *zap.Logger) (*Reader, error) {
	if logger == nil {
		logger = zap.L().Named("staging-reader")
	}

	cr := csv.NewReader(transform.NewReader(r, charmap.ISO8859_1.NewDecoder()))
	cr.Comma = delimiter
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1 // width is enforced per row so one short line cannot end the stream

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read source header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			// a UTF-8 BOM pushed through the latin-1 decoder lands as these
			// three runes in front of the first header name
			name = strings.TrimPrefix(name, "ï»¿")
		}
		cols[strings.ToLower(name)] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("source header is missing required columns: %s",
			strings.Join(missing, ", "))
	}

	return &Reader{
		csv:    cr,
		cols:   cols,
		width:  len(header),
		line:   1,
		logger: logger,
	}, nil
}

// Read returns the next coercible record, or io.EOF at the end of input.
// Rows that fail coercion are skipped and counted in Dropped.
func (r *Reader) Read() (model.StagingRecord, error) {
	for {
		row, err := r.csv.Read()
		if err == io.EOF {
			return model.StagingRecord{}, io.EOF
		}
		r.line++

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			r.drop(fmt.Errorf("malformed line: %w", err))
			continue
		}
		if err != nil {
			return model.StagingRecord{}, fmt.Errorf("failed reading source extract: %w", err)
		}

		rec, err := r.coerce(row)
		if err != nil {
			r.drop(err)
			continue
		}
		return rec, nil
	}
}

// Dropped returns the number of rows skipped so far.
func (r *Reader) Dropped() int64 {
	return r.dropped
}

func (r *Reader) drop(err error) {
	r.dropped++
	if r.logged < maxLoggedRowErrors {
		r.logger.Debug("Dropped source row",
			zap.Int("line", r.line),
			zap.Error(err))
		r.logged++
	}
}

// coerce maps one raw row onto the staging shape. Blank numeric fields fall
// back to null (age) or zero (debt, condition); non-blank unparseable
// numerics drop the whole row. Blank strings become NULL.
func (r *Reader) coerce(row []string) (model.StagingRecord, error) {
	if len(row) != r.width {
		return model.StagingRecord{}, fmt.Errorf("expected %d fields, got %d", r.width, len(row))
	}

	idRaw := r.field(row, colBusinessID)
	if idRaw == "" {
		return model.StagingRecord{}, errors.New("blank business id")
	}
	businessID, err := strconv.ParseInt(idRaw, 10, 64)
	if err != nil {
		return model.StagingRecord{}, fmt.Errorf("unparseable business id %q", idRaw)
	}

	rec := model.StagingRecord{
		BusinessID:      businessID,
		ActivityCode:    r.strField(row, colActivityCode),
		CompanyTypeRaw:  r.strField(row, colCompanyType),
		SizeCodeRaw:     r.strField(row, colSizeCode),
		LocationCode:    r.strField(row, colLocationCode),
		TaxStatusRaw:    r.strField(row, colTaxStatus),
		DomicileFlagRaw: r.strField(row, colDomicileFlag),
		SexRaw:          r.strField(row, colSex),
	}

	if v := r.field(row, colAge); v != "" {
		age, err := strconv.Atoi(v)
		if err != nil {
			return model.StagingRecord{}, fmt.Errorf("unparseable age %q", v)
		}
		rec.Age = &age
	}
	if v := r.field(row, colDebt); v != "" {
		debt, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return model.StagingRecord{}, fmt.Errorf("unparseable debt %q", v)
		}
		rec.DebtAmount = debt
	}
	if v := r.field(row, colCondition); v != "" {
		cond, err := strconv.Atoi(v)
		if err != nil {
			return model.StagingRecord{}, fmt.Errorf("unparseable condition code %q", v)
		}
		rec.ConditionCode = cond
	}

	return rec, nil
}

func (r *Reader) field(row []string, col string) string {
	return strings.TrimSpace(row[r.cols[col]])
}

func (r *Reader) strField(row []string, col string) *string {
	v := r.field(row, col)
	if v == "" {
		return nil
	}
	return &v
}
