package importer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/karat/internal/alias"
	"github.com/MrJamesThe3rd/karat/internal/importer/stockcount"
	"github.com/MrJamesThe3rd/karat/internal/settlement"
)

// sheetNamespace scopes the name-based transaction IDs derived for sheet rows.
var sheetNamespace = uuid.MustParse("5b0d7c1e-7f3a-4c55-9a43-1f2d3e6a9b10")

type Service struct {
	parser   Parser
	resolver Resolver
	accounts AccountReader
	settler  Settler
}

func NewService(resolver Resolver, accounts AccountReader, settler Settler) *Service {
	return &Service{
		parser:   stockcount.NewParser(),
		resolver: resolver,
		accounts: accounts,
		settler:  settler,
	}
}

// Import settles every row of a stock sheet as an adjustment on storeID.
//
// Each row gets a transaction ID derived from the sheet content and its line,
// so uploading the same sheet again reports duplicates instead of applying it
// twice. A count row is settled against the account version it was compared
// with; if the reserve moves before the row settles, the row is rejected and
// has to be counted again. Unknown labels and rows that would leave a reserve
// negative are reported and skipped. Any other error stops the import; rows before it stay
// settled and are listed in the returned report.
func (s *Service) Import(ctx context.Context, storeID, actor string, r io.Reader) (*Report, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading sheet: %w", err)
	}

	rows, err := s.parser.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing sheet: %w", err)
	}

	digest := sha256.Sum256(content)
	report := &Report{Outcomes: make([]Outcome, 0, len(rows))}

	for _, row := range rows {
		out, err := s.importRow(ctx, storeID, actor, digest[:], row)
		if err != nil {
			return report, fmt.Errorf("row %d: %w", row.Line, err)
		}

		report.Outcomes = append(report.Outcomes, out)
	}

	slog.Info("stock sheet imported",
		"store_id", storeID,
		"actor", actor,
		"applied", report.Count(StatusApplied),
		"rejected", report.Count(StatusRejected),
		"duplicate", report.Count(StatusDuplicate),
	)

	return report, nil
}

func (s *Service) importRow(
	ctx context.Context,
	storeID, actor string,
	digest []byte,
	row stockcount.Row,
) (Outcome, error) {
	out := Outcome{Line: row.Line, Label: row.Label}

	t, err := s.resolver.Resolve(ctx, row.Label)
	if err != nil {
		if errors.Is(err, alias.ErrUnresolved) {
			out.Status = StatusRejected
			out.Reason = err.Error()

			return out, nil
		}

		return out, err
	}

	out.ReserveType = t

	delta := row.Value

	var version *int64

	if row.Mode == stockcount.ModeCount {
		acc, err := s.accounts.Get(ctx, storeID, t)
		if err != nil {
			return out, fmt.Errorf("reading %s: %w", t, err)
		}

		delta = row.Value.Sub(acc.Balance)
		version = new(acc.Version)
	}

	out.Delta = delta

	id := uuid.NewSHA1(sheetNamespace, append(append([]byte{}, digest...), strconv.Itoa(row.Line)...))
	out.TransactionID = id.String()

	if delta.IsZero() {
		out.Status = StatusUnchanged
		return out, nil
	}

	note := row.Note
	if note == "" {
		note = fmt.Sprintf("stock count line %d", row.Line)
	}

	res, err := s.settler.Settle(ctx, settlement.Transaction{
		ID:              id,
		Kind:            settlement.KindAdjustment,
		StoreID:         storeID,
		Employee:        actor,
		Delta:           delta,
		Note:            note,
		ExpectedVersion: version,
	}, t)

	switch {
	case err == nil:
		out.Status = StatusApplied
		out.Balance = res.Balance
	case errors.Is(err, settlement.ErrAlreadySettled):
		out.Status = StatusDuplicate
	case errors.Is(err, settlement.ErrInsufficient), errors.Is(err, settlement.ErrReserveChanged):
		out.Status = StatusRejected
		out.Reason = err.Error()
	default:
		return out, err
	}

	return out, nil
}
