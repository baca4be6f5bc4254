package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/csvimport"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidImportFile is returned when an upload cannot be read as a charge file
var ErrInvalidImportFile = shared.NewDomainError("INVALID_IMPORT_FILE", "Charge file cannot be imported")

// ChargeImportResult reports a bulk charge upload
type ChargeImportResult struct {
	DryRun    bool
	TotalRows int
	ValidRows int
	Imported  int
	ChargeIDs []uuid.UUID
	Errors    []csvimport.RowError
	Truncated bool
}

// ChargeImportRules are the column rules of a charge file
func ChargeImportRules() []csvimport.FieldRule {
	return []csvimport.FieldRule{
		csvimport.Field("customer_id").Required().UUID().Build(),
		csvimport.Field("rental_id").UUID().Build(),
		csvimport.Field("vehicle_id").UUID().Build(),
		csvimport.Field("category").Required().Check(func(v string) error {
			if !ledger.Category(v).IsValid() {
				return fmt.Errorf("%q is not a valid category", v)
			}
			return nil
		}).Build(),
		csvimport.Field("amount").Required().Money().Positive().Build(),
		csvimport.Field("entry_date").Date().Build(),
		csvimport.Field("due_date").Date().Build(),
		csvimport.Field("reference").MaxLength(200).Unique().Build(),
	}
}

// ImportCharges books every valid row of a charge file through CreateCharge.
// Rows are independent: a rejected row does not stop the others. With dryRun
// the file is only validated.
func (s *ChargeService) ImportCharges(ctx context.Context, tenantID uuid.UUID, src io.Reader, dryRun bool) (*ChargeImportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "import_charges")
	defer span.End()

	validation, err := csvimport.Validate(src, ChargeImportRules(), csvimport.DefaultOptions())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, ErrInvalidImportFile.WithDetail(err.Error())
	}

	errs := validation.Errors
	result := &ChargeImportResult{
		DryRun:    dryRun,
		TotalRows: validation.TotalRows,
		ValidRows: len(validation.ValidRows),
		ChargeIDs: []uuid.UUID{},
	}

	for _, row := range validation.ValidRows {
		req, err := chargeRequestFromRow(row)
		if err != nil {
			errs.Add(csvimport.RowError{Line: row.Line, Code: csvimport.CodeInvalidValue, Message: err.Error()})
			result.ValidRows--
			continue
		}
		if dryRun {
			continue
		}
		if err := ctx.Err(); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}

		charge, err := s.CreateCharge(ctx, tenantID, req)
		switch {
		case err == nil:
			result.Imported++
			result.ChargeIDs = append(result.ChargeIDs, charge.ID)
		case errors.Is(err, ledger.ErrDuplicateEntry):
			errs.Add(csvimport.RowError{
				Line: row.Line, Column: "reference", Value: req.Reference,
				Code: csvimport.CodeDuplicateInDB, Message: "a charge with this reference already exists",
			})
		default:
			var domainErr *shared.DomainError
			if !errors.As(err, &domainErr) {
				telemetry.RecordError(span, err)
				return nil, err
			}
			errs.Add(csvimport.RowError{Line: row.Line, Code: csvimport.CodeRejected, Message: domainErr.Error()})
		}
	}

	result.Errors = errs.Errors()
	result.Truncated = errs.Truncated()

	s.logger.Info("charge file imported",
		zap.String("tenant_id", tenantID.String()),
		zap.Bool("dry_run", dryRun),
		zap.Int("rows", result.TotalRows),
		zap.Int("imported", result.Imported),
		zap.Int("errors", len(result.Errors)),
	)
	telemetry.SetOK(span)
	return result, nil
}

func chargeRequestFromRow(row *csvimport.Row) (CreateChargeRequest, error) {
	amount, err := csvimport.ParseMoney(row.Get("amount"))
	if err != nil {
		return CreateChargeRequest{}, err
	}
	req := CreateChargeRequest{
		CustomerID: uuid.MustParse(row.Get("customer_id")),
		Category:   ledger.Category(row.Get("category")),
		Amount:     amount,
		Reference:  row.Get("reference"),
	}
	if v := row.Get("rental_id"); v != "" {
		id := uuid.MustParse(v)
		req.RentalID = &id
	}
	if v := row.Get("vehicle_id"); v != "" {
		id := uuid.MustParse(v)
		req.VehicleID = &id
	}
	if v := row.Get("entry_date"); v != "" {
		if req.EntryDate, err = csvimport.ParseDate(v); err != nil {
			return CreateChargeRequest{}, err
		}
	}
	if v := row.Get("due_date"); v != "" {
		due, err := csvimport.ParseDate(v)
		if err != nil {
			return CreateChargeRequest{}, err
		}
		req.DueDate = &due
	}
	return req, nil
}
