package crm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	csvimport "github.com/enterprisecrm/backend/internal/infrastructure/import"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxImportRows caps the data rows accepted in one lead import
const MaxImportRows = 1000

// Lead import columns. Header names are normalised, so "First Name" matches first_name.
var (
	leadImportRequired = []string{"first_name", "last_name"}
	rowValidator       = newRowValidator()
)

// LeadImportResult summarises a lead CSV import
type LeadImportResult struct {
	TotalRows    int                  `json:"total_rows"`
	ImportedRows int                  `json:"imported_rows"`
	ErrorRows    int                  `json:"error_rows"`
	LeadIDs      []uuid.UUID          `json:"lead_ids"`
	Errors       []csvimport.RowError `json:"errors,omitempty"`
	IsTruncated  bool                 `json:"is_truncated,omitempty"`
	TotalErrors  int                  `json:"total_errors,omitempty"`
}

// Import creates a lead for every valid row of a CSV document. Rows that fail
// validation are reported and skipped; the rest are still imported. File-level
// problems are returned as csvimport errors before anything is written.
func (s *LeadService) Import(ctx context.Context, actorID uuid.UUID, r io.Reader) (*LeadImportResult, error) {
	parser, err := csvimport.NewParser(r, csvimport.WithMaxRows(MaxImportRows))
	if err != nil {
		return nil, err
	}
	if missing := parser.MissingHeaders(leadImportRequired...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", csvimport.ErrMissingColumns, strings.Join(missing, ", "))
	}
	rows, err := parser.ReadAll()
	if err != nil {
		return nil, err
	}

	result := &LeadImportResult{TotalRows: len(rows), LeadIDs: []uuid.UUID{}}
	rowErrors := csvimport.NewErrorCollection(100)
	seenEmails := make(map[string]int)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, rowErr := leadRequestFromRow(row)
		if rowErr == nil {
			rowErr = checkDuplicateEmail(row, req.Email, seenEmails)
		}
		if rowErr != nil {
			rowErrors.Add(*rowErr)
			continue
		}

		id, err := s.importRow(ctx, actorID, row, req)
		if err != nil {
			var domainErr *shared.DomainError
			if !errors.As(err, &domainErr) {
				return nil, fmt.Errorf("import stopped at line %d: %w", row.Line, err)
			}
			rowErrors.Add(csvimport.RowError{Line: row.Line, Code: domainErr.Code, Message: domainErr.Message})
			continue
		}
		result.LeadIDs = append(result.LeadIDs, id)
	}

	result.ImportedRows = len(result.LeadIDs)
	result.ErrorRows = rowErrors.FailedLines()
	result.Errors = rowErrors.Errors()
	result.IsTruncated = rowErrors.Truncated()
	result.TotalErrors = rowErrors.Total()

	logger.L(ctx).Info("lead import finished",
		zap.Int("total_rows", result.TotalRows),
		zap.Int("imported_rows", result.ImportedRows),
		zap.Int("error_rows", result.ErrorRows),
	)
	return result, nil
}

func (s *LeadService) importRow(ctx context.Context, actorID uuid.UUID, row *csvimport.Row, req CreateLeadRequest) (uuid.UUID, error) {
	lead, err := s.buildLead(ctx, actorID, req)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.leadRepo.Create(ctx, lead); err != nil {
		return uuid.Nil, err
	}
	publishEvents(ctx, s.events, lead)

	logger.L(ctx).Debug("lead imported",
		zap.String("lead_id", lead.ID.String()),
		zap.Int("line", row.Line),
	)
	return lead.ID, nil
}

// leadRequestFromRow maps a row onto the same request and rules as a single create
func leadRequestFromRow(row *csvimport.Row) (CreateLeadRequest, *csvimport.RowError) {
	req := CreateLeadRequest{
		FirstName: row.Get("first_name"),
		LastName:  row.Get("last_name"),
		Email:     row.Get("email"),
		Phone:     row.Get("phone"),
		Company:   row.Get("company"),
		Title:     row.Get("title"),
		Source:    strings.ToLower(row.Get("source")),
		Notes:     row.Get("notes"),
	}
	if raw := row.Get("owner_id"); raw != "" {
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			return req, &csvimport.RowError{Line: row.Line, Column: "owner_id", Code: csvimport.CodeInvalidValue, Message: "must be a valid UUID"}
		}
		req.OwnerID = &ownerID
	}

	err := rowValidator.Struct(req)
	if err == nil {
		return req, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return req, &csvimport.RowError{Line: row.Line, Code: csvimport.CodeInvalidValue, Message: err.Error()}
	}
	fe := fieldErrs[0]
	code := csvimport.CodeInvalidValue
	if fe.Tag() == "required" {
		code = csvimport.CodeRequiredField
	}
	return req, &csvimport.RowError{Line: row.Line, Column: fe.Field(), Code: code, Message: rowRuleMessage(fe)}
}

func checkDuplicateEmail(row *csvimport.Row, email string, seen map[string]int) *csvimport.RowError {
	if email == "" {
		return nil
	}
	key := strings.ToLower(email)
	if first, ok := seen[key]; ok {
		return &csvimport.RowError{
			Line:    row.Line,
			Column:  "email",
			Code:    csvimport.CodeDuplicateInFile,
			Message: fmt.Sprintf("email already used on line %d", first),
		}
	}
	seen[key] = row.Line
	return nil
}

func rowRuleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "failed the " + fe.Tag() + " rule"
	}
}

// newRowValidator reads the binding tags gin validates request bodies with
func newRowValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
