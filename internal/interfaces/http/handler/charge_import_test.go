package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/csvimport"
	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const importCSV = "customer_id,category,amount\n550e8400-e29b-41d4-a716-446655440002,Rental,100\n"

func multipartUpload(t *testing.T, path, field, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "charges.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestChargeHandler_Import(t *testing.T) {
	tenantID := uuid.New()
	chargeID := uuid.New()

	t.Run("multipart upload", func(t *testing.T) {
		svc := new(MockChargeService)
		svc.On("ImportCharges", mock.Anything, tenantID, importCSV, false).Return(&appledger.ChargeImportResult{
			TotalRows: 2,
			ValidRows: 1,
			Imported:  1,
			ChargeIDs: []uuid.UUID{chargeID},
			Errors: []csvimport.RowError{
				{Line: 3, Column: "amount", Value: "-5", Code: csvimport.CodeInvalidValue, Message: "must be greater than zero"},
			},
		}, nil)

		w := httptest.NewRecorder()
		setupChargeRouter(tenantID, svc).ServeHTTP(w, multipartUpload(t, "/charges/import", "file", importCSV))

		assert.Equal(t, http.StatusOK, w.Code)
		var data ChargeImportResponse
		decodeData(t, w, &data)
		assert.Equal(t, 1, data.Imported)
		assert.Equal(t, []string{chargeID.String()}, data.ChargeIDs)
		require.Len(t, data.Errors, 1)
		assert.Equal(t, 3, data.Errors[0].Line)
		assert.Equal(t, csvimport.CodeInvalidValue, data.Errors[0].Code)
		svc.AssertExpectations(t)
	})

	t.Run("raw csv body with dry run", func(t *testing.T) {
		svc := new(MockChargeService)
		svc.On("ImportCharges", mock.Anything, tenantID, importCSV, true).
			Return(&appledger.ChargeImportResult{DryRun: true, TotalRows: 1, ValidRows: 1}, nil)

		req := httptest.NewRequest(http.MethodPost, "/charges/import?dryRun=true", strings.NewReader(importCSV))
		req.Header.Set("Content-Type", "text/csv")
		w := httptest.NewRecorder()
		setupChargeRouter(tenantID, svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var data ChargeImportResponse
		decodeData(t, w, &data)
		assert.True(t, data.DryRun)
		assert.Empty(t, data.Errors)
		svc.AssertExpectations(t)
	})

	t.Run("missing file field", func(t *testing.T) {
		svc := new(MockChargeService)
		w := httptest.NewRecorder()
		setupChargeRouter(tenantID, svc).ServeHTTP(w, multipartUpload(t, "/charges/import", "upload", importCSV))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "ImportCharges", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unreadable file", func(t *testing.T) {
		svc := new(MockChargeService)
		svc.On("ImportCharges", mock.Anything, tenantID, "", false).
			Return(nil, appledger.ErrInvalidImportFile.WithDetail("csv file is empty"))

		req := httptest.NewRequest(http.MethodPost, "/charges/import", strings.NewReader(""))
		req.Header.Set("Content-Type", "text/csv")
		w := httptest.NewRecorder()
		setupChargeRouter(tenantID, svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidImport, decodeResponse(t, w).Error.Code)
	})

	t.Run("invalid dry run flag", func(t *testing.T) {
		svc := new(MockChargeService)
		req := httptest.NewRequest(http.MethodPost, "/charges/import?dryRun=maybe", strings.NewReader(importCSV))
		w := httptest.NewRecorder()
		setupChargeRouter(tenantID, svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
