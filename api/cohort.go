package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tidepool-org/hydration/cohort"
	"github.com/tidepool-org/hydration/errors"
	"github.com/tidepool-org/hydration/status"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) GetCaregiverDashboard(ec echo.Context) error {
	ctx := ec.Request().Context()
	dashboard, err := h.cohort.Dashboard(ctx, ec.Param("caregiverId"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, dashboard)
}

func (h *Handler) ListCaregiverPatients(ec echo.Context) error {
	ctx := ec.Request().Context()

	var filter *status.Status
	if value := ec.QueryParam("status"); value != "" {
		parsed, err := status.Parse(value)
		if err != nil {
			return errors.NewBadRequest(err)
		}
		filter = &parsed
	}

	list, err := h.cohort.Patients(ctx, ec.Param("caregiverId"), filter)
	if err != nil {
		return err
	}
	if list == nil {
		list = []cohort.PatientSummary{}
	}

	return ec.JSON(http.StatusOK, list)
}

func (h *Handler) GetCaregiverReport(ec echo.Context) error {
	ctx := ec.Request().Context()
	caregiverId := ec.Param("caregiverId")
	dashboard, err := h.cohort.Dashboard(ctx, caregiverId)
	if err != nil {
		return err
	}

	report, err := cohort.NewReport(*dashboard, h.location).Generate()
	if err != nil {
		return fmt.Errorf("unable to generate report: %w", err)
	}

	buffer := &bytes.Buffer{}
	if err := report.Write(buffer); err != nil {
		return fmt.Errorf("unable to write report: %w", err)
	}

	filename := fmt.Sprintf("hydration-%s-%s.xlsx", caregiverId, dashboard.EvaluatedTime.In(h.location).Format("20060102-1504"))
	ec.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ec.Blob(http.StatusOK, xlsxContentType, buffer.Bytes())
}
