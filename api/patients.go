package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tidepool-org/hydration/errors"
	"github.com/tidepool-org/hydration/normalize"
	"github.com/tidepool-org/hydration/patients"
	"github.com/tidepool-org/hydration/store"
)

// defaultPageLimit caps list endpoints when the request sets no limit.
const defaultPageLimit = 100

func (h *Handler) ListPatients(ec echo.Context) error {
	ctx := ec.Request().Context()
	page := store.Pagination{Limit: defaultPageLimit}
	filter := patients.Filter{}

	var caregiverId string
	err := echo.QueryParamsBinder(ec).
		Int("offset", &page.Offset).
		Int("limit", &page.Limit).
		String("caregiverId", &caregiverId).
		BindError()
	if err != nil {
		return errors.NewBadRequest(err)
	}
	if caregiverId != "" {
		filter.CaregiverId = &caregiverId
	}

	list, err := h.patients.List(ctx, filter, page)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*patients.Patient{}
	}

	return ec.JSON(http.StatusOK, list)
}

func (h *Handler) RegisterPatient(ec echo.Context) error {
	ctx := ec.Request().Context()
	record := normalize.Record{}
	if err := decodeBody(ec, &record); err != nil {
		return err
	}

	registration, err := patients.RegistrationFromRecord(record)
	if err != nil {
		return err
	}

	patient, err := h.patients.Register(ctx, registration)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusCreated, patient)
}

func (h *Handler) GetPatient(ec echo.Context) error {
	ctx := ec.Request().Context()
	patient, err := h.patients.Get(ctx, ec.Param("patientId"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, patient)
}

func (h *Handler) IngestEvents(ec echo.Context) error {
	ctx := ec.Request().Context()
	var records []normalize.Record
	if err := decodeBody(ec, &records); err != nil {
		return err
	}

	dashboard, err := h.patients.Ingest(ctx, ec.Param("patientId"), records)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, dashboard)
}

func (h *Handler) IngestDeviceUpdate(ec echo.Context) error {
	ctx := ec.Request().Context()
	payload := normalize.Record{}
	if err := decodeBody(ec, &payload); err != nil {
		return err
	}

	dashboard, err := h.patients.IngestDevice(ctx, payload)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, dashboard)
}

func (h *Handler) GetTimeline(ec echo.Context) error {
	ctx := ec.Request().Context()
	entries, err := h.patients.Timeline(ctx, ec.Param("patientId"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, entries)
}

func (h *Handler) GetDashboard(ec echo.Context) error {
	ctx := ec.Request().Context()
	dashboard, err := h.patients.Dashboard(ctx, ec.Param("patientId"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, dashboard)
}

func (h *Handler) GetPeriods(ec echo.Context) error {
	ctx := ec.Request().Context()
	view, err := h.patients.Periods(ctx, ec.Param("patientId"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, view)
}

// decodeBody reads raw json records. Binding would apply path and query
// parameters to the generic record maps.
func decodeBody(ec echo.Context, target interface{}) error {
	if err := json.NewDecoder(ec.Request().Body).Decode(target); err != nil {
		return errors.NewBadRequest(fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}
