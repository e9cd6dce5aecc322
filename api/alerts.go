package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tidepool-org/hydration/errors"
	"github.com/tidepool-org/hydration/outbox"
	"github.com/tidepool-org/hydration/store"
)

type Alert struct {
	Id          string    `json:"id"`
	CreatedTime time.Time `json:"createdTime"`

	*outbox.PatientStatusChangedPayload
}

func (h *Handler) ListCaregiverAlerts(ec echo.Context) error {
	ctx := ec.Request().Context()
	caregiverId := ec.Param("caregiverId")
	eventType := outbox.EventTypePatientStatusChanged
	filter := outbox.Filter{
		EventType:   &eventType,
		CaregiverId: &caregiverId,
	}
	page := store.Pagination{Limit: defaultPageLimit}

	var since time.Time
	err := echo.QueryParamsBinder(ec).
		Time("since", &since, time.RFC3339).
		Int("offset", &page.Offset).
		Int("limit", &page.Limit).
		BindError()
	if err != nil {
		return errors.NewBadRequest(err)
	}
	if !since.IsZero() {
		filter.CreatedTimeStart = &since
	}

	events, err := h.outbox.List(ctx, filter, page)
	if err != nil {
		return err
	}

	alerts := make([]Alert, 0, len(events))
	for _, event := range events {
		payload, err := event.StatusChange()
		if err != nil {
			h.logger.Warnw("skipping outbox event", "eventType", event.EventType, "error", err)
			continue
		}
		alert := Alert{CreatedTime: event.CreatedTime, PatientStatusChangedPayload: payload}
		if event.Id != nil {
			alert.Id = event.Id.Hex()
		}
		alerts = append(alerts, alert)
	}

	return ec.JSON(http.StatusOK, alerts)
}
