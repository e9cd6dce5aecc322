package api

import (
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/hydration/cohort"
	"github.com/tidepool-org/hydration/config"
	"github.com/tidepool-org/hydration/outbox"
	"github.com/tidepool-org/hydration/patients"
)

type Handler struct {
	patients patients.Service
	cohort   cohort.Service
	outbox   outbox.Repository
	location *time.Location
	logger   *zap.SugaredLogger
}

type Params struct {
	fx.In

	Config   *config.Config
	Patients patients.Service
	Cohort   cohort.Service
	Outbox   outbox.Repository
	Logger   *zap.SugaredLogger
}

func NewHandler(p Params) (*Handler, error) {
	location, err := p.Config.Location()
	if err != nil {
		return nil, err
	}

	return &Handler{
		patients: p.Patients,
		cohort:   p.Cohort,
		outbox:   p.Outbox,
		location: location,
		logger:   p.Logger,
	}, nil
}
