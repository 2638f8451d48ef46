package data

import (
	"errors"

	"github.com/starkescrow/starkescrow/internal/db"
	"github.com/starkescrow/starkescrow/internal/metrics"
)

type Models struct {
	Attempts *AttemptModel
}

func NewModels(db db.ConnectionPool, metricsService metrics.MetricsService) (*Models, error) {
	if db == nil {
		return nil, errors.New("ConnectionPool must be initialized")
	}
	if metricsService == nil {
		return nil, errors.New("MetricsService must be initialized")
	}

	return &Models{
		Attempts: &AttemptModel{DB: db, MetricsService: metricsService},
	}, nil
}
