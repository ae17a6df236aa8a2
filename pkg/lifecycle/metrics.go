package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	artifactsPackaged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldarchive_artifacts_packaged_total",
		Help: "Number of artifacts packaged and registered",
	})

	packagingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldarchive_packaging_failures_total",
		Help: "Number of groups failed to be packaged",
	})

	uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldarchive_uploads_total",
		Help: "Number of upload attempts of artifacts by result",
	}, []string{"endpoint", "result"})

	uploadedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldarchive_uploaded_bytes_total",
		Help: "Bytes of artifacts uploaded",
	}, []string{"endpoint"})

	deletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldarchive_deletions_total",
		Help: "Number of deletion requests by outcome",
	}, []string{"outcome"})

	reconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldarchive_reconciled_total",
		Help: "Number of inconsistencies resolved by reconciliation",
	}, []string{"kind"})
)
