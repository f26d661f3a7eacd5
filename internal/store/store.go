package store

import (
	"context"
	"fmt"

	"github.com/amishk599/jobhound/internal/model"
)

// Store is a model.Store that owns a connection.
type Store interface {
	model.Store
	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the store for driver. path is used by SQLite, dsn by PostgreSQL.
func Open(ctx context.Context, driver, path, dsn string) (Store, error) {
	switch driver {
	case "", DriverSQLite:
		return NewSQLiteStore(path)
	case DriverPostgres:
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// persistedDetailStatus maps the status of an incoming posting to the value
// stored. A missing status is derived from the source and the in-flight
// fetching state is never written.
func persistedDetailStatus(p model.Posting) model.DetailStatus {
	switch p.DetailStatus {
	case model.DetailFetched, model.DetailFailed, model.DetailPending:
		return p.DetailStatus
	case model.DetailFetching:
		return model.DetailPending
	}
	if p.Source == model.SourceInbox {
		return model.DetailPending
	}
	return model.DetailFetched
}

// mergeDetail overwrites the detail fields of dst with the non-empty fields of p.
func mergeDetail(dst *model.StoredPosting, p model.Posting) {
	if p.Description != "" {
		dst.Description = p.Description
	}
	if p.ContractType != "" {
		dst.ContractType = p.ContractType
	}
	if p.SalaryMin != nil {
		dst.SalaryMin = p.SalaryMin
	}
	if p.SalaryMax != nil {
		dst.SalaryMax = p.SalaryMax
	}
	if p.Location != "" {
		dst.Location = p.Location
	}
	if p.DetailStatus != "" && p.DetailStatus != model.DetailFetching {
		dst.DetailStatus = p.DetailStatus
	}
}
