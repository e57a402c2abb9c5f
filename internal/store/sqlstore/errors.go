package sqlstore

import (
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"

	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

const (
	codeUniqueViolation = "23505"
	codeAdminShutdown   = "57P01"
	classConnection     = "08"
)

// classify maps driver errors onto the gateway sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == codeUniqueViolation:
			return errors.Join(store.ErrDuplicate, err)
		case pqErr.Code == codeAdminShutdown, string(pqErr.Code.Class()) == classConnection:
			return errors.Join(store.ErrStoreUnavailable, err)
		}
		return err
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return errors.Join(store.ErrStoreUnavailable, err)
	}
	return err
}
