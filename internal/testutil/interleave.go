package testutil

import (
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"gorm.io/gorm"
)

// SetStatusBeforeNextUpdate makes the next UPDATE on the bookings table find
// the booking already moved to status, as if another request had committed in
// between. The write joins the statement's transaction.
func SetStatusBeforeNextUpdate(t *testing.T, db *gorm.DB, bookingID uuid.UUID, status domain.BookingStatus) {
	t.Helper()
	name := "testutil:set_status_" + bookingID.String()
	var fired atomic.Bool

	err := db.Callback().Update().Before("gorm:update").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != "bookings" || !fired.CompareAndSwap(false, true) {
			return
		}
		err := tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE bookings SET status = ? WHERE id = ?", status, bookingID).Error
		if err != nil {
			t.Errorf("failed to change booking status: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("failed to register update callback: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Callback().Update().Remove(name)
	})
}

// AfterFirstBookingsQuery runs fn once, right after the next SELECT on the
// bookings table has returned its rows
func AfterFirstBookingsQuery(t *testing.T, db *gorm.DB, fn func()) {
	t.Helper()
	name := "testutil:after_bookings_query"
	var fired atomic.Bool

	err := db.Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != "bookings" || !fired.CompareAndSwap(false, true) {
			return
		}
		fn()
	})
	if err != nil {
		t.Fatalf("failed to register query callback: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Callback().Query().Remove(name)
	})
}
