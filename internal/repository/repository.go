package repository

import (
	"context"
	"order_dispatch/pkg/geo"

	trmgorm "github.com/avito-tech/go-transaction-manager/gorm"
	"gorm.io/gorm"
)

// base resolves the transaction stored in ctx by the transaction manager,
// falling back to the plain connection.
type base struct {
	db     *gorm.DB
	getter *trmgorm.CtxGetter
}

func newBase(db *gorm.DB, getter *trmgorm.CtxGetter) base {
	if getter == nil {
		getter = trmgorm.DefaultCtxGetter
	}
	return base{db: db, getter: getter}
}

func (b base) conn(ctx context.Context) *gorm.DB {
	return b.getter.DefaultTrOrDB(ctx, b.db).WithContext(ctx)
}

// boxFilter renders the bounding-box prefilter for the latitude/longitude
// columns of table. A box crossing the antimeridian matches either side.
func boxFilter(table string, box geo.Box) (string, []interface{}) {
	lat, lng := table+".latitude", table+".longitude"
	if box.WrapsLng() {
		return lat + " BETWEEN ? AND ? AND (" + lng + " >= ? OR " + lng + " <= ?)",
			[]interface{}{box.MinLat, box.MaxLat, box.MinLng, box.MaxLng}
	}
	return lat + " BETWEEN ? AND ? AND " + lng + " BETWEEN ? AND ?",
		[]interface{}{box.MinLat, box.MaxLat, box.MinLng, box.MaxLng}
}
