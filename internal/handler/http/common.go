package httphandler

import (
	"net/http"
	"strconv"

	"github.com/rajpalom13/move-meal-sub001/pkg/geo"
	"github.com/rajpalom13/move-meal-sub001/pkg/response"
)

func pageParams(r *http.Request) (page, limit, offset int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}

func paginationFor(page, limit, total int) response.Pagination {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return response.Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

func pointParam(r *http.Request) (geo.Point, bool) {
	lat, errA := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errB := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errA != nil || errB != nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: lat, Lng: lng}, true
}

func radiusParam(r *http.Request) float64 {
	radius, err := strconv.ParseFloat(r.URL.Query().Get("radius_km"), 64)
	if err != nil || radius <= 0 {
		return 5
	}
	return radius
}
