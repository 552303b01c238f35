// Copyright 2026 The xarray-ecmwf-go Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package timeaxis builds the 'time' coordinate axis and its chunk plan for
// the two mutually exclusive request-time shapes: ymd (year/month/day/time)
// and date-range (date/time). This mirrors, field for field, the archive
// client's request-time builders (spec.md section 4.D).
package timeaxis

import (
	"fmt"
	"time"

	"github.com/bopen/xarray-ecmwf-go/internal/chunkplan"
	"github.com/bopen/xarray-ecmwf-go/internal/errs"
	"github.com/bopen/xarray-ecmwf-go/internal/request"
)

const dayLayout = "2006-01-02"

// Build dispatches on request.Variant to the ymd or date-range builder,
// returning the full 'time' coordinate, the nominal (or per-chunk) time
// chunk size, and the chunk plan fragments.
func Build(req request.Request, chunks map[string]int) ([]time.Time, []int, []chunkplan.Fragment, error) {
	variant, err := req.Variant()
	if err != nil {
		return nil, nil, nil, err
	}
	switch variant {
	case request.VariantYMD:
		return buildYMD(req, chunks)
	default:
		return buildDateRange(req, chunks)
	}
}

func parseYMDTime(year, month, day, hhmm string) (time.Time, error) {
	if len(hhmm) != 5 {
		return time.Time{}, errs.Configuration("timeaxis: time entry %q must have length 5 (HH:MM)", hhmm)
	}
	ts := fmt.Sprintf("%s-%s-%sT%s", year, month, day, hhmm)
	return time.Parse("2006-01-02T15:04", ts)
}

func daysInMonth(year, month string) (int, error) {
	y, m, err := parseYearMonth(year, month)
	if err != nil {
		return 0, err
	}
	firstOfNext := time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
	lastOfThis := firstOfNext.AddDate(0, 0, -1)
	return lastOfThis.Day(), nil
}

func parseYearMonth(year, month string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", fmt.Sprintf("%s-%s", year, month))
	if err != nil {
		return 0, 0, errs.Configuration("timeaxis: invalid year/month %q/%q: %v", year, month, err)
	}
	return t.Year(), t.Month(), nil
}

// generateYMDCoordinates is the unchunked product of year x month x day x
// time, skipping day-of-month values past the month's length (mirrors
// generate_ymd_coordinates).
func generateYMDCoordinates(req request.Request) ([]time.Time, error) {
	years := req.Dimensions()["year"]
	months := req.Dimensions()["month"]
	days := req.Dimensions()["day"]
	times := req.Dimensions()["time"]

	var out []time.Time
	for _, yAny := range years {
		year := fmt.Sprintf("%v", yAny)
		if len(year) != 4 {
			return nil, errs.Configuration("timeaxis: year %q must have length 4", year)
		}
		for _, mAny := range months {
			month := fmt.Sprintf("%v", mAny)
			if len(month) != 2 {
				return nil, errs.Configuration("timeaxis: month %q must have length 2", month)
			}
			ndays, err := daysInMonth(year, month)
			if err != nil {
				return nil, err
			}
			for _, dAny := range days {
				day := fmt.Sprintf("%v", dAny)
				if len(day) != 2 {
					return nil, errs.Configuration("timeaxis: day %q must have length 2", day)
				}
				dayNum := 0
				fmt.Sscanf(day, "%d", &dayNum)
				if dayNum > ndays {
					break
				}
				for _, tAny := range times {
					hhmm := fmt.Sprintf("%v", tAny)
					ts, err := parseYMDTime(year, month, day, hhmm)
					if err != nil {
						return nil, err
					}
					out = append(out, ts)
				}
			}
		}
	}
	return out, nil
}

// buildYMD dispatches to month/day splitting or, absent a year/month/day
// chunk key, returns the single unchunked fragment (mirrors
// build_chunk_ymd_requests).
func buildYMD(req request.Request, chunks map[string]int) ([]time.Time, []int, []chunkplan.Fragment, error) {
	_, hasMonth := chunks["month"]
	_, hasDay := chunks["day"]
	_, hasYear := chunks["year"]
	if !hasMonth && !hasDay && !hasYear {
		coords, err := generateYMDCoordinates(req)
		if err != nil {
			return nil, nil, nil, err
		}
		return coords, []int{len(coords)}, []chunkplan.Fragment{{Start: 0, Fragment: request.Fragment{}}}, nil
	}
	if hasMonth {
		return buildYMDMonth(req, chunks)
	}
	if hasDay {
		return buildYMDDay(req, chunks)
	}
	return nil, nil, nil, errs.Configuration("timeaxis: chunking on 'year' is not supported")
}

func buildYMDMonth(req request.Request, chunks map[string]int) ([]time.Time, []int, []chunkplan.Fragment, error) {
	if chunks["month"] != 1 {
		return nil, nil, nil, errs.Configuration("timeaxis: split on month chunk size != 1 not supported")
	}
	years := req.Dimensions()["year"]
	months := req.Dimensions()["month"]
	days := req.Dimensions()["day"]
	times := req.Dimensions()["time"]

	var coords []time.Time
	var sizes []int
	var frags []chunkplan.Fragment

	for _, yAny := range years {
		year := fmt.Sprintf("%v", yAny)
		for _, mAny := range months {
			month := fmt.Sprintf("%v", mAny)
			ndays, err := daysInMonth(year, month)
			if err != nil {
				return nil, nil, nil, err
			}
			start := len(coords)
			var usedDays []any
			chunkLen := 0
			for _, dAny := range days {
				day := fmt.Sprintf("%v", dAny)
				dayNum := 0
				fmt.Sscanf(day, "%d", &dayNum)
				if dayNum > ndays {
					break
				}
				usedDays = append(usedDays, day)
				for _, tAny := range times {
					hhmm := fmt.Sprintf("%v", tAny)
					ts, err := parseYMDTime(year, month, day, hhmm)
					if err != nil {
						return nil, nil, nil, err
					}
					coords = append(coords, ts)
					chunkLen++
				}
			}
			sizes = append(sizes, chunkLen)
			frags = append(frags, chunkplan.Fragment{
				Start:    start,
				Fragment: map[string]any{"year": year, "month": month, "day": usedDays},
			})
		}
	}
	return coords, sizes, frags, nil
}

func buildYMDDay(req request.Request, chunks map[string]int) ([]time.Time, []int, []chunkplan.Fragment, error) {
	if chunks["day"] != 1 {
		return nil, nil, nil, errs.Configuration("timeaxis: split on day chunk size != 1 not supported")
	}
	years := req.Dimensions()["year"]
	months := req.Dimensions()["month"]
	days := req.Dimensions()["day"]
	times := req.Dimensions()["time"]

	var coords []time.Time
	var frags []chunkplan.Fragment

	for _, yAny := range years {
		year := fmt.Sprintf("%v", yAny)
		for _, mAny := range months {
			month := fmt.Sprintf("%v", mAny)
			for _, dAny := range days {
				day := fmt.Sprintf("%v", dAny)
				start := len(coords)
				complete := true
				for _, tAny := range times {
					hhmm := fmt.Sprintf("%v", tAny)
					ts, err := parseYMDTime(year, month, day, hhmm)
					if err != nil {
						complete = false
						break
					}
					coords = append(coords, ts)
				}
				if complete {
					frags = append(frags, chunkplan.Fragment{
						Start:    start,
						Fragment: map[string]any{"year": year, "month": month, "day": day},
					})
				}
			}
		}
	}
	size := len(req.Dimensions()["time"])
	sizes := make([]int, len(frags))
	for i := range sizes {
		sizes[i] = size
	}
	return coords, sizes, frags, nil
}

// buildDateRange splits a date-range request ("date": "start/stop") into
// chunk_days-wide windows (mirrors build_chunk_date_requests). Only
// chunking on "day" is supported; "month"/"year" keys are rejected.
func buildDateRange(req request.Request, chunks map[string]int) ([]time.Time, []int, []chunkplan.Fragment, error) {
	if _, bad := chunks["month"]; bad {
		return nil, nil, nil, errs.Configuration("timeaxis: date-range requests cannot be chunked on 'month'")
	}
	if _, bad := chunks["year"]; bad {
		return nil, nil, nil, errs.Configuration("timeaxis: date-range requests cannot be chunked on 'year'")
	}

	dateVals := req.Dimensions()["date"]
	if len(dateVals) == 0 {
		return nil, nil, nil, errs.Configuration("timeaxis: date-range request missing 'date'")
	}
	rangeStr := fmt.Sprintf("%v", dateVals[0])
	var startStr, stopStr string
	if _, err := fmt.Sscanf(rangeStr, "%[^/]/%s", &startStr, &stopStr); err != nil {
		return nil, nil, nil, errs.Configuration("timeaxis: malformed date range %q", rangeStr)
	}
	dateStart, err := time.Parse(dayLayout, startStr)
	if err != nil {
		return nil, nil, nil, errs.Configuration("timeaxis: invalid range start %q: %v", startStr, err)
	}
	dateStop, err := time.Parse(dayLayout, stopStr)
	if err != nil {
		return nil, nil, nil, errs.Configuration("timeaxis: invalid range stop %q: %v", stopStr, err)
	}

	chunkDays := 1
	if v, ok := chunks["day"]; ok {
		chunkDays = v
	}
	_, chunked := chunks["day"]

	times := req.Dimensions()["time"]

	var coords []time.Time
	var frags []chunkplan.Fragment
	var chunkStart time.Time
	haveChunkStart := false

	for d := dateStart; !d.After(dateStop); d = d.AddDate(0, 0, 1) {
		if chunked && (!haveChunkStart || d.Sub(chunkStart) == time.Duration(chunkDays)*24*time.Hour) {
			chunkStart = d
			haveChunkStart = true
			stop := chunkStart.AddDate(0, 0, chunkDays-1)
			if stop.After(dateStop) {
				stop = dateStop
			}
			frags = append(frags, chunkplan.Fragment{
				Start:    len(coords),
				Fragment: map[string]any{"date": fmt.Sprintf("%s/%s", chunkStart.Format(dayLayout), stop.Format(dayLayout))},
			})
		}
		for _, tAny := range times {
			hhmm := fmt.Sprintf("%v", tAny)
			if len(hhmm) != 5 {
				return nil, nil, nil, errs.Configuration("timeaxis: time entry %q must have length 5 (HH:MM)", hhmm)
			}
			ts, err := time.Parse("2006-01-02T15:04", fmt.Sprintf("%sT%s", d.Format(dayLayout), hhmm))
			if err != nil {
				return nil, nil, nil, err
			}
			coords = append(coords, ts)
		}
	}

	if len(frags) == 0 {
		frags = []chunkplan.Fragment{{Start: 0, Fragment: map[string]any{}}}
	}

	sizes := make([]int, len(frags))
	for i, f := range frags {
		next := len(coords)
		if i+1 < len(frags) {
			next = frags[i+1].Start
		}
		sizes[i] = next - f.Start
	}
	return coords, sizes, frags, nil
}
