package raster_test

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/zonal/internal/adapters/raster"
	"github.com/okian/zonal/internal/domain/aoi"
	"github.com/okian/zonal/internal/domain/dataset"
	"github.com/okian/zonal/internal/domain/histogram"
	. "github.com/smartystreets/goconvey/convey"
)

type stubBackend struct {
	resp  raster.Response
	err   error
	delay time.Duration
	calls int
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) FrequencyHistogram(ctx context.Context, _ raster.Request) (raster.Response, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.resp, s.err
}

func descriptor(key string) *dataset.Descriptor {
	d, err := dataset.MustDefault().Describe(key)
	if err != nil {
		panic(err)
	}
	return d
}

func square() *aoi.Geometry {
	g, err := aoi.NewRectangle(10, 45, 11, 46)
	if err != nil {
		panic(err)
	}
	return g
}

func TestAggregator(t *testing.T) {
	landCover := descriptor("Global-Land-Cover")

	Convey("Given an aggregator over a stub backend", t, func() {
		stub := &stubBackend{}
		agg := raster.NewAggregator(stub, raster.WithTimeout(200*time.Millisecond))
		ctx := context.Background()

		Convey("When the backend answers with a band histogram", func() {
			stub.resp = raster.Response{"b1": {"10": 30, "20": 70}}
			h, err := agg.Aggregate(ctx, square(), landCover)

			Convey("Then class keys are parsed as integers", func() {
				So(err, ShouldBeNil)
				So(h, ShouldResemble, histogram.RawHistogram{10: 30, 20: 70})
				So(stub.calls, ShouldEqual, 1)
			})
		})

		Convey("When the backend reports no pixels", func() {
			stub.resp = raster.Response{"b1": nil}
			h, err := agg.Aggregate(ctx, square(), landCover)

			Convey("Then an empty histogram is returned without error", func() {
				So(err, ShouldBeNil)
				So(h, ShouldBeEmpty)
			})
		})

		Convey("When the backend fails", func() {
			stub.err = errors.New("quota exceeded")
			h, err := agg.Aggregate(ctx, square(), landCover)

			Convey("Then the failure is ErrBackendUnavailable, not an empty map", func() {
				So(errors.Is(err, raster.ErrBackendUnavailable), ShouldBeTrue)
				So(h, ShouldBeNil)
				So(stub.calls, ShouldEqual, 1)
			})
		})

		Convey("When the backend is slower than the timeout", func() {
			stub.delay = time.Second
			_, err := agg.Aggregate(ctx, square(), landCover)

			Convey("Then the call is cut short as unavailable", func() {
				So(errors.Is(err, raster.ErrBackendUnavailable), ShouldBeTrue)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})

		Convey("When the answer is malformed", func() {
			cases := []raster.Response{
				{"b2": {"10": 1}},
				{"b1": {"ten": 1}},
				{"b1": {"10.5": 1}},
				{"b1": {"10": -3}},
				{"b1": {"10": math.MaxFloat64, "20": math.MaxFloat64}},
			}
			for _, resp := range cases {
				stub.resp = resp
				_, err := agg.Aggregate(ctx, square(), landCover)
				So(errors.Is(err, raster.ErrBackendUnavailable), ShouldBeTrue)
				So(errors.Is(err, raster.ErrMalformedResponse), ShouldBeTrue)
			}
		})

		Convey("When the dataset is an interval ramp", func() {
			stub.resp = raster.Response{"b1": {"3.5": 2, "10": 1, "55.1": 4, "900": 1}}
			h, err := agg.Aggregate(ctx, square(), descriptor("Current-SOC-stocks-(0-200-cm)"))

			Convey("Then continuous values are reclassified into breaks", func() {
				So(err, ShouldBeNil)
				So(h, ShouldResemble, histogram.RawHistogram{10: 3, 80: 4, 400: 1})
			})
		})
	})
}

func TestHTTPBackend(t *testing.T) {
	Convey("Given a reduce-region server", t, func() {
		var (
			hits   atomic.Int32
			status atomic.Int32
			hang   atomic.Bool
			seen   map[string]any
		)
		status.Store(http.StatusOK)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			if hang.Load() {
				_, _ = io.Copy(io.Discard, r.Body)
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
				return
			}
			if r.URL.Path != "/reduce-region" || r.Method != http.MethodPost {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			body, _ := io.ReadAll(r.Body)
			seen = map[string]any{}
			_ = json.Unmarshal(body, &seen)
			if code := int(status.Load()); code != http.StatusOK {
				w.WriteHeader(code)
				_, _ = w.Write([]byte("quota exhausted"))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"b1":{"10":12.5,"190":87.5}}`))
		}))
		defer srv.Close()

		backend := raster.NewHTTPBackend(srv.URL+"/",
			raster.WithHTTPClient(srv.Client()),
			raster.WithRateLimit(1000, 100),
			raster.WithBreaker(0.5, 2, time.Minute))
		agg := raster.NewAggregator(backend)
		landCover := descriptor("Global-Land-Cover")

		Convey("When a reduction succeeds", func() {
			h, err := agg.Aggregate(context.Background(), square(), landCover)

			Convey("Then the histogram is decoded", func() {
				So(err, ShouldBeNil)
				So(h, ShouldResemble, histogram.RawHistogram{10: 12.5, 190: 87.5})
			})

			Convey("Then the request carries the reducer contract", func() {
				So(seen["reducer"], ShouldEqual, "frequencyHistogram")
				So(seen["best_effort"], ShouldEqual, true)
				src, ok := seen["source"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(src["collection"], ShouldEqual, "projects/soils-revealed/ESA_landcover_ipcc")
				So(src["band"], ShouldEqual, "b1")
				geometry, ok := seen["geometry"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(geometry["type"], ShouldEqual, "Polygon")
			})
		})

		Convey("When the server keeps failing", func() {
			status.Store(http.StatusTooManyRequests)
			for range 2 {
				_, err := agg.Aggregate(context.Background(), square(), landCover)
				So(errors.Is(err, raster.ErrBackendUnavailable), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "429")
			}

			Convey("Then the breaker opens and stops calling the server", func() {
				before := hits.Load()
				_, err := agg.Aggregate(context.Background(), square(), landCover)
				So(errors.Is(err, raster.ErrCircuitOpen), ShouldBeTrue)
				So(errors.Is(err, raster.ErrBackendUnavailable), ShouldBeTrue)
				So(hits.Load(), ShouldEqual, before)
			})
		})

		Convey("When callers keep giving up mid-request", func() {
			hang.Store(true)
			for range 3 {
				ctx, cancel := context.WithCancel(context.Background())
				stop := time.AfterFunc(20*time.Millisecond, cancel)
				_, err := backend.FrequencyHistogram(ctx, raster.Request{Geometry: square()})
				stop.Stop()
				cancel()
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			}
			hang.Store(false)

			Convey("Then the breaker stays closed", func() {
				h, err := agg.Aggregate(context.Background(), square(), landCover)
				So(err, ShouldBeNil)
				So(h, ShouldResemble, histogram.RawHistogram{10: 12.5, 190: 87.5})
			})
		})

		Convey("When the server returns garbage", func() {
			garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			}))
			defer garbage.Close()

			_, err := raster.NewAggregator(raster.NewHTTPBackend(garbage.URL)).
				Aggregate(context.Background(), square(), landCover)
			So(errors.Is(err, raster.ErrMalformedResponse), ShouldBeTrue)
		})
	})
}

func TestSimulatedBackend(t *testing.T) {
	reg := dataset.MustDefault()

	Convey("Given a simulated backend without latency", t, func() {
		sim := raster.NewSimulatedBackend(reg, raster.WithLatencyRange(0, time.Millisecond))
		agg := raster.NewAggregator(sim)
		ctx := context.Background()

		Convey("Then every dataset yields a histogram of known classes", func() {
			for _, key := range reg.Keys() {
				desc := descriptor(key)
				h, err := agg.Aggregate(ctx, square(), desc)
				So(err, ShouldBeNil)
				So(h, ShouldNotBeEmpty)

				_, err = histogram.Normalize(h, desc)
				So(err, ShouldBeNil)
			}
		})

		Convey("Then the same AOI always yields the same histogram", func() {
			desc := descriptor("Koppen-Geiger-Climate")
			first, err := agg.Aggregate(ctx, square(), desc)
			So(err, ShouldBeNil)
			second, err := agg.Aggregate(ctx, square(), desc)
			So(err, ShouldBeNil)
			So(second, ShouldResemble, first)
		})

		Convey("Then an unknown source fails", func() {
			_, err := sim.FrequencyHistogram(ctx, raster.Request{
				Geometry: square(),
				Source:   dataset.Source{Asset: "users/nobody/nothing", Band: "b1"},
			})
			So(err, ShouldNotBeNil)
		})

		Convey("Then a cancelled context fails", func() {
			slow := raster.NewSimulatedBackend(reg, raster.WithLatencyRange(time.Second, 2*time.Second))
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := slow.FrequencyHistogram(cctx, raster.Request{Geometry: square(), Source: descriptor("Global-Land-Cover").Source})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
