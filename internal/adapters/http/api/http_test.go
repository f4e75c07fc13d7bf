package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/okian/zonal/internal/adapters/http/api"
	service "github.com/okian/zonal/internal/app"
	"github.com/okian/zonal/internal/domain/aoi"
	"github.com/okian/zonal/internal/domain/dataset"
	"github.com/okian/zonal/internal/domain/histogram"
	"github.com/okian/zonal/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const squareGeometry = `{"coordinates":[[[10,45],[11,45],[11,46],[10,46],[10,45]]]}`

// mockDependencies records the last submission and answers with a canned
// outcome or error.
type mockDependencies struct {
	outcome service.Outcome
	err     error
	last    *service.Submission
}

func (m *mockDependencies) Compute(_ context.Context, sub service.Submission) (service.Outcome, error) {
	m.last = &sub
	return m.outcome, m.err
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps api.Dependencies) *http.ServeMux {
	server := api.NewServer(deps, dataset.MustDefault(), &mockStatsProvider{stats: map[string]interface{}{"started": true}})
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&mockDependencies{})

		Convey("Then health endpoint reports ok", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then health endpoint serves metrics to scrapers", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			req.Header.Set("Accept", "text/plain")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "zonal_")
		})

		Convey("Then metrics endpoint is accessible", func() {
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats endpoint is accessible", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then stats rejects other methods", func() {
			w := do(mux, http.MethodPost, "/stats", "{}")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestZonalHandler(t *testing.T) {
	Convey("Given the zonal statistics endpoint", t, func() {
		deps := &mockDependencies{outcome: service.Outcome{RunID: "run-1", State: service.StateDone}}
		mux := newMux(deps)

		Convey("When the body names no datasets", func() {
			w := do(mux, http.MethodPost, "/v1/zonal-stats", `{"geometry":`+squareGeometry+`}`)

			Convey("Then land cover is computed by default", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.last, ShouldNotBeNil)
				So(deps.last.Datasets, ShouldResemble, []string{"Global-Land-Cover"})
				minLon, _, maxLon, _ := deps.last.Geometry.Bounds()
				So(minLon, ShouldEqual, 10)
				So(maxLon, ShouldEqual, 11)
			})
		})

		Convey("When datasets and top are given", func() {
			body := `{"geometry":` + squareGeometry + `,"datasets":["Koppen-Geiger-Climate","Global-Land-Cover"],"top":3}`
			w := do(mux, http.MethodPost, "/v1/zonal-stats", body)

			Convey("Then they are passed through", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.last.Datasets, ShouldResemble, []string{"Koppen-Geiger-Climate", "Global-Land-Cover"})
				So(deps.last.TopN, ShouldEqual, 3)
			})
		})

		Convey("When a GeoJSON Feature is posted as the geometry", func() {
			body := `{"geometry":{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}}`
			w := do(mux, http.MethodPost, "/v1/zonal-stats", body)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the request is malformed", func() {
			cases := map[string]string{
				"not json":        `{`,
				"no geometry":     `{"datasets":["Global-Land-Cover"]}`,
				"negative top":    `{"geometry":` + squareGeometry + `,"top":-1}`,
				"empty key":       `{"geometry":` + squareGeometry + `,"datasets":[""]}`,
				"unclosed ring":   `{"geometry":{"coordinates":[[[0,0],[1,0],[1,1],[0,1]]]}}`,
				"wrong geom type": `{"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`,
			}
			for name, body := range cases {
				w := do(mux, http.MethodPost, "/v1/zonal-stats", body)
				So(fmt.Sprintf("%s:%d", name, w.Code), ShouldEqual, fmt.Sprintf("%s:%d", name, http.StatusBadRequest))
			}
			So(deps.last, ShouldBeNil)
		})

		Convey("When the wrong method is used", func() {
			w := do(mux, http.MethodGet, "/v1/zonal-stats", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("When the run ends in each terminal state", func() {
			cases := []struct {
				outcome service.Outcome
				status  int
			}{
				{service.Outcome{State: service.StateDone}, http.StatusOK},
				{service.Outcome{State: service.StateRejected, Reason: service.ReasonTooLarge}, http.StatusUnprocessableEntity},
				{service.Outcome{State: service.StateRejected, Reason: service.ReasonOutsideBoundary}, http.StatusUnprocessableEntity},
				{service.Outcome{State: service.StateFailed, Reason: service.ReasonEmptyHistogram}, http.StatusNotFound},
				{service.Outcome{State: service.StateFailed, Reason: service.ReasonBackendUnavailable}, http.StatusBadGateway},
				{service.Outcome{State: service.StateFailed, Reason: service.ReasonUnknownClass}, http.StatusInternalServerError},
			}

			Convey("Then the status reflects the outcome", func() {
				for _, tc := range cases {
					deps.outcome = tc.outcome
					w := do(mux, http.MethodPost, "/v1/zonal-stats", `{"geometry":`+squareGeometry+`}`)
					So(w.Code, ShouldEqual, tc.status)

					var got service.Outcome
					So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
					So(got.State, ShouldEqual, tc.outcome.State)
					So(got.Reason, ShouldEqual, tc.outcome.Reason)
				}
			})
		})

		Convey("When the service reports a caller mistake", func() {
			deps.err = fmt.Errorf("%w: %q", dataset.ErrUnknownDataset, "Nope")
			w := do(mux, http.MethodPost, "/v1/zonal-stats", `{"geometry":`+squareGeometry+`,"datasets":["Nope"]}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "unknown_dataset")
			})
		})

		Convey("When the service is not running", func() {
			deps.err = service.ErrNotStarted
			w := do(mux, http.MethodPost, "/v1/zonal-stats", `{"geometry":`+squareGeometry+`}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the service fails unexpectedly", func() {
			deps.err = errors.New("boom")
			w := do(mux, http.MethodPost, "/v1/zonal-stats", `{"geometry":`+squareGeometry+`}`)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

type stubAggregator struct{}

func (stubAggregator) Aggregate(_ context.Context, _ *aoi.Geometry, _ *dataset.Descriptor) (histogram.RawHistogram, error) {
	return histogram.RawHistogram{10: 30, 20: 70}, nil
}

func TestZonalHandlerWithService(t *testing.T) {
	Convey("Given the endpoint backed by a real service", t, func() {
		svc := service.New(
			service.WithAggregator(stubAggregator{}),
			service.WithPolicy(aoi.NewPolicy(aoi.PlanarDeg2, 25.0)),
			service.WithLogger(logger.Nop()),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		mux := newMux(svc)

		Convey("When a small AOI is posted", func() {
			w := do(mux, http.MethodPost, "/v1/zonal-stats", `{"geometry":`+squareGeometry+`}`)

			Convey("Then the named distribution is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got struct {
					State   string `json:"state"`
					Results []struct {
						Dataset      string `json:"dataset"`
						Distribution struct {
							Shares []histogram.Share `json:"shares"`
						} `json:"distribution"`
					} `json:"results"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.State, ShouldEqual, "done")
				So(len(got.Results), ShouldEqual, 1)
				shares := got.Results[0].Distribution.Shares
				So(len(shares), ShouldEqual, 2)
				So(shares[0].Name, ShouldEqual, "Cropland, rainfed")
				So(shares[0].Percentage, ShouldEqual, 30.0)
			})
		})

		Convey("When an AOI equal to the threshold is posted", func() {
			w := do(mux, http.MethodPost, "/v1/zonal-stats", `{"geometry":{"coordinates":[[[0,0],[5,0],[5,5],[0,5],[0,0]]]}}`)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When an oversized AOI is posted", func() {
			w := do(mux, http.MethodPost, "/v1/zonal-stats", `{"geometry":{"coordinates":[[[0,0],[6,0],[6,6],[0,6],[0,0]]]}}`)

			Convey("Then it is rejected as too large", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(w.Body.String(), ShouldContainSubstring, `"reason":"too_large"`)
			})
		})
	})
}

func TestDatasetsHandler(t *testing.T) {
	Convey("Given the dataset endpoints", t, func() {
		mux := newMux(&mockDependencies{})

		Convey("When listing datasets", func() {
			w := do(mux, http.MethodGet, "/v1/datasets", "")

			Convey("Then every registered key is listed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got []struct {
					Key  string `json:"key"`
					Ramp string `json:"ramp"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(len(got), ShouldEqual, 3)
				So(got[1].Key, ShouldEqual, "Global-Land-Cover")
				So(got[0].Ramp, ShouldEqual, "ramp")
			})
		})

		Convey("When fetching one legend", func() {
			w := do(mux, http.MethodGet, "/v1/datasets/Global-Land-Cover", "")

			Convey("Then class names and colors are keyed by id", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got struct {
					Key         string            `json:"key"`
					ClassNames  map[string]string `json:"class_names"`
					ClassColors map[string]string `json:"class_colors"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Key, ShouldEqual, "Global-Land-Cover")
				So(got.ClassNames["10"], ShouldEqual, "Cropland, rainfed")
				So(got.ClassColors["10"], ShouldEqual, "#ffff64")
			})
		})

		Convey("When fetching the SLD style", func() {
			w := do(mux, http.MethodGet, "/v1/datasets/Current-SOC-stocks-(0-200-cm)/sld", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/xml; charset=utf-8")
			So(w.Body.String(), ShouldStartWith, "<RasterSymbolizer>")
		})

		Convey("When the dataset is unknown", func() {
			w := do(mux, http.MethodGet, "/v1/datasets/Global-Precipitation", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the path is malformed", func() {
			w := do(mux, http.MethodGet, "/v1/datasets/a/b", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestOpError(t *testing.T) {
	Convey("Given API operation errors", t, func() {
		cause := errors.New("cause")

		Convey("Then kind and cause are both matchable", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: cause")
		})

		Convey("Then NewKind and Wrap format the operation", func() {
			So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
			So(api.Wrap("api.op", cause).Error(), ShouldEqual, "api.op: cause")
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})
	})
}
