package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		So(Init(), ShouldBeNil)
		defer func() { _ = Sync() }()

		Convey("Then Get returns an initialized logger", func() {
			So(Get(), ShouldNotBeNil)
		})

		Convey("And a nil writer is refused", func() {
			So(InitWithWriter(nil), ShouldNotBeNil)
		})
	})
}

func TestLoggerOutput(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf), ShouldBeNil)
		defer func() { _ = Init() }()
		ctx := context.Background()

		Convey("When logging at info", func() {
			Get().Info(ctx, "aoi accepted", String("dataset", "Global-Land-Cover"), Float64("area", 12.5))

			Convey("Then the record carries the message, fields and source", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "aoi accepted")
				So(out, ShouldContainSubstring, "dataset=Global-Land-Cover")
				So(out, ShouldContainSubstring, "area=12.5")
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging through a named logger", func() {
			Named("raster").Warn(ctx, "backend slow", Error(errors.New("deadline")))

			Convey("Then the component name is attached", func() {
				So(buf.String(), ShouldContainSubstring, "component=raster")
				So(buf.String(), ShouldContainSubstring, "error=deadline")
			})
		})

		Convey("When debug is below the configured level", func() {
			So(SetLevelString("info"), ShouldBeNil)
			Get().Debug(ctx, "hidden")

			Convey("Then nothing is written", func() {
				So(buf.String(), ShouldNotContainSubstring, "hidden")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		for _, lvl := range []string{"debug", "INFO", " warn ", "warning", "error", ""} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		_ = SetLevelString("info")
	})
}

func TestNop(t *testing.T) {
	Convey("Given a nop logger", t, func() {
		l := Nop()
		So(func() {
			l.Info(context.Background(), "discarded")
			l.Named("x").Error(context.Background(), "discarded")
		}, ShouldNotPanic)
	})
}
