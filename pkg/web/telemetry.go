package web

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/gofiber/fiber/v2"
)

// handleTelemetryChart renders the recent FPS, speed and steering history
// as an HTML line chart.
func (s *Server) handleTelemetryChart(c *fiber.Ctx) error {
	history := s.History()

	x := make([]string, len(history))
	fps := make([]opts.LineData, len(history))
	speed := make([]opts.LineData, len(history))
	steer := make([]opts.LineData, len(history))
	for i, h := range history {
		x[i] = strconv.FormatUint(h.Cycle, 10)
		fps[i] = opts.LineData{Value: h.FPS}
		speed[i] = opts.LineData{Value: h.Speed}
		steer[i] = opts.LineData{Value: h.Steer}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "PiCar Telemetry", Theme: "dark", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: "Drive Telemetry", Subtitle: fmt.Sprintf("last %d cycles", len(history))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "cycle", NameLocation: "middle", NameGap: 25}),
	)
	noSymbols := charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})
	line.SetXAxis(x).
		AddSeries("fps", fps, noSymbols).
		AddSeries("speed", speed, noSymbols).
		AddSeries("steer", steer, noSymbols)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to render chart: %v", err),
		})
	}

	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}
