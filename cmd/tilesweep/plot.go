package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

func readRows(path string) ([]sweepRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 256<<10), 16<<20)
	var rows []sweepRow
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var row sweepRow
		if err := json.Unmarshal(line, &row); err != nil {
			continue
		}
		if row.N == 0 || row.MicrosNTT <= 0 {
			continue
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no valid sweep rows found in %s", path)
	}
	return rows, nil
}

// byN groups rows per transform size; shapes keep their sweep order.
func byN(rows []sweepRow) ([]int, map[int][]sweepRow) {
	groups := make(map[int][]sweepRow)
	for _, r := range rows {
		groups[r.N] = append(groups[r.N], r)
	}
	ns := make([]int, 0, len(groups))
	for n := range groups {
		ns = append(ns, n)
	}
	sort.Ints(ns)
	return ns, groups
}

func shapeLabels(rows []sweepRow) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		l := fmt.Sprintf("%dx%d", r.Columns, r.Rows)
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func lineChart(title, yName string, labels []string, ns []int, groups map[int][]sweepRow, value func(sweepRow) float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "grid (cols x rows)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName, Type: "value"}),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: opts.Bool(true),
			Feature: &opts.ToolBoxFeature{
				SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{Show: opts.Bool(true)},
			},
		}),
	)
	line.SetXAxis(labels)
	for _, n := range ns {
		idx := make(map[string]float64)
		for _, r := range groups[n] {
			idx[fmt.Sprintf("%dx%d", r.Columns, r.Rows)] = value(r)
		}
		data := make([]opts.LineData, len(labels))
		for i, l := range labels {
			if v, ok := idx[l]; ok {
				data[i] = opts.LineData{Value: v}
			} else {
				data[i] = opts.LineData{Value: "-"}
			}
		}
		line.AddSeries(fmt.Sprintf("N=%d", n), data)
	}
	return line
}

// tileBars shows per-tile kernel and wait time of the largest measured grid
// for the largest N.
func tileBars(rows []sweepRow) *charts.Bar {
	best := rows[0]
	for _, r := range rows[1:] {
		if r.N > best.N || (r.N == best.N && r.Tiles > best.Tiles) {
			best = r
		}
	}
	tiles := make([]string, 0, len(best.KernelUS))
	for t := range best.KernelUS {
		tiles = append(tiles, t)
	}
	sort.Strings(tiles)
	kern := make([]opts.BarData, len(tiles))
	wait := make([]opts.BarData, len(tiles))
	for i, t := range tiles {
		kern[i] = opts.BarData{Value: best.KernelUS[t]}
		wait[i] = opts.BarData{Value: best.WaitUS[t]}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Per-tile time per NTT",
			Subtitle: fmt.Sprintf("%dx%d N=%d kernel=%s", best.Columns, best.Rows, best.N, best.Kernel),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "us", Type: "value"}),
	)
	bar.SetXAxis(tiles).
		AddSeries("kernel", kern, charts.WithBarChartOpts(opts.BarChart{Stack: "tile"})).
		AddSeries("wait", wait, charts.WithBarChartOpts(opts.BarChart{Stack: "tile"}))
	return bar
}

func writeHTML(path string, rows []sweepRow) error {
	if path == "" {
		return nil
	}
	ns, groups := byN(rows)
	labels := shapeLabels(rows)
	page := components.NewPage().SetPageTitle("Tiled NTT sweep")
	page.AddCharts(
		lineChart("Time per NTT", "us", labels, ns, groups, func(r sweepRow) float64 { return r.MicrosNTT }),
		lineChart("Throughput (5.5 N log2 N ops)", "GOPS", labels, ns, groups, func(r sweepRow) float64 { return r.GOPS }),
		lineChart("Speedup over first grid", "x", labels, ns, groups, func(r sweepRow) float64 { return r.Speedup }),
		tileBars(rows),
	)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return err
	}
	fmt.Printf("Wrote %s | sizes: %d, grids: %d\n", path, len(ns), len(labels))
	return nil
}
