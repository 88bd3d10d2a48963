package training

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/stat"

	"tileprep/internal/raster"
)

// ClassMetrics scores one class of a predicted mask against the truth.
type ClassMetrics struct {
	Class     int
	Precision float64
	Recall    float64
	IoU       float64
}

// Report aggregates per-class scores over an evaluation set.
type Report struct {
	Classes  []ClassMetrics
	MeanIoU  float64
	Accuracy float64
}

// Compare scores a predicted mask against the truth mask cell by cell. Both
// rasters must share dimensions; null cells in either are skipped.
func Compare(truth, predicted *raster.Grid) (Report, error) {
	if truth.Extent.Rows != predicted.Extent.Rows || truth.Extent.Cols != predicted.Extent.Cols {
		return Report{}, fmt.Errorf("mask dimensions differ: %dx%d vs %dx%d",
			truth.Extent.Rows, truth.Extent.Cols, predicted.Extent.Rows, predicted.Extent.Cols)
	}

	type counts struct{ tp, fp, fn int }
	perClass := map[int]*counts{}
	at := func(c int) *counts {
		if perClass[c] == nil {
			perClass[c] = &counts{}
		}
		return perClass[c]
	}

	total, correct := 0, 0
	for row := 0; row < truth.Extent.Rows; row++ {
		for col := 0; col < truth.Extent.Cols; col++ {
			tv, okT := truth.Value(row, col)
			pv, okP := predicted.Value(row, col)
			if !okT || !okP {
				continue
			}
			t, p := int(tv), int(pv)
			total++
			if t == p {
				correct++
				at(t).tp++
			} else {
				at(p).fp++
				at(t).fn++
			}
		}
	}
	if total == 0 {
		return Report{}, fmt.Errorf("no comparable cells")
	}

	classes := make([]int, 0, len(perClass))
	for c := range perClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	var rep Report
	ious := make([]float64, 0, len(classes))
	for _, c := range classes {
		n := perClass[c]
		m := ClassMetrics{Class: c}
		if n.tp+n.fp > 0 {
			m.Precision = float64(n.tp) / float64(n.tp+n.fp)
		}
		if n.tp+n.fn > 0 {
			m.Recall = float64(n.tp) / float64(n.tp+n.fn)
		}
		if n.tp+n.fp+n.fn > 0 {
			m.IoU = float64(n.tp) / float64(n.tp+n.fp+n.fn)
		}
		ious = append(ious, m.IoU)
		rep.Classes = append(rep.Classes, m)
	}
	rep.MeanIoU = stat.Mean(ious, nil)
	rep.Accuracy = float64(correct) / float64(total)
	return rep, nil
}

// Write renders the report as a plain table.
func (r Report) Write(w io.Writer, classNames map[int]string) {
	fmt.Fprintf(w, "overall accuracy: %.4f\n", r.Accuracy)
	fmt.Fprintf(w, "mean IoU: %.4f\n", r.MeanIoU)
	for _, m := range r.Classes {
		name := classNames[m.Class]
		if name == "" {
			name = fmt.Sprintf("class %d", m.Class)
		}
		fmt.Fprintf(w, "%-20s precision %.4f  recall %.4f  IoU %.4f\n",
			name, m.Precision, m.Recall, m.IoU)
	}
}
