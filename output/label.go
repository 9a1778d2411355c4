package output

import "github.com/fatih/color"

const (
	LabelBlazing = "Blazing"
	LabelHot     = "Hot"
	LabelWarm    = "Warm"
	LabelCool    = "Cool"
)

// tier maps the lowest score that earns a label to how it prints.
type tier struct {
	min   float64
	label string
	paint *color.Color
}

// tiers is ordered from the highest floor down; the last one catches
// everything, negative scores included.
var tiers = []tier{
	{min: 10, label: LabelBlazing, paint: color.New(color.FgRed, color.Bold)},
	{min: 6, label: LabelHot, paint: color.New(color.FgMagenta, color.Bold)},
	{min: 3, label: LabelWarm, paint: color.New(color.FgYellow)},
	{label: LabelCool, paint: color.New(color.FgCyan)},
}

func tierFor(score float64) tier {
	for _, t := range tiers[:len(tiers)-1] {
		if score >= t.min {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// PlainLabel names the heat tier a hotspot score falls in
func PlainLabel(score float64) string {
	return tierFor(score).label
}

// ColorLabel is PlainLabel painted for terminal tables
func ColorLabel(score float64) string {
	t := tierFor(score)
	return t.paint.Sprint(t.label)
}
