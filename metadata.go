package main

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PrintMetadata is what the firmware shows about a print. The first five
// fields are required; the rest default to zero.
type PrintMetadata struct {
	EstimatedTime    time.Duration
	BedTempC         int
	NozzleTempC      int
	PrintSpeedMMPerS float64
	FilamentLengthMM float64

	LayerHeightMM   float64
	NozzleTempLeftC int
	FilamentLeftMM  float64
	Slicer          string
}

// Metadata keys usable as header field sources.
const (
	KeyPrintTime      = "print_time"
	KeyBedTemp        = "bed_temp"
	KeyNozzleTemp     = "nozzle_temp"
	KeyNozzleTempLeft = "nozzle_temp_left"
	KeyPrintSpeed     = "print_speed"
	KeyFilament       = "filament"
	KeyFilamentLeft   = "filament_left"
	KeyLayerHeight    = "layer_height"
)

// Value returns a metadata field in its canonical unit: seconds, degrees
// Celsius, mm/s or mm.
func (m PrintMetadata) Value(key string) (float64, bool) {
	switch key {
	case KeyPrintTime:
		return m.EstimatedTime.Seconds(), true
	case KeyBedTemp:
		return float64(m.BedTempC), true
	case KeyNozzleTemp:
		return float64(m.NozzleTempC), true
	case KeyNozzleTempLeft:
		return float64(m.NozzleTempLeftC), true
	case KeyPrintSpeed:
		return m.PrintSpeedMMPerS, true
	case KeyFilament:
		return m.FilamentLengthMM, true
	case KeyFilamentLeft:
		return m.FilamentLeftMM, true
	case KeyLayerHeight:
		return m.LayerHeightMM, true
	}
	return 0, false
}

type metaField int

const (
	fieldTime metaField = iota
	fieldBedTemp
	fieldNozzleTemp
	fieldPrintSpeed
	fieldFilament
	fieldLayerHeight
	numMetaFields
)

var metaFieldNames = [numMetaFields]string{
	fieldTime:        "estimated time",
	fieldBedTemp:     "bed temperature",
	fieldNozzleTemp:  "nozzle temperature",
	fieldPrintSpeed:  "print speed",
	fieldFilament:    "filament length",
	fieldLayerHeight: "layer height",
}

func (f metaField) required() bool { return f < fieldLayerHeight }

// valueParser converts a comment value to the field's canonical unit. Comma
// separated values are one per extruder.
type valueParser func(string) ([]float64, error)

// metadataRule maps either a "; tag = value" comment or a free-form comment
// matching pattern (value in group 1) to a field. Rules earlier in
// metadataRules take precedence over later ones for the same field.
type metadataRule struct {
	field   metaField
	tag     string
	pattern *regexp.Regexp
	parse   valueParser
}

func (r metadataRule) name() string {
	if r.pattern != nil {
		return r.pattern.String()
	}
	return r.tag
}

var metadataRules = []metadataRule{
	{field: fieldTime, tag: "estimated printing time (normal mode)", parse: parseDuration},
	{field: fieldTime, tag: "estimated printing time", parse: parseDuration},
	{field: fieldTime, pattern: regexp.MustCompile(`total estimated time:\s*([^;]+)`), parse: parseDuration},

	{field: fieldBedTemp, tag: "first_layer_bed_temperature", parse: parseNumbers},
	{field: fieldBedTemp, tag: "bed_temperature", parse: parseNumbers},
	{field: fieldBedTemp, tag: "hot_plate_temp_initial_layer", parse: parseNumbers},
	{field: fieldBedTemp, tag: "hot_plate_temp", parse: parseNumbers},

	{field: fieldNozzleTemp, tag: "nozzle_temperature", parse: parseNumbers},
	{field: fieldNozzleTemp, tag: "temperature", parse: parseNumbers},
	{field: fieldNozzleTemp, tag: "nozzle_temperature_initial_layer", parse: parseNumbers},
	{field: fieldNozzleTemp, tag: "first_layer_temperature", parse: parseNumbers},

	{field: fieldPrintSpeed, tag: "machine_max_speed_x", parse: parseNumbers},
	{field: fieldPrintSpeed, tag: "print_speed", parse: parseNumbers},
	{field: fieldPrintSpeed, tag: "max_print_speed", parse: parseNumbers},
	{field: fieldPrintSpeed, tag: "outer_wall_speed", parse: parseNumbers},

	{field: fieldFilament, tag: "filament used [mm]", parse: parseNumbers},
	{field: fieldFilament, tag: "filament used [m]", parse: scaled(parseNumbers, 1000)},

	{field: fieldLayerHeight, tag: "layer_height", parse: parseNumbers},
}

var (
	rulesByTag   = map[string]int{}
	patternRules []int
)

func init() {
	for i, r := range metadataRules {
		if r.pattern != nil {
			patternRules = append(patternRules, i)
			continue
		}
		rulesByTag[r.tag] = i
	}
}

// maxMetadataValue bounds every parsed value so that the integer fields of
// PrintMetadata cannot overflow. No header field is wider than 32 bits.
const maxMetadataValue = math.MaxInt32

type metaValue struct {
	rule   int
	line   int
	values []float64
}

type metadataExtractor struct {
	found [numMetaFields]*metaValue
}

func (ex *metadataExtractor) apply(ruleIdx int, value string, lineNum int) error {
	rule := metadataRules[ruleIdx]
	if cur := ex.found[rule.field]; cur != nil && cur.rule <= ruleIdx {
		return nil
	}
	values, err := rule.parse(value)
	if err != nil {
		return newConvertError(MalformedMetadata, rule.name(), lineNum, err)
	}
	for _, v := range values {
		if v > maxMetadataValue {
			return newConvertError(MalformedMetadata, rule.name(), lineNum, fmt.Errorf("value %g is too large", v))
		}
	}
	ex.found[rule.field] = &metaValue{rule: ruleIdx, line: lineNum, values: values}
	return nil
}

func (ex *metadataExtractor) line(lineNum int, line []byte) error {
	text, ok := commentText(line)
	if !ok {
		return nil
	}
	if key, value, ok := strings.Cut(text, "="); ok {
		if idx, ok := rulesByTag[strings.TrimSpace(key)]; ok {
			return ex.apply(idx, strings.TrimSpace(value), lineNum)
		}
	}
	for _, idx := range patternRules {
		if m := metadataRules[idx].pattern.FindStringSubmatch(text); m != nil {
			if err := ex.apply(idx, strings.TrimSpace(m[1]), lineNum); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ex *metadataExtractor) result() (PrintMetadata, error) {
	for f := metaField(0); f < numMetaFields; f++ {
		if ex.found[f] == nil && f.required() {
			return PrintMetadata{}, newConvertError(MissingMetadata, metaFieldNames[f], 0,
				fmt.Errorf("none of %s found", strings.Join(tagsFor(f), ", ")))
		}
	}

	get := func(f metaField, i int) float64 {
		if v := ex.found[f]; v != nil && i < len(v.values) {
			return v.values[i]
		}
		return 0
	}

	return PrintMetadata{
		EstimatedTime:    time.Duration(math.Round(get(fieldTime, 0))) * time.Second,
		BedTempC:         int(math.Round(get(fieldBedTemp, 0))),
		NozzleTempC:      int(math.Round(get(fieldNozzleTemp, 0))),
		PrintSpeedMMPerS: get(fieldPrintSpeed, 0),
		FilamentLengthMM: get(fieldFilament, 0),
		LayerHeightMM:    get(fieldLayerHeight, 0),
		NozzleTempLeftC:  int(math.Round(get(fieldNozzleTemp, 1))),
		FilamentLeftMM:   get(fieldFilament, 1),
	}, nil
}

func tagsFor(f metaField) []string {
	var tags []string
	for _, r := range metadataRules {
		if r.field == f {
			tags = append(tags, strconv.Quote(r.name()))
		}
	}
	return tags
}

// ExtractMetadata scans the comment lines of a G-code file once and returns
// the typed print metadata.
func ExtractMetadata(gcode []byte) (PrintMetadata, error) {
	var ex metadataExtractor
	var lineErr error
	err := forEachLine(gcode, func(lineNum int, line []byte) bool {
		lineErr = ex.line(lineNum, line)
		return lineErr == nil
	})
	if lineErr != nil {
		return PrintMetadata{}, lineErr
	}
	if err != nil {
		return PrintMetadata{}, newConvertError(InputReadError, "", 0, err)
	}

	md, err := ex.result()
	if err != nil {
		return PrintMetadata{}, err
	}
	md.Slicer = DetectSlicer(gcode)
	return md, nil
}

func parseNumbers(s string) ([]float64, error) {
	if s == "" {
		return nil, fmt.Errorf("empty value")
	}
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", strings.TrimSpace(p))
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("value %q out of range", strings.TrimSpace(p))
		}
		values = append(values, v)
	}
	return values, nil
}

func scaled(parse valueParser, factor float64) valueParser {
	return func(s string) ([]float64, error) {
		values, err := parse(s)
		for i := range values {
			values[i] *= factor
		}
		return values, err
	}
}

var (
	reDurationPart = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([dhms])`)
	durationUnits  = map[string]float64{"d": 86400, "h": 3600, "m": 60, "s": 1}
)

// parseDuration reads slicer durations such as "1d 2h 3m 4s" or "1h 2m",
// and bare second counts, returning seconds.
func parseDuration(s string) ([]float64, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil && v >= 0 && !math.IsInf(v, 0) {
		return []float64{v}, nil
	}

	parts := reDurationPart.FindAllStringSubmatch(s, -1)
	if len(parts) == 0 || strings.TrimSpace(reDurationPart.ReplaceAllString(s, "")) != "" {
		return nil, fmt.Errorf("invalid duration %q", s)
	}

	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", s)
		}
		total += v * durationUnits[p[2]]
	}
	return []float64{total}, nil
}
