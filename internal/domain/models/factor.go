package models

import "time"

// ICRecord is the rank IC of one factor on one date.
// IC is NaN when the cross-section was degenerate; Cumulative is NaN on those days too.
type ICRecord struct {
	Date       time.Time
	IC         float64
	Cumulative float64
	N          int
}

// ICSeries is an ascending-by-date list of IC records.
type ICSeries []ICRecord

// Defined returns the records whose IC is defined.
func (s ICSeries) Defined() ICSeries {
	out := make(ICSeries, 0, len(s))
	for _, r := range s {
		if !isNaN(r.IC) {
			out = append(out, r)
		}
	}
	return out
}

// ICRecordView is the JSON form of ICRecord.
type ICRecordView struct {
	Date       TradeDate `json:"date"`
	IC         Number    `json:"ic"`
	Cumulative Number    `json:"cumulative_ic"`
	N          int       `json:"n"`
}

// View converts the series for transport.
func (s ICSeries) View() []ICRecordView {
	out := make([]ICRecordView, len(s))
	for i, r := range s {
		out[i] = ICRecordView{
			Date:       TradeDate(r.Date),
			IC:         Number(r.IC),
			Cumulative: Number(r.Cumulative),
			N:          r.N,
		}
	}
	return out
}

// ICSummary aggregates an IC series.
type ICSummary struct {
	MeanIC        Number `json:"mean_ic"`
	StdIC         Number `json:"std_ic"`
	ICIR          Number `json:"icir"`
	PositiveRatio Number `json:"positive_ratio"`
	Days          int    `json:"days"`
	DefinedDays   int    `json:"defined_days"`
}

// BucketReturn is one quantile layer. Bucket 0 holds the lowest factor values.
type BucketReturn struct {
	Bucket     int    `json:"bucket"`
	Count      int    `json:"count"`
	MeanReturn Number `json:"mean_return"`
	MinFactor  Number `json:"min_factor"`
	MaxFactor  Number `json:"max_factor"`
}

// AlphaIC is the IC of one alpha in a cross-section scan.
type AlphaIC struct {
	Alpha string `json:"alpha"`
	IC    Number `json:"ic"`
	N     int    `json:"n"`
}

// Exposure is a security's factor value on a date.
type Exposure struct {
	Security string `json:"security"`
	Name     string `json:"name,omitempty"`
	Industry string `json:"industry,omitempty"`
	Value    Number `json:"value"`
	Return   Number `json:"forward_return"`
}

// AlphaAnalysis is the deep-dive result for one alpha.
type AlphaAnalysis struct {
	Alpha   string         `json:"alpha"`
	Date    TradeDate      `json:"date"`
	Horizon int            `json:"horizon"`
	Summary ICSummary      `json:"summary"`
	Daily   []ICRecordView `json:"daily"`
	Layers  []BucketReturn `json:"layers"`
	Top     []Exposure     `json:"top"`
	Bottom  []Exposure     `json:"bottom"`
}

// CrossSectionScan is the IC of every alpha on one date.
type CrossSectionScan struct {
	Date    TradeDate `json:"date"`
	Horizon int       `json:"horizon"`
	Results []AlphaIC `json:"results"`
}

// EvaluationJob asks for an asynchronous analysis of one alpha.
type EvaluationJob struct {
	ID        string    `json:"id"`
	Alpha     string    `json:"alpha"`
	Date      TradeDate `json:"date"`
	Days      int       `json:"days"`
	Quantiles int       `json:"quantiles"`
	Top       int       `json:"top"`
}

// EvaluationReport is published once a job or scan has finished.
type EvaluationReport struct {
	JobID      string            `json:"job_id,omitempty"`
	Kind       string            `json:"kind"`
	Analysis   *AlphaAnalysis    `json:"analysis,omitempty"`
	Scan       *CrossSectionScan `json:"scan,omitempty"`
	Error      string            `json:"error,omitempty"`
	FinishedAt time.Time         `json:"finished_at"`
}

const (
	ReportKindAnalysis = "analysis"
	ReportKindScan     = "scan"
)

// EvaluationJobType names evaluation jobs on non-Kafka queues.
const EvaluationJobType = "evaluate_alpha"

func isNaN(f float64) bool { return f != f }
