package models

// Requests for the factor and pattern HTTP endpoints. An empty date means the latest trade date;
// zero days, quantiles or top take the evaluator config.

type ScanRequest struct {
	Date string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type AnalyzeRequest struct {
	Alpha     string `query:"alpha" json:"alpha" validate:"required,startswith=alpha_,max=64"`
	Date      string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	Days      int    `query:"days" json:"days" validate:"omitempty,gte=5,lte=750"`
	Quantiles int    `query:"quantiles" json:"quantiles" validate:"omitempty,gte=2,lte=50"`
	Top       int    `query:"top" json:"top" validate:"gte=0,lte=200"`
}

type SimilarRequest struct {
	Security string `query:"security" json:"security" validate:"required,max=32"`
	Date     string `query:"date" json:"date" validate:"required,datetime=2006-01-02"`
	N        int    `query:"n" json:"n" default:"3" validate:"gte=1,lte=50"`
}

type WindowRequest struct {
	Security string `query:"security" json:"security" validate:"required,max=32"`
	Date     string `query:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Before   int    `query:"before" json:"before" default:"20" validate:"gte=0,lte=500"`
	After    int    `query:"after" json:"after" default:"20" validate:"gte=0,lte=500"`
}

// JobRequest submits asynchronous analyses. Empty Alphas means every alpha in the catalogue.
type JobRequest struct {
	Alphas    []string `json:"alphas" validate:"max=200,dive,startswith=alpha_,max=64"`
	Date      string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Days      int      `json:"days" validate:"omitempty,gte=5,lte=750"`
	Quantiles int      `json:"quantiles" validate:"omitempty,gte=2,lte=50"`
	Top       int      `json:"top" validate:"gte=0,lte=200"`
}

// JobsAccepted is the response to a job submission.
type JobsAccepted struct {
	Jobs []EvaluationJob `json:"jobs"`
}
