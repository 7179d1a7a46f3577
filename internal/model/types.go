package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type FitRecord struct {
	VersionedRecord
	ID            string          `json:"id"`
	Model         string          `json:"model"`
	TreeNewick    string          `json:"tree_newick"`
	LogLikelihood float64         `json:"log_likelihood"`
	Evaluations   int             `json:"evaluations"`
	Estimates     []ParamEstimate `json:"estimates"`
	CreatedAtUTC  string          `json:"created_at_utc"`
}

type ParamEstimate struct {
	Name    string  `json:"name"`
	Edge    string  `json:"edge,omitempty"`
	Bin     string  `json:"bin,omitempty"`
	Locus   string  `json:"locus,omitempty"`
	Value   float64 `json:"value"`
	IsConst bool    `json:"is_const"`
}

type TreeRecord struct {
	VersionedRecord
	ID       string `json:"id"`
	Newick   string `json:"newick"`
	TipCount int    `json:"tip_count"`
}

type ModelSummary struct {
	VersionedRecord
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	BestLogLikelihood float64 `json:"best_log_likelihood"`
}
