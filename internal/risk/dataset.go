// Package risk trains and serves the tabular sexual-health risk classifier.
package risk

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Class labels, in output order.
const (
	LowRisk    = "Low Risk"
	MediumRisk = "Medium Risk"
	HighRisk   = "High Risk"
)

var Classes = []string{LowRisk, MediumRisk, HighRisk}

const TargetColumn = "Risk_Category"

var (
	NumericFeatures = []string{
		"Age",
		"Family_Income_Rwf",
		"Healthcare_Access_Score",
		"Sexual_Education_Hours",
		"Peer_Influence",
		"Parental_Involvement",
		"Community_Resources",
	}
	CategoricalFeatures = []string{
		"Education_Level",
		"Ubudehe_Category",
		"Contraceptive_Use",
	}
)

// Input is one respondent's feature vector.
type Input struct {
	Age                   int     `json:"Age" validate:"gte=0,lte=120"`
	EducationLevel        string  `json:"Education_Level" validate:"required"`
	UbudeheCategory       string  `json:"Ubudehe_Category" validate:"required"`
	FamilyIncomeRwf       float64 `json:"Family_Income_Rwf" validate:"gte=0"`
	HealthcareAccessScore int     `json:"Healthcare_Access_Score"`
	SexualEducationHours  float64 `json:"Sexual_Education_Hours" validate:"gte=0"`
	ContraceptiveUse      string  `json:"Contraceptive_Use" validate:"required"`
	PeerInfluence         int     `json:"Peer_Influence"`
	ParentalInvolvement   int     `json:"Parental_Involvement"`
	CommunityResources    int     `json:"Community_Resources"`
}

// Record is a labelled training row.
type Record struct {
	Input
	Risk string `json:"Risk_Category"`
}

func (in Input) numeric() []float64 {
	return []float64{
		float64(in.Age),
		in.FamilyIncomeRwf,
		float64(in.HealthcareAccessScore),
		in.SexualEducationHours,
		float64(in.PeerInfluence),
		float64(in.ParentalInvolvement),
		float64(in.CommunityResources),
	}
}

func (in Input) categorical() []string {
	return []string{in.EducationLevel, in.UbudeheCategory, in.ContraceptiveUse}
}

func classIndex(label string) int {
	for i, c := range Classes {
		if c == label {
			return i
		}
	}
	return -1
}

var ErrEmptyDataset = errors.New("risk: dataset has no rows")

// ParseCSV reads a headered CSV. Extra columns are ignored.
func ParseCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	required := append(append([]string{TargetColumn}, NumericFeatures...), CategoricalFeatures...)
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var out []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseRow(row, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, ErrEmptyDataset
	}
	return out, nil
}

func parseRow(row []string, col map[string]int) (Record, error) {
	get := func(name string) string { return strings.TrimSpace(row[col[name]]) }

	nums := make(map[string]float64, len(NumericFeatures))
	for _, name := range NumericFeatures {
		v, err := strconv.ParseFloat(get(name), 64)
		if err != nil {
			return Record{}, fmt.Errorf("%s: %w", name, err)
		}
		nums[name] = v
	}

	risk := get(TargetColumn)
	if classIndex(risk) < 0 {
		return Record{}, fmt.Errorf("unknown %s %q", TargetColumn, risk)
	}

	return Record{
		Input: Input{
			Age:                   int(nums["Age"]),
			EducationLevel:        get("Education_Level"),
			UbudeheCategory:       get("Ubudehe_Category"),
			FamilyIncomeRwf:       nums["Family_Income_Rwf"],
			HealthcareAccessScore: int(nums["Healthcare_Access_Score"]),
			SexualEducationHours:  nums["Sexual_Education_Hours"],
			ContraceptiveUse:      get("Contraceptive_Use"),
			PeerInfluence:         int(nums["Peer_Influence"]),
			ParentalInvolvement:   int(nums["Parental_Involvement"]),
			CommunityResources:    int(nums["Community_Resources"]),
		},
		Risk: risk,
	}, nil
}
