package modelpool

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// TreeEnsemble evaluates a gradient-boosted regression ensemble exported with
// XGBoost's JSON model format (Booster.save_model("xgb_model.json")).
type TreeEnsemble struct {
	BaseScore float64
	Trees     []Tree
}

// Tree is one regression tree in array form. For leaf nodes the split
// condition holds the leaf value, as in the XGBoost export.
type Tree struct {
	LeftChildren    []int
	RightChildren   []int
	SplitIndices    []int
	SplitConditions []float64
	DefaultLeft     []bool
}

// flags decodes default_left, which XGBoost writes as 0/1 integers or booleans
type flags []bool

func (f *flags) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]bool, len(raw))
	for i, r := range raw {
		switch s := strings.TrimSpace(string(r)); s {
		case "true", "1":
			out[i] = true
		case "false", "0":
			out[i] = false
		default:
			return fmt.Errorf("default_left[%d]: unexpected value %s", i, s)
		}
	}
	*f = out
	return nil
}

type xgbDocument struct {
	Learner struct {
		LearnerModelParam struct {
			BaseScore string `json:"base_score"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
		GradientBooster struct {
			Name  string `json:"name"`
			Model struct {
				Trees []struct {
					LeftChildren    []int     `json:"left_children"`
					RightChildren   []int     `json:"right_children"`
					SplitIndices    []int     `json:"split_indices"`
					SplitConditions []float64 `json:"split_conditions"`
					DefaultLeft     flags     `json:"default_left"`
				} `json:"trees"`
			} `json:"model"`
		} `json:"gradient_booster"`
	} `json:"learner"`
}

// Objectives whose prediction is the untransformed margin
var identityObjectives = map[string]bool{
	"":                     true,
	"reg:squarederror":     true,
	"reg:linear":           true,
	"reg:absoluteerror":    true,
	"reg:pseudohubererror": true,
	"reg:squaredlogerror":  true,
	"reg:quantileerror":    true,
}

// DecodeTreeEnsemble reads an XGBoost JSON model
func DecodeTreeEnsemble(r io.Reader) (*TreeEnsemble, error) {
	var doc xgbDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode xgboost model: %w", err)
	}

	learner := doc.Learner
	if name := learner.GradientBooster.Name; name != "" && name != "gbtree" {
		return nil, fmt.Errorf("unsupported booster %q", name)
	}
	if !identityObjectives[learner.Objective.Name] {
		return nil, fmt.Errorf("unsupported objective %q", learner.Objective.Name)
	}

	base, err := parseBaseScore(learner.LearnerModelParam.BaseScore)
	if err != nil {
		return nil, err
	}

	ens := &TreeEnsemble{BaseScore: base}
	for i, t := range learner.GradientBooster.Model.Trees {
		tree := Tree{
			LeftChildren:    t.LeftChildren,
			RightChildren:   t.RightChildren,
			SplitIndices:    t.SplitIndices,
			SplitConditions: t.SplitConditions,
			DefaultLeft:     []bool(t.DefaultLeft),
		}
		if err := tree.validate(); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		ens.Trees = append(ens.Trees, tree)
	}
	if len(ens.Trees) == 0 {
		return nil, fmt.Errorf("xgboost model has no trees")
	}
	return ens, nil
}

// parseBaseScore accepts "5E-1" and the bracketed vector form "[5E-1]"
func parseBaseScore(s string) (float64, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return 0.5, nil
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid base_score %q: %w", s, err)
	}
	return v, nil
}

func (t Tree) validate() error {
	n := len(t.LeftChildren)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.RightChildren) != n || len(t.SplitIndices) != n || len(t.SplitConditions) != n {
		return fmt.Errorf("node arrays have mismatched lengths")
	}
	if len(t.DefaultLeft) != 0 && len(t.DefaultLeft) != n {
		return fmt.Errorf("default_left has %d entries for %d nodes", len(t.DefaultLeft), n)
	}
	for i := 0; i < n; i++ {
		l, r := t.LeftChildren[i], t.RightChildren[i]
		if l == -1 {
			continue
		}
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("node %d has invalid children (%d, %d)", i, l, r)
		}
	}
	return nil
}

// Predict returns the base score plus the sum of leaf values. Features,
// splits and the sum are float32, matching the booster the model came from.
func (e *TreeEnsemble) Predict(row []float64) (float64, error) {
	sum := float32(e.BaseScore)
	for i, t := range e.Trees {
		leaf, err := t.leafValue(row)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += leaf
	}
	return float64(sum), nil
}

func (t Tree) leafValue(row []float64) (float32, error) {
	node := 0
	for t.LeftChildren[node] != -1 {
		idx := t.SplitIndices[node]
		if idx < 0 || idx >= len(row) {
			return 0, fmt.Errorf("split on feature %d but row has %d features", idx, len(row))
		}
		x := row[idx]
		switch {
		case math.IsNaN(x):
			if len(t.DefaultLeft) > 0 && t.DefaultLeft[node] {
				node = t.LeftChildren[node]
			} else {
				node = t.RightChildren[node]
			}
		case float32(x) < float32(t.SplitConditions[node]):
			node = t.LeftChildren[node]
		default:
			node = t.RightChildren[node]
		}
	}
	return float32(t.SplitConditions[node]), nil
}
