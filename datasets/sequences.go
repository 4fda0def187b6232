package datasets

import (
	"github.com/pkg/errors"
)

// DefaultInstancePicks are the positions, in the list of unique instances of
// the validation split, of the instances the visualizer renders by default.
var DefaultInstancePicks = []int{54, 98, 91, 5, 114, 144, 291, 204, 312, 187, 36, 267, 146}

// InstanceOrder returns the unique instance tokens of the configured split in
// order of first appearance, together with the instance token of every
// dataset index.
func (s *SceneDB) InstanceOrder() (unique []string, perIndex []string, err error) {
	rows, err := s.db.Query(
		`SELECT instance_token FROM prediction_split WHERE split = ? ORDER BY idx`, s.opts.Split)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "query split %q", s.opts.Split)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, nil, errors.Wrap(err, "scan split instance")
		}
		perIndex = append(perIndex, tok)
		if !seen[tok] {
			seen[tok] = true
			unique = append(unique, tok)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "iterate split")
	}
	return unique, perIndex, nil
}

// VisIndices returns one sequence of dataset indices per pick: all indices
// of the pick-th unique instance, in dataset order. A pick outside the list
// of unique instances is reported as ErrIndexOutOfRange.
func (s *SceneDB) VisIndices(picks []int) ([][]int, error) {
	unique, perIndex, err := s.InstanceOrder()
	if err != nil {
		return nil, err
	}
	byInstance := make(map[string][]int, len(unique))
	for idx, tok := range perIndex {
		byInstance[tok] = append(byInstance[tok], idx)
	}

	out := make([][]int, 0, len(picks))
	for _, p := range picks {
		if p < 0 || p >= len(unique) {
			return nil, errors.Wrapf(ErrIndexOutOfRange, "instance pick %d not in [0, %d)", p, len(unique))
		}
		out = append(out, byInstance[unique[p]])
	}
	return out, nil
}
