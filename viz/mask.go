package viz

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Noofbiz/trajviz/datasets"
)

// ReferenceSelector picks, on the first frame of a sequence, the instances
// whose vehicles are hidden for the rest of the sequence.
type ReferenceSelector interface {
	SelectReferences(annotations []datasets.Annotation, targetToken string) ([]string, error)
}

// PositionalReference picks the annotation at position Index of the frame's
// annotation list.
type PositionalReference struct {
	Index int
}

func (r PositionalReference) SelectReferences(anns []datasets.Annotation, _ string) ([]string, error) {
	if r.Index < 0 || r.Index >= len(anns) {
		return nil, errors.Wrapf(ErrInsufficientAnnotations,
			"reference position %d needs %d annotations, frame has %d", r.Index, r.Index+1, len(anns))
	}
	return []string{anns[r.Index].InstanceToken}, nil
}

// NearestVehicleReference picks the Rank-th nearest vehicle to the target
// (0 is the nearest). Equidistant vehicles keep their annotation order.
type NearestVehicleReference struct {
	Rank int
}

func (r NearestVehicleReference) SelectReferences(anns []datasets.Annotation, targetToken string) ([]string, error) {
	var target *datasets.Annotation
	for i := range anns {
		if anns[i].InstanceToken == targetToken {
			target = &anns[i]
			break
		}
	}
	if target == nil {
		return nil, errors.Wrapf(ErrInsufficientAnnotations, "target %s not annotated in the first frame", targetToken)
	}
	var vehicles []datasets.Annotation
	for _, a := range anns {
		if a.IsVehicle() && a.InstanceToken != targetToken {
			vehicles = append(vehicles, a)
		}
	}
	if r.Rank < 0 || r.Rank >= len(vehicles) {
		return nil, errors.Wrapf(ErrInsufficientAnnotations,
			"nearest vehicle rank %d needs %d vehicles, frame has %d", r.Rank, r.Rank+1, len(vehicles))
	}
	sort.SliceStable(vehicles, func(i, j int) bool {
		return r2.Norm(r2.Sub(vehicles[i].Translation, target.Translation)) <
			r2.Norm(r2.Sub(vehicles[j].Translation, target.Translation))
	})
	return []string{vehicles[r.Rank].InstanceToken}, nil
}

// FixedReference masks a configured list of instances.
type FixedReference struct {
	Tokens []string
}

func (r FixedReference) SelectReferences([]datasets.Annotation, string) ([]string, error) {
	return append([]string(nil), r.Tokens...), nil
}

// InstanceSet is an immutable set of instance tokens.
type InstanceSet struct {
	m map[string]struct{}
}

// NewInstanceSet returns the set of the given tokens.
func NewInstanceSet(tokens ...string) InstanceSet {
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return InstanceSet{m: m}
}

// Contains reports whether token is in the set.
func (s InstanceSet) Contains(token string) bool {
	_, ok := s.m[token]
	return ok
}

// Len returns the number of tokens in the set.
func (s InstanceSet) Len() int {
	return len(s.m)
}

// Tokens returns the members in sorted order.
func (s InstanceSet) Tokens() []string {
	out := make([]string, 0, len(s.m))
	for t := range s.m {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SelectMaskedInstances fixes the masked-instance set of a sequence from its
// first frame.
func SelectMaskedInstances(first []datasets.Annotation, targetToken string, sel ReferenceSelector) (InstanceSet, error) {
	if sel == nil {
		sel = PositionalReference{Index: 7}
	}
	tokens, err := sel.SelectReferences(first, targetToken)
	if err != nil {
		return InstanceSet{}, err
	}
	return NewInstanceSet(tokens...), nil
}

// ComputeVisibilityMask maps every annotated instance to whether it is
// hidden: a vehicle other than the target whose instance is in masked.
func ComputeVisibilityMask(anns []datasets.Annotation, masked InstanceSet, targetToken string) map[string]bool {
	hidden := make(map[string]bool, len(anns))
	for _, a := range anns {
		hidden[a.InstanceToken] = a.IsVehicle() && a.InstanceToken != targetToken && masked.Contains(a.InstanceToken)
	}
	return hidden
}
