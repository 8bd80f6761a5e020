package domain

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// WeightedSelector hands out keys in proportion to their weights using
// interleaved weighted round robin: a weight-1 key among weight-100 keys is
// still picked once per cycle instead of starving behind a burst.
//
// The cursor is owned by the selector. Build one per pool; changing weights
// means building a new selector. A selector is not safe for concurrent use.
type WeightedSelector[K cmp.Ordered] struct {
	keys    []K
	weights []int
	step    int
	max     int
	cycle   int

	index   int
	quantum int
}

func NewWeightedSelector[K cmp.Ordered](weights map[K]int) (*WeightedSelector[K], error) {
	if len(weights) == 0 {
		return nil, errors.New("weighted selector needs at least one key")
	}

	keys := make([]K, 0, len(weights))
	for key := range weights {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	s := &WeightedSelector[K]{
		keys:    keys,
		weights: make([]int, len(keys)),
		index:   -1,
	}
	for i, key := range keys {
		weight := weights[key]
		if weight <= 0 {
			return nil, fmt.Errorf("%w: %v has weight %d", ErrInvalidWeight, key, weight)
		}
		s.weights[i] = weight
		s.step = gcd(s.step, weight)
		s.max = max(s.max, weight)
	}
	for _, weight := range s.weights {
		s.cycle += weight / s.step
	}

	return s, nil
}

// Next returns the next key. It never allocates.
func (s *WeightedSelector[K]) Next() K {
	n := len(s.keys)
	for {
		s.index = (s.index + 1) % n
		if s.index == 0 {
			s.quantum -= s.step
			if s.quantum <= 0 {
				s.quantum = s.max
			}
		}
		if s.weights[s.index] >= s.quantum {
			return s.keys[s.index]
		}
	}
}

// Len returns the number of keys.
func (s *WeightedSelector[K]) Len() int {
	return len(s.keys)
}

// Cycle returns the number of picks after which the order repeats. Any run
// of Cycle consecutive picks contains every key.
func (s *WeightedSelector[K]) Cycle() int {
	return s.cycle
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
