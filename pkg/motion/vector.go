// Axis vectors for the CNC controller
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import "math"

// Axis indices.
const (
	AxisX = iota
	AxisY
	AxisZ
	AxisA
	AxisB
	AxisC
	NumAxes
)

// Vector is a position or displacement across all axes.
type Vector [NumAxes]float64

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector {
	var r Vector
	for i := 0; i < NumAxes; i++ {
		r[i] = v[i] - o[i]
	}
	return r
}

// Add returns v + o.
func (v Vector) Add(o Vector) Vector {
	var r Vector
	for i := 0; i < NumAxes; i++ {
		r[i] = v[i] + o[i]
	}
	return r
}

// Length returns the Euclidean length of v.
func (v Vector) Length() float64 {
	sum := 0.0
	for i := 0; i < NumAxes; i++ {
		sum += v[i] * v[i]
	}
	return math.Sqrt(sum)
}

// Near reports whether v and o are within tol on every axis.
func (v Vector) Near(o Vector, tol float64) bool {
	for i := 0; i < NumAxes; i++ {
		if math.Abs(v[i]-o[i]) > tol {
			return false
		}
	}
	return true
}
