package pyresolve

import "golang.org/x/exp/constraints"

// Alignment arithmetic over the power-of-two sizes this package deals in
// (machine words, pages, pools).

func alignUp[I constraints.Integer](a, b I) I { return (a + b - 1) &^ (b - 1) }

func alignDown[I constraints.Integer](a, b I) I { return a &^ (b - 1) }

func isAligned[I constraints.Integer](a, b I) bool { return a&(b-1) == 0 }
