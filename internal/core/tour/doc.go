// Package tour orders points into a short closed tour and converts leg
// distances into range-limited jump counts.
//
// Solve builds a nearest-neighbour tour and improves it with first-improvement
// 2-opt and Or-opt moves until no improving move remains or a budget runs out.
// The result is a local optimum under those two neighbourhoods, never a
// guaranteed global optimum, and never longer than the tour that visits the
// points in input order.
package tour
