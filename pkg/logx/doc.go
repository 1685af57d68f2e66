// Package logx is penpal's thin logging layer over zerolog.
//
// Components receive a logx.Logger and tag themselves with a comp field.
// The Service owns the root: readable console output, JSON file output,
// level and writers swappable at runtime through Apply without
// recreating component loggers.
package logx
