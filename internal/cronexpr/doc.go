// Package cronexpr evaluates standard 5-field cron expressions
// (minute hour day-of-month month day-of-week) at minute resolution.
//
// Field ranges: minute 0-59, hour 0-23, day-of-month 1-31, month 1-12,
// day-of-week 0-6 where 0 is Sunday. Each field accepts "*", single values,
// comma lists, ranges "a-b", and steps "*/n", "a-b/n" or "a/n" (a to max).
//
// Day-of-month and day-of-week combine with OR when both are restricted,
// i.e. when neither contains a "*"-based term; otherwise both constrain,
// with a bare "*" imposing nothing (Vixie cron behavior).
//
// Expressions are parsed once into per-field matcher terms; evaluation never
// re-parses the source text.
package cronexpr
